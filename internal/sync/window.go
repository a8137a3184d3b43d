package sync

import "time"

// Window is the rolling time range considered for synchronization. It is
// recomputed fresh at the start of every run and never persisted.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window [now, now + days].
func NewWindow(now time.Time, days int) Window {
	return Window{
		Start: now,
		End:   now.AddDate(0, 0, days),
	}
}
