package calendar

import "fmt"

// RemoteError is an upstream calendar API failure: network trouble, rate
// limiting, or any 4xx/5xx response. StatusCode is zero when the request
// never reached the server.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsAuth reports whether the failure indicates a rejected credential rather
// than a transient upstream problem.
func (e *RemoteError) IsAuth() bool { return e.StatusCode == 401 }
