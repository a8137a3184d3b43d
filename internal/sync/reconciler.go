package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/beekhof/o365sync/internal/calendar"
)

// ErrMalformedEvent indicates a source event that is missing its start or
// end time. Such events are skipped; they never abort a run.
var ErrMalformedEvent = errors.New("event has no usable start or end time")

// Action is the decision the reconciler makes for a single source event.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// PlannedAction is one reconciler decision, ready to be applied to the
// destination calendar.
type PlannedAction struct {
	Action   Action
	Key      string
	SourceID string
	// TargetID is the destination event id. Only set for updates.
	TargetID string
	Payload  *calendar.EventPayload
}

// EventKey correlates an event across the two systems: the Google event id
// joined with the event's normalized start timestamp. The same key is
// computable from a source event and from a destination event carrying the
// stored Google event id.
func EventKey(googleID, start string) string {
	return googleID + "_" + normalizeTimestamp(start)
}

// normalizeTimestamp maps the timestamp formats the two systems produce
// onto one canonical UTC form so keys and comparisons agree regardless of
// origin. Google sends RFC 3339 date-times or bare dates for all-day
// events; Graph sends zone-less date-times which we always request in UTC.
func normalizeTimestamp(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	}
	trimmed := ts
	if i := strings.IndexByte(trimmed, '.'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if t, err := time.Parse("2006-01-02T15:04:05", trimmed); err == nil {
		return t.Format("2006-01-02T15:04:05Z")
	}
	if t, err := time.Parse("2006-01-02", ts); err == nil {
		return t.Format("2006-01-02T15:04:05Z")
	}
	return ts
}

// BuildPayload maps a Google event onto the Graph event shape. The stored
// Google event id rides along as an extended property so later runs can
// recognize the copy.
func BuildPayload(event *gcal.Event) (*calendar.EventPayload, error) {
	startTS, startTZ, err := eventTime(event.Start)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", event.Id, err)
	}
	endTS, endTZ, err := eventTime(event.End)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", event.Id, err)
	}

	subject := event.Summary
	if subject == "" {
		subject = "No Title"
	}

	payload := &calendar.EventPayload{
		Subject: subject,
		Start:   calendar.DateTimeZone{DateTime: startTS, TimeZone: startTZ},
		End:     calendar.DateTimeZone{DateTime: endTS, TimeZone: endTZ},
		SingleValueExtendedProperties: []calendar.ExtendedProperty{
			{ID: calendar.GoogleEventIDProperty, Value: event.Id},
		},
	}
	if event.Description != "" {
		payload.Body = &calendar.ItemBody{ContentType: "text", Content: event.Description}
	}
	if event.Location != "" {
		payload.Location = &calendar.Location{DisplayName: event.Location}
	}
	return payload, nil
}

func eventTime(edt *gcal.EventDateTime) (timestamp, timeZone string, err error) {
	if edt == nil {
		return "", "", ErrMalformedEvent
	}
	ts := edt.DateTime
	if ts == "" {
		ts = edt.Date
	}
	if ts == "" {
		return "", "", ErrMalformedEvent
	}
	tz := edt.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return ts, tz, nil
}

// TargetIndex holds the destination events a run already knows about,
// addressable by correlation key and by stored Google event id. The id
// fallback is what lets a start-time change resolve to an update of the
// existing copy instead of a duplicate create.
type TargetIndex struct {
	byKey map[string]calendar.OutlookEvent
	byID  map[string]calendar.OutlookEvent
}

// IndexTargetEvents builds a TargetIndex from destination events.
// Events without a stored Google event id were not created by the sync
// and are excluded, so they are never touched.
func IndexTargetEvents(events []calendar.OutlookEvent) TargetIndex {
	ix := TargetIndex{
		byKey: make(map[string]calendar.OutlookEvent, len(events)),
		byID:  make(map[string]calendar.OutlookEvent, len(events)),
	}
	for _, event := range events {
		googleID := event.GoogleEventID()
		if googleID == "" {
			continue
		}
		ix.byKey[EventKey(googleID, event.Start.DateTime)] = event
		ix.byID[googleID] = event
	}
	return ix
}

// Len reports how many synced events the index holds.
func (ix TargetIndex) Len() int {
	return len(ix.byID)
}

// Lookup finds the destination copy of a source event, first by full key,
// then by Google event id alone.
func (ix TargetIndex) Lookup(googleID, start string) (calendar.OutlookEvent, bool) {
	if event, ok := ix.byKey[EventKey(googleID, start)]; ok {
		return event, true
	}
	event, ok := ix.byID[googleID]
	return event, ok
}

// Reconciler matches source events against existing destination events and
// decides, per event, whether to create, update or leave it alone.
type Reconciler struct {
	logger *zap.Logger
}

func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile walks the source events in order and emits one decision per
// usable event. Malformed events are logged and dropped. Destination events
// with no matching source event are left untouched.
func (r *Reconciler) Reconcile(source []*gcal.Event, existing TargetIndex) []PlannedAction {
	actions := make([]PlannedAction, 0, len(source))
	for _, event := range source {
		payload, err := BuildPayload(event)
		if err != nil {
			r.logger.Warn("skipping malformed source event",
				zap.String("id", event.Id),
				zap.String("title", event.Summary),
				zap.Error(err))
			continue
		}

		key := EventKey(event.Id, payload.Start.DateTime)
		current, ok := existing.Lookup(event.Id, payload.Start.DateTime)
		if !ok {
			actions = append(actions, PlannedAction{
				Action:   ActionCreate,
				Key:      key,
				SourceID: event.Id,
				Payload:  payload,
			})
			continue
		}

		action := ActionSkip
		if needsUpdate(current, payload) {
			action = ActionUpdate
		}
		actions = append(actions, PlannedAction{
			Action:   action,
			Key:      key,
			SourceID: event.Id,
			TargetID: current.ID,
			Payload:  payload,
		})
	}
	return actions
}

// needsUpdate compares the fields the sync owns. The body is deliberately
// not compared: Outlook rewrites event bodies into HTML, so a body diff
// would make every event look permanently changed.
func needsUpdate(current calendar.OutlookEvent, desired *calendar.EventPayload) bool {
	if current.Subject != desired.Subject {
		return true
	}
	if normalizeTimestamp(current.Start.DateTime) != normalizeTimestamp(desired.Start.DateTime) {
		return true
	}
	if normalizeTimestamp(current.End.DateTime) != normalizeTimestamp(desired.End.DateTime) {
		return true
	}
	if desired.Location != nil {
		if current.Location == nil || current.Location.DisplayName != desired.Location.DisplayName {
			return true
		}
	}
	return false
}
