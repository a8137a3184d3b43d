// Package ics renders a planned sync as an iCalendar document, so a dry
// run can be inspected in any calendar application before the real writes
// happen.
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/beekhof/o365sync/internal/calendar"
	"github.com/beekhof/o365sync/internal/sync"
)

// WritePlan encodes the create and update actions of a plan as VEVENTs.
// Skipped events carry no pending write and are left out.
func WritePlan(w io.Writer, actions []sync.PlannedAction) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//o365sync//EN")

	for _, action := range actions {
		if action.Action == sync.ActionSkip {
			continue
		}
		vevent, err := payloadToVEvent(action)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, vevent)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return nil
}

func payloadToVEvent(action sync.PlannedAction) (*ical.Component, error) {
	payload := action.Payload
	vevent := ical.NewComponent(ical.CompEvent)

	vevent.Props.SetText(ical.PropUID, action.SourceID+"@o365sync")
	vevent.Props.SetText(ical.PropSummary, payload.Subject)
	vevent.Props.SetText("X-SYNC-ACTION", action.Action.String())
	if payload.Body != nil {
		vevent.Props.SetText(ical.PropDescription, payload.Body.Content)
	}
	if payload.Location != nil {
		vevent.Props.SetText(ical.PropLocation, payload.Location.DisplayName)
	}

	if err := setEventTime(vevent, "DTSTART", payload.Start); err != nil {
		return nil, fmt.Errorf("event %q: %w", action.SourceID, err)
	}
	if err := setEventTime(vevent, "DTEND", payload.End); err != nil {
		return nil, fmt.Errorf("event %q: %w", action.SourceID, err)
	}
	return vevent, nil
}

func setEventTime(vevent *ical.Component, name string, dtz calendar.DateTimeZone) error {
	if t, err := time.Parse(time.RFC3339, dtz.DateTime); err == nil {
		vevent.Props.SetDateTime(name, t)
		return nil
	}
	if t, err := time.Parse("2006-01-02", dtz.DateTime); err == nil {
		// All-day event
		prop := ical.NewProp(name)
		prop.SetDate(t)
		vevent.Props.Set(prop)
		return nil
	}
	return fmt.Errorf("unparseable %s value %q", name, dtz.DateTime)
}
