// Package ics renders the merged calendar view as an iCalendar feed so
// the shared calendar can be subscribed to from any standard calendar
// client.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/roach88/honeycal/internal/event"
)

// Export renders events as a VCALENDAR. All-day events become DATE
// values; timed events get DTSTART/DTEND in local floating time. The UID
// is the event's merge key, so re-exports after reconciliation keep
// stable identifiers.
func Export(events []event.Event) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//honeycal//shared calendar//EN")

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID.Key())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		ve.SetDtStampTime(ev.UpdatedAt.UTC())

		day, err := time.Parse(event.DateLayout, ev.Date)
		if err != nil {
			return "", fmt.Errorf("event %s: bad date %q: %w", ev.ID.Key(), ev.Date, err)
		}

		if ev.AllDay() {
			ve.SetAllDayStartAt(day)
			ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
			continue
		}

		start := day
		if ev.StartTime != "" {
			if start, err = atTime(day, ev.StartTime); err != nil {
				return "", fmt.Errorf("event %s: %w", ev.ID.Key(), err)
			}
		}
		ve.SetStartAt(start)

		// A missing end time mirrors the start; the reverse (end
		// without start) renders as a point event at the end time.
		end := start
		if ev.EndTime != "" {
			if end, err = atTime(day, ev.EndTime); err != nil {
				return "", fmt.Errorf("event %s: %w", ev.ID.Key(), err)
			}
		}
		ve.SetEndAt(end)
	}

	return cal.Serialize(), nil
}

func atTime(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse(event.TimeLayout, hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), nil
}
