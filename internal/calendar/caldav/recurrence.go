package caldav

import (
	"time"

	"github.com/emersion/go-ical"

	"github.com/teemow/calview/internal/event"
)

// instanceLayout formats recurrence instance times inside event IDs
const instanceLayout = "20060102T150405Z"

// instanceID names one occurrence of the series uid
func instanceID(uid string, start time.Time) string {
	return uid + "/" + start.UTC().Format(instanceLayout)
}

// recurrenceID returns the RECURRENCE-ID of ve, if it has a parseable one
func recurrenceID(ve ical.Event, loc *time.Location) (time.Time, bool) {
	if ve.Props.Get(ical.PropRecurrenceID) == nil {
		return time.Time{}, false
	}
	rid, err := ve.Props.DateTime(ical.PropRecurrenceID, loc)
	if err != nil || rid.IsZero() {
		return time.Time{}, false
	}
	return rid, true
}

// expand returns the events of one calendar object that overlap r, with
// recurring series expanded into their occurrences. A VEVENT carrying a
// RECURRENCE-ID replaces the occurrence it names. skipped counts VEVENTs
// that could not be converted.
func expand(cal *ical.Calendar, r event.Range) (events []event.Event, skipped int) {
	loc := r.Start.Location()
	vevents := cal.Events()

	overridden := make(map[string]bool)
	for _, ve := range vevents {
		if rid, ok := recurrenceID(ve, loc); ok {
			overridden[instanceID(text(ve.Props, ical.PropUID), rid)] = true
		}
	}

	for _, ve := range vevents {
		base, ok := toEvent(ve, loc)
		if !ok {
			skipped++
			continue
		}
		if _, ok := recurrenceID(ve, loc); ok {
			if inRange(base, r) {
				events = append(events, base)
			}
			continue
		}

		rset, err := ve.RecurrenceSet(loc)
		if err != nil {
			skipped++
			continue
		}
		if rset == nil {
			events = append(events, base)
			continue
		}

		length := base.Duration()
		for _, start := range rset.Between(r.Start.Add(-length), r.End, true) {
			id := instanceID(base.ID, start)
			if overridden[id] {
				continue
			}
			occ := base
			occ.ID = id
			occ.Start = start
			occ.End = start.Add(length)
			if inRange(occ, r) {
				events = append(events, occ)
			}
		}
	}
	return events, skipped
}

// inRange reports whether e overlaps the half-open range r. Zero length
// events count when they start inside r.
func inRange(e event.Event, r event.Range) bool {
	if !e.Start.Before(r.End) {
		return false
	}
	if e.End.Equal(e.Start) {
		return !e.Start.Before(r.Start)
	}
	return e.End.After(r.Start)
}
