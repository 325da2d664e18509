package event

import "time"

// Filter returns the events matching query, in input order.
// The returned slice is always freshly allocated.
func Filter(events []Event, query string) []Event {
	result := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Matches(query) {
			result = append(result, e)
		}
	}
	return result
}

// OnDay returns the events whose start falls on the calendar day of day,
// evaluated in loc. A nil loc uses the location of day.
func OnDay(events []Event, day time.Time, loc *time.Location) []Event {
	if loc == nil {
		loc = day.Location()
	}
	y, m, d := day.In(loc).Date()
	result := make([]Event, 0)
	for _, e := range events {
		ey, em, ed := e.Start.In(loc).Date()
		if ey == y && em == m && ed == d {
			result = append(result, e)
		}
	}
	return result
}
