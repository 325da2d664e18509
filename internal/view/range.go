package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/event"
)

// Kind is one of the calendar page types
type Kind string

const (
	KindDay   Kind = "day"
	KindWeek  Kind = "week"
	KindMonth Kind = "month"
)

// ErrUnknownKind is returned by ParseKind for unsupported view names
var ErrUnknownKind = errors.New("unknown view kind")

// ParseKind parses a view name. The empty string selects the week view.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDay:
		return KindDay, nil
	case KindWeek, "":
		return KindWeek, nil
	case KindMonth:
		return KindMonth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Action is a navigation step relative to the current date
type Action string

const (
	ActionPrev  Action = "prev"
	ActionNext  Action = "next"
	ActionToday Action = "today"
)

// ErrUnknownAction is returned for navigation actions other than prev, next and today
var ErrUnknownAction = errors.New("unknown navigation action")

// ParseAction parses a navigation action name
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionPrev, ActionNext, ActionToday:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// StartOfDay returns midnight of t's calendar date in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// RangeFor returns the query window of a page.
//
// Day covers the calendar date, week runs Sunday through Saturday and month
// covers the first through the last day. The end is the following midnight,
// exclusive.
func RangeFor(kind Kind, date time.Time, loc *time.Location) event.Range {
	day := StartOfDay(date, loc)
	switch kind {
	case KindDay:
		return event.Range{Start: day, End: day.AddDate(0, 0, 1)}
	case KindMonth:
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return event.Range{Start: first, End: first.AddDate(0, 1, 0)}
	default:
		sunday := day.AddDate(0, 0, -int(day.Weekday()))
		return event.Range{Start: sunday, End: sunday.AddDate(0, 0, 7)}
	}
}

// Step moves date one page forward (dir > 0) or backward (dir < 0).
// Month steps keep the day of month, clamped to the length of the target month.
func Step(kind Kind, date time.Time, dir int) time.Time {
	switch {
	case dir > 0:
		dir = 1
	case dir < 0:
		dir = -1
	default:
		return date
	}

	switch kind {
	case KindDay:
		return date.AddDate(0, 0, dir)
	case KindMonth:
		y, m, d := date.Date()
		first := time.Date(y, m+time.Month(dir), 1, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
		if last := daysIn(first); d > last {
			d = last
		}
		return first.AddDate(0, 0, d-1)
	default:
		return date.AddDate(0, 0, 7*dir)
	}
}

// IsToday reports whether t falls on the current calendar date of clk in loc
func IsToday(clk clock.Clock, t time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = t.Location()
	}
	return StartOfDay(clk.Now(), loc).Equal(StartOfDay(t, loc))
}

// Days lists the midnight of every day in r
func Days(r event.Range) []time.Time {
	days := make([]time.Time, 0, 31)
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func daysIn(first time.Time) int {
	return first.AddDate(0, 1, -1).Day()
}
