package view

import (
	"sort"
	"time"

	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/layout"
)

// Day is one column (day and week views) or one cell (month view) of a page
type Day struct {
	Date    time.Time           `json:"date"`
	IsToday bool                `json:"isToday"`
	Events  []layout.Positioned `json:"events"`
}

// Page is a fully laid out calendar page.
// In the month view events are listed in start order and carry zero slots.
type Page struct {
	Kind  Kind        `json:"view"`
	Date  time.Time   `json:"date"`
	Range event.Range `json:"range"`
	Query string      `json:"query,omitempty"`
	Days  []Day       `json:"days"`

	// GroupSizes holds the size of every overlap group laid out for the page
	GroupSizes []int `json:"-"`
}

// Build assembles the page of kind containing date.
//
// Events are filtered by query, bucketed by the day their start falls on and,
// for the day and week views, grouped and laid out per day. opts.Location
// decides both the day boundaries and the vertical placement; when nil, the
// location of date is used.
func Build(kind Kind, date time.Time, events []event.Event, query string, opts layout.Options, clk clock.Clock) Page {
	loc := opts.Location
	if loc == nil {
		loc = date.Location()
		opts.Location = loc
	}
	if clk == nil {
		clk = clock.System{}
	}

	rng := RangeFor(kind, date, loc)
	matching := event.Filter(events, query)

	page := Page{
		Kind:       kind,
		Date:       StartOfDay(date, loc),
		Range:      rng,
		Query:      query,
		Days:       make([]Day, 0, 31),
		GroupSizes: make([]int, 0),
	}

	for _, d := range Days(rng) {
		dayEvents := event.OnDay(matching, d, loc)
		day := Day{
			Date:    d,
			IsToday: IsToday(clk, d, loc),
		}

		if kind == KindMonth {
			sort.SliceStable(dayEvents, func(i, j int) bool {
				return dayEvents[i].Start.Before(dayEvents[j].Start)
			})
			day.Events = make([]layout.Positioned, 0, len(dayEvents))
			for _, e := range dayEvents {
				day.Events = append(day.Events, layout.Positioned{Event: e})
			}
		} else {
			day.Events = make([]layout.Positioned, 0, len(dayEvents))
			for _, group := range layout.Group(dayEvents) {
				page.GroupSizes = append(page.GroupSizes, len(group))
				day.Events = append(day.Events, layout.ArrangeGroup(group, opts)...)
			}
		}

		page.Days = append(page.Days, day)
	}

	return page
}

// EventCount returns the number of events placed on the page
func (p Page) EventCount() int {
	n := 0
	for _, d := range p.Days {
		n += len(d.Events)
	}
	return n
}
