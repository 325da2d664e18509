package layout

import (
	"sort"
	"time"

	"github.com/teemow/calview/internal/event"
)

// Group partitions events into runs of transitively overlapping events.
//
// Events are visited in start order (stable for equal starts). A new group is
// opened whenever an event starts at or after the latest end seen in the open
// group, so back-to-back events never share a group. Groups are returned in
// the order they were opened and keep the sweep order internally.
func Group(events []event.Event) [][]event.Event {
	groups := make([][]event.Event, 0)
	if len(events) == 0 {
		return groups
	}

	sorted := make([]event.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var (
		current     []event.Event
		frontier    time.Time
		hasFrontier bool
	)
	for _, e := range sorted {
		if !hasFrontier || !e.Start.Before(frontier) {
			if len(current) > 0 {
				groups = append(groups, current)
			}
			current = []event.Event{e}
		} else {
			current = append(current, e)
		}

		if !hasFrontier || e.End.After(frontier) {
			frontier = e.End
			hasFrontier = true
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}
