// Package layout computes the visual placement of calendar events in the day
// and week views.
//
// Layout happens in two steps. Group partitions a set of events into runs of
// transitively overlapping events using a single chronological sweep with a
// running end-time frontier. Layout then assigns each event a Slot: a vertical
// extent proportional to its time of day and duration, and a horizontal column
// derived from the members of its group that it directly overlaps.
//
// Groups are chained, not cliques: with A 9:00-10:00, B 9:30-11:00 and
// C 10:30-12:00 all three land in one group although A and C never overlap.
// Columns are computed per event from its direct neighbours only, so two
// events of one group that do not overlap may be sized differently.
//
// Both operations are pure. They never mutate their input and every call
// returns freshly allocated output, so callers may invoke them from any
// goroutine.
//
// Example usage:
//
//	opts := layout.DefaultOptions()
//	for _, p := range layout.Arrange(events, opts) {
//	    fmt.Printf("%s top=%.0f height=%.0f left=%.3f width=%.3f\n",
//	        p.Event.Title, p.Slot.Top, p.Slot.Height, p.Slot.Left, p.Slot.Width)
//	}
package layout
