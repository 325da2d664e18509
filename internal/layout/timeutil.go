package layout

import (
	"time"

	"github.com/teemow/calview/internal/event"
)

// overlaps is the direct pairwise intersection test. Touching spans do not
// overlap.
func overlaps(a, b event.Event) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// minuteOfDay returns hour*60+minute of t on the wall clock of loc.
func minuteOfDay(t time.Time, loc *time.Location) float64 {
	if loc != nil {
		t = t.In(loc)
	}
	return float64(t.Hour()*60 + t.Minute())
}

// durationMinutes is the elapsed length of the event in minutes.
func durationMinutes(e event.Event) float64 {
	return e.End.Sub(e.Start).Minutes()
}
