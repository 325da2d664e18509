package layout

import (
	"time"

	"github.com/teemow/calview/internal/event"
)

const (
	// DefaultPixelsPerHour matches the hour rows of the day and week grids.
	DefaultPixelsPerHour = 64.0

	// DefaultMinHeight keeps short events tall enough to show a title line.
	DefaultMinHeight = 40.0

	// columnSpan is the fraction of the column width shared by a group.
	columnSpan = 0.95

	// columnInset is the left margin of the first column.
	columnInset = 0.025
)

// Options holds the presentation constants used to compute slots.
// One Options value must be used for every event of a render pass.
type Options struct {
	// PixelsPerMinute scales time to display units. Non-positive values
	// fall back to DefaultPixelsPerHour/60.
	PixelsPerMinute float64 `json:"pixelsPerMinute" yaml:"pixels_per_minute"`

	// MinHeight is the readability floor applied to every slot height.
	MinHeight float64 `json:"minHeight" yaml:"min_height"`

	// Location is the zone whose wall clock positions events vertically.
	// When nil, each event is placed using the zone of its own start time.
	Location *time.Location `json:"-" yaml:"-"`
}

// DefaultOptions returns 64 units per hour with a 40 unit minimum height.
func DefaultOptions() Options {
	return Options{
		PixelsPerMinute: DefaultPixelsPerHour / 60,
		MinHeight:       DefaultMinHeight,
	}
}

func (o Options) pixelsPerMinute() float64 {
	if o.PixelsPerMinute <= 0 {
		return DefaultPixelsPerHour / 60
	}
	return o.PixelsPerMinute
}

// Slot is the derived placement of one event.
// Top and Height are in display units; Left and Width are fractions of the
// column width.
type Slot struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
}

// Positioned pairs an event with its computed slot
type Positioned struct {
	Event event.Event `json:"event"`
	Slot  Slot        `json:"slot"`
}

// Layout computes the slot of ev inside group, which must be the group
// produced by Group that contains ev. Membership is resolved by ID and
// time span; an event that is not found is treated as the last member.
func Layout(ev event.Event, group []event.Event, opts Options) Slot {
	return slotFor(ev, group, indexOf(group, ev), opts)
}

// Arrange groups events and lays out every one of them. The result follows
// group order, then sweep order within each group, and holds exactly one
// entry per input event.
func Arrange(events []event.Event, opts Options) []Positioned {
	result := make([]Positioned, 0, len(events))
	for _, group := range Group(events) {
		result = append(result, ArrangeGroup(group, opts)...)
	}
	return result
}

// ArrangeGroup lays out every member of one group produced by Group.
// Members are placed by their position in group, so identical events still
// get separate columns.
func ArrangeGroup(group []event.Event, opts Options) []Positioned {
	result := make([]Positioned, 0, len(group))
	for i, ev := range group {
		result = append(result, Positioned{
			Event: ev,
			Slot:  slotFor(ev, group, i, opts),
		})
	}
	return result
}

// SlotsByID indexes positioned events by event ID for renderers.
func SlotsByID(positioned []Positioned) map[string]Slot {
	slots := make(map[string]Slot, len(positioned))
	for _, p := range positioned {
		slots[p.Event.ID] = p.Slot
	}
	return slots
}

// slotFor computes the slot for the member at idx (or a non-member when idx
// is negative).
func slotFor(ev event.Event, group []event.Event, idx int, opts Options) Slot {
	position, total := 0, 0
	for j, other := range group {
		// The event always counts itself, even with a zero length span.
		if j == idx || overlaps(ev, other) {
			if j == idx {
				position = total
			}
			total++
		}
	}
	if idx < 0 {
		position = total
		total++
	}

	ppm := opts.pixelsPerMinute()
	slot := Slot{
		Top:    minuteOfDay(ev.Start, opts.Location) * ppm,
		Height: durationMinutes(ev) * ppm,
		Left:   columnInset,
		Width:  columnSpan,
	}
	if slot.Height < opts.MinHeight {
		slot.Height = opts.MinHeight
	}
	if total > 1 {
		slot.Width = columnSpan / float64(total)
		slot.Left = slot.Width*float64(position) + columnInset
	}
	return slot
}

func indexOf(group []event.Event, ev event.Event) int {
	for i, e := range group {
		if e.ID == ev.ID && e.Start.Equal(ev.Start) && e.End.Equal(ev.End) {
			return i
		}
	}
	return -1
}
