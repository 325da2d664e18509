// Package event defines the calendar event model shared by the backends,
// the layout engine and the view layer.
//
// Events are immutable value objects once fetched. Everything derived from
// them (groups, layout slots, view pages) is computed alongside, never stored
// back on the Event.
package event
