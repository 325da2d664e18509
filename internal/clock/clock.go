// Package clock provides an injectable source of the current time so that
// "is today" checks and view navigation stay deterministic under test.
package clock

import "time"

// Clock returns the current time
type Clock interface {
	Now() time.Time
}

// System is the wall clock
type System struct{}

// Now returns time.Now()
func (System) Now() time.Time {
	return time.Now()
}

// Fixed always returns the same instant
type Fixed time.Time

// Now returns the fixed instant
func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// Func adapts a plain function to the Clock interface
type Func func() time.Time

// Now calls f
func (f Func) Now() time.Time {
	return f()
}
