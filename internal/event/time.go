package event

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTime is returned by ParseTime for values in no accepted format
var ErrInvalidTime = errors.New("invalid time")

// timeLayouts are the accepted formats besides RFC 3339
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses an RFC 3339 timestamp, a local date-time or a date.
// Values without an offset are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}
