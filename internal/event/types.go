package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDraft is returned when a Draft cannot be sent to a backend.
var ErrInvalidDraft = errors.New("invalid event draft")

// Event represents a single meeting as returned by a calendar backend
type Event struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Start           time.Time `json:"start" yaml:"start"`
	End             time.Time `json:"end" yaml:"end"`
	IsOnlineMeeting bool      `json:"isOnlineMeeting" yaml:"online"`
	MeetingURL      string    `json:"meetingUrl,omitempty" yaml:"meeting_url"`
	Location        string    `json:"location" yaml:"location"`
	Description     string    `json:"description" yaml:"description"`
	Organizer       string    `json:"organizer" yaml:"organizer"`
	Attendees       []string  `json:"attendees" yaml:"attendees"`
}

// Duration returns the length of the event
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Overlaps reports whether the two events intersect in time.
// Events that only touch (one ends exactly when the other starts) do not overlap.
func (e Event) Overlaps(other Event) bool {
	return e.Start.Before(other.End) && other.Start.Before(e.End)
}

// Matches reports whether the event title, description or location contains
// the query, ignoring case. An empty query matches every event.
func (e Event) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Title), q) ||
		strings.Contains(strings.ToLower(e.Description), q) ||
		strings.Contains(strings.ToLower(e.Location), q)
}

// Range is a half-open time window [Start, End) used to query a backend
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// String formats the range for logs
func (r Range) String() string {
	return r.Start.Format(time.RFC3339) + "/" + r.End.Format(time.RFC3339)
}

// Draft is the input for creating a new meeting
type Draft struct {
	Title           string
	Start           time.Time
	End             time.Time
	TimeZone        string
	Location        string
	Description     string
	Attendees       []string // e-mail addresses
	IsOnlineMeeting bool
}

// Validate checks that the draft can be created
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if d.Start.IsZero() || d.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidDraft)
	}
	if !d.End.After(d.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidDraft)
	}
	if d.TimeZone != "" {
		if _, err := time.LoadLocation(d.TimeZone); err != nil {
			return fmt.Errorf("%w: unknown time zone %q", ErrInvalidDraft, d.TimeZone)
		}
	}
	return nil
}

// ParseAttendees splits a comma-separated attendee field, trimming whitespace
// and dropping empty entries.
func ParseAttendees(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
