package event

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 4, hour, minute, 0, 0, time.UTC)
}

func TestEvent_Overlaps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Event
		expected bool
	}{
		{
			name:     "partial overlap",
			a:        Event{Start: at(9, 0), End: at(10, 0)},
			b:        Event{Start: at(9, 30), End: at(11, 0)},
			expected: true,
		},
		{
			name:     "contained",
			a:        Event{Start: at(9, 0), End: at(12, 0)},
			b:        Event{Start: at(10, 0), End: at(11, 0)},
			expected: true,
		},
		{
			name:     "back to back",
			a:        Event{Start: at(9, 0), End: at(10, 0)},
			b:        Event{Start: at(10, 0), End: at(11, 0)},
			expected: false,
		},
		{
			name:     "disjoint",
			a:        Event{Start: at(9, 0), End: at(10, 0)},
			b:        Event{Start: at(13, 0), End: at(14, 0)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.expected, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestEvent_Matches(t *testing.T) {
	e := Event{Title: "Weekly Standup", Description: "Sprint sync", Location: "Room Berlin"}

	tests := []struct {
		query    string
		expected bool
	}{
		{"", true},
		{"   ", true},
		{"standup", true},
		{"SPRINT", true},
		{"berlin", true},
		{"retro", false},
	}

	for _, tt := range tests {
		if got := e.Matches(tt.query); got != tt.expected {
			t.Errorf("Matches(%q) = %v, want %v", tt.query, got, tt.expected)
		}
	}
}

func TestDraft_Validate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr bool
	}{
		{
			name:  "valid",
			draft: Draft{Title: "Planning", Start: at(9, 0), End: at(10, 0)},
		},
		{
			name:  "valid with time zone",
			draft: Draft{Title: "Planning", Start: at(9, 0), End: at(10, 0), TimeZone: "Europe/Berlin"},
		},
		{
			name:    "missing title",
			draft:   Draft{Title: "  ", Start: at(9, 0), End: at(10, 0)},
			wantErr: true,
		},
		{
			name:    "missing start",
			draft:   Draft{Title: "Planning", End: at(10, 0)},
			wantErr: true,
		},
		{
			name:    "end before start",
			draft:   Draft{Title: "Planning", Start: at(10, 0), End: at(9, 0)},
			wantErr: true,
		},
		{
			name:    "zero length",
			draft:   Draft{Title: "Planning", Start: at(10, 0), End: at(10, 0)},
			wantErr: true,
		},
		{
			name:    "unknown time zone",
			draft:   Draft{Title: "Planning", Start: at(9, 0), End: at(10, 0), TimeZone: "Mars/Olympus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDraft))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAttendees(t *testing.T) {
	assert.Nil(t, ParseAttendees(""))
	assert.Nil(t, ParseAttendees(" , ,"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, ParseAttendees(" a@example.com,,b@example.com "))
}

func TestFilter(t *testing.T) {
	events := []Event{
		{ID: "1", Title: "Standup"},
		{ID: "2", Title: "Lunch", Location: "Canteen"},
		{ID: "3", Title: "Retro", Description: "standup follow-up"},
	}

	got := Filter(events, "standup")
	assert.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	all := Filter(events, "")
	assert.Len(t, all, 3)
	all[0].Title = "changed"
	assert.Equal(t, "Standup", events[0].Title, "Filter must not alias the input")
}

func TestOnDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}

	events := []Event{
		{ID: "morning", Start: at(8, 0), End: at(9, 0)},
		// 23:30 UTC on March 4 is 00:30 on March 5 in Berlin
		{ID: "late", Start: at(23, 30), End: at(23, 45)},
	}

	utcDay := OnDay(events, at(12, 0), time.UTC)
	assert.Len(t, utcDay, 2)

	berlinDay := OnDay(events, time.Date(2025, time.March, 4, 12, 0, 0, 0, berlin), berlin)
	assert.Len(t, berlinDay, 1)
	assert.Equal(t, "morning", berlinDay[0].ID)
}

func TestRange_Contains(t *testing.T) {
	r := Range{Start: at(9, 0), End: at(10, 0)}
	assert.True(t, r.Contains(at(9, 0)))
	assert.True(t, r.Contains(at(9, 59)))
	assert.False(t, r.Contains(at(10, 0)))
	assert.False(t, r.Contains(at(8, 59)))
}
