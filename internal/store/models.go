package store

import (
	"encoding/json"
	"time"

	"github.com/teemow/calview/internal/event"
)

// eventRow is one cached event. Times are unix milliseconds in UTC.
type eventRow struct {
	AccountID   string `db:"account_id"`
	RangeStart  int64  `db:"range_start"`
	RangeEnd    int64  `db:"range_end"`
	ID          string `db:"id"`
	Title       string `db:"title"`
	StartAt     int64  `db:"start_at"`
	EndAt       int64  `db:"end_at"`
	Online      bool   `db:"online"`
	MeetingURL  string `db:"meeting_url"`
	Location    string `db:"location"`
	Description string `db:"description"`
	Organizer   string `db:"organizer"`
	Attendees   string `db:"attendees"`
	Position    int    `db:"position"`
}

func newEventRow(account string, r event.Range, position int, e event.Event) (eventRow, error) {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	encoded, err := json.Marshal(attendees)
	if err != nil {
		return eventRow{}, err
	}
	return eventRow{
		AccountID:   account,
		RangeStart:  r.Start.UnixMilli(),
		RangeEnd:    r.End.UnixMilli(),
		ID:          e.ID,
		Title:       e.Title,
		StartAt:     e.Start.UnixMilli(),
		EndAt:       e.End.UnixMilli(),
		Online:      e.IsOnlineMeeting,
		MeetingURL:  e.MeetingURL,
		Location:    e.Location,
		Description: e.Description,
		Organizer:   e.Organizer,
		Attendees:   string(encoded),
		Position:    position,
	}, nil
}

// Convert turns the row back into an event with times in loc
func (r eventRow) Convert(loc *time.Location) (event.Event, error) {
	var attendees []string
	if err := json.Unmarshal([]byte(r.Attendees), &attendees); err != nil {
		return event.Event{}, err
	}
	if len(attendees) == 0 {
		attendees = nil
	}
	return event.Event{
		ID:              r.ID,
		Title:           r.Title,
		Start:           time.UnixMilli(r.StartAt).In(loc),
		End:             time.UnixMilli(r.EndAt).In(loc),
		IsOnlineMeeting: r.Online,
		MeetingURL:      r.MeetingURL,
		Location:        r.Location,
		Description:     r.Description,
		Organizer:       r.Organizer,
		Attendees:       attendees,
	}, nil
}
