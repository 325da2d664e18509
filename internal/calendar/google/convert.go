package google

import (
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/teemow/calview/internal/event"
)

const statusCancelled = "cancelled"

// toEvent converts an API event. It reports false for nil or cancelled
// events and for events whose start or end cannot be parsed.
func toEvent(ge *gcal.Event, loc *time.Location) (event.Event, bool) {
	if ge == nil || ge.Status == statusCancelled {
		return event.Event{}, false
	}

	start, ok := parseEventTime(ge.Start, loc)
	if !ok {
		return event.Event{}, false
	}
	end, ok := parseEventTime(ge.End, loc)
	if !ok {
		return event.Event{}, false
	}

	e := event.Event{
		ID:          ge.Id,
		Title:       ge.Summary,
		Start:       start,
		End:         end,
		Location:    ge.Location,
		Description: ge.Description,
		MeetingURL:  meetingURL(ge),
	}
	e.IsOnlineMeeting = e.MeetingURL != ""

	if ge.Organizer != nil {
		e.Organizer = displayName(ge.Organizer.DisplayName, ge.Organizer.Email)
	}
	for _, att := range ge.Attendees {
		if att == nil {
			continue
		}
		e.Attendees = append(e.Attendees, displayName(att.DisplayName, att.Email))
	}

	return e, true
}

func parseEventTime(dt *gcal.EventDateTime, loc *time.Location) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, err == nil
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		return t, err == nil
	}
	return time.Time{}, false
}

// meetingURL returns the video entry point of the conference, if any
func meetingURL(ge *gcal.Event) string {
	if ge.ConferenceData != nil {
		for _, ep := range ge.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "video" {
				return ep.Uri
			}
		}
	}
	return ge.HangoutLink
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
