package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/teemow/calview/internal/event"
)

// Vendor properties carrying online meeting links
var meetingProps = []string{
	"X-GOOGLE-CONFERENCE",
	"X-MICROSOFT-SKYPETEAMSMEETINGURL",
	"X-MICROSOFT-ONLINEMEETINGCONFLINK",
	ical.PropURL,
}

// toEvent converts a VEVENT. Floating times are read in loc.
func toEvent(ve ical.Event, loc *time.Location) (event.Event, bool) {
	start, err := ve.DateTimeStart(loc)
	if err != nil || start.IsZero() {
		return event.Event{}, false
	}
	end, err := ve.DateTimeEnd(loc)
	if err != nil {
		return event.Event{}, false
	}
	if end.IsZero() || end.Before(start) {
		end = start
	}

	e := event.Event{
		ID:          text(ve.Props, ical.PropUID),
		Title:       text(ve.Props, ical.PropSummary),
		Start:       start,
		End:         end,
		Location:    text(ve.Props, ical.PropLocation),
		Description: text(ve.Props, ical.PropDescription),
	}

	// Occurrences of a series share a UID; keep instance IDs distinct.
	if rid, ok := recurrenceID(ve, loc); ok {
		e.ID = instanceID(e.ID, rid)
	}

	if org := ve.Props.Get(ical.PropOrganizer); org != nil {
		e.Organizer = person(*org)
	}
	for _, att := range ve.Props.Values(ical.PropAttendee) {
		e.Attendees = append(e.Attendees, person(att))
	}

	for _, name := range meetingProps {
		if v := text(ve.Props, name); strings.HasPrefix(v, "https://") {
			e.MeetingURL = v
			e.IsOnlineMeeting = true
			break
		}
	}
	return e, true
}

// toCalendar builds the iCalendar object for a new event
func toCalendar(uid string, d event.Draft, now time.Time) *ical.Calendar {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, d.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now)
	ve.Props.SetDateTime(ical.PropDateTimeStart, d.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, d.End.UTC())

	if d.Description != "" {
		ve.Props.SetText(ical.PropDescription, d.Description)
	}
	if d.Location != "" {
		ve.Props.SetText(ical.PropLocation, d.Location)
	}
	for _, attendee := range d.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = fmt.Sprintf("mailto:%s", attendee)
		ve.Props.Add(p)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//calview//EN")
	cal.Children = append(cal.Children, ve)
	return cal
}

func text(props ical.Props, name string) string {
	v, err := props.Text(name)
	if err != nil {
		return ""
	}
	return v
}

// person prefers the common name and falls back to the mail address
func person(p ical.Prop) string {
	if cn := p.Params.Get(ical.ParamCommonName); cn != "" {
		return cn
	}
	return strings.TrimPrefix(strings.TrimPrefix(p.Value, "mailto:"), "MAILTO:")
}
