// Package google implements calendar.Backend on top of the Google Calendar API.
//
// Recurring events are expanded server side (singleEvents) and results are
// paged through until the requested window is exhausted. Meetings created
// with IsOnlineMeeting set get a Google Meet conference attached.
package google
