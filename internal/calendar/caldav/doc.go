// Package caldav implements calendar.Backend for CalDAV servers such as
// iCloud, Fastmail or Nextcloud.
//
// The calendar is located by display name through principal and home-set
// discovery. Events are read with a calendar-query REPORT restricted to the
// requested window (recurrences expanded by the server) and written as
// single-VEVENT iCalendar objects named after a random UID.
package caldav
