// Package calendar defines the Backend abstraction over calendar services and
// the decorators shared by every implementation.
//
// Concrete backends live in sub-packages: google talks to the Google Calendar
// API and caldav talks to any CalDAV server. Instrumented adds tracing, metrics
// and logging around a Backend, and Multi merges the events of several
// backends into one list.
//
// Example usage:
//
//	ts, _ := authService.TokenSource(ctx, account)
//	primary, err := google.New(ctx, ts, google.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	backend := calendar.NewInstrumented(primary, metrics, logger)
//
//	events, err := backend.ListEvents(ctx, event.Range{Start: from, End: to})
package calendar
