// Package view turns a list of events into the day, week and month pages of
// the calendar and keeps per-user navigation state.
//
// Range computation (RangeFor), navigation (Step) and page assembly (Build)
// are pure functions. Controller wraps them with the mutable state of one
// signed-in user: the selected view and date, the search query and the events
// of the last successful fetch.
//
// Every Controller.Refresh is stamped with a sequence number. A fetch that
// completes after a newer refresh has been issued is discarded, so a slow
// response for last week can never overwrite the events of this week.
package view
