// Package store caches listed calendar events in a local SQLite database.
//
// Events are stored per account and per queried range. CachingBackend wraps a
// calendar.Backend so that a failed listing can still be answered from the
// last successful one.
package store
