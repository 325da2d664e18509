package calendar

import (
	"context"
	"errors"

	"github.com/teemow/calview/internal/event"
)

// ErrNotFound is returned when a configured calendar does not exist
var ErrNotFound = errors.New("calendar not found")

// Operation names reported by Instrumented
const (
	OpList   = "list"
	OpCreate = "create"
)

// Backend is a calendar service holding the events of one account
type Backend interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// ListEvents returns the events starting inside r, ordered by start.
	// Recurring events are expanded into single instances.
	ListEvents(ctx context.Context, r event.Range) ([]event.Event, error)

	// CreateEvent creates a meeting from d and returns it as stored
	CreateEvent(ctx context.Context, d event.Draft) (event.Event, error)
}
