package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/calview/internal/event"
)

// Multi merges several backends into one. Events are listed from all of them
// concurrently; new events are created in the first (primary) backend.
type Multi struct {
	backends []Backend
}

// NewMulti combines backends. The first one is the primary.
func NewMulti(backends ...Backend) (*Multi, error) {
	if len(backends) == 0 {
		return nil, errors.New("at least one backend is required")
	}
	return &Multi{backends: backends}, nil
}

// Name joins the names of the combined backends
func (m *Multi) Name() string {
	names := make([]string, 0, len(m.backends))
	for _, b := range m.backends {
		names = append(names, b.Name())
	}
	return strings.Join(names, "+")
}

// ListEvents fans out to every backend. Any failure fails the whole listing.
// Event IDs are prefixed with the backend name to keep them unique.
func (m *Multi) ListEvents(ctx context.Context, r event.Range) ([]event.Event, error) {
	if len(m.backends) == 1 {
		return m.backends[0].ListEvents(ctx, r)
	}

	results := make([][]event.Event, len(m.backends))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range m.backends {
		g.Go(func() error {
			events, err := b.ListEvents(gctx, r)
			if err != nil {
				return fmt.Errorf("%s: %w", b.Name(), err)
			}
			for j := range events {
				events[j].ID = b.Name() + ":" + events[j].ID
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]event.Event, 0)
	for _, events := range results {
		merged = append(merged, events...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	return merged, nil
}

// CreateEvent creates the event in the primary backend
func (m *Multi) CreateEvent(ctx context.Context, d event.Draft) (event.Event, error) {
	primary := m.backends[0]
	created, err := primary.CreateEvent(ctx, d)
	if err != nil || len(m.backends) == 1 {
		return created, err
	}
	created.ID = primary.Name() + ":" + created.ID
	return created, nil
}
