package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/logging"
)

// CachingBackend saves every successful listing and answers from the cache
// when the wrapped backend fails.
type CachingBackend struct {
	next    calendar.Backend
	storage *Storage
	account string
	logger  *slog.Logger
}

// NewCachingBackend wraps next with the cache of account.
func NewCachingBackend(next calendar.Backend, storage *Storage, account string, logger *slog.Logger) *CachingBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingBackend{
		next:    next,
		storage: storage,
		account: account,
		logger:  logging.WithBackend(logger, next.Name()),
	}
}

// Name returns the name of the wrapped backend
func (b *CachingBackend) Name() string {
	return b.next.Name()
}

// ListEvents lists through the wrapped backend. On failure the last cached
// listing of r is returned instead, if there is one.
func (b *CachingBackend) ListEvents(ctx context.Context, r event.Range) ([]event.Event, error) {
	events, err := b.next.ListEvents(ctx, r)
	if err == nil {
		if saveErr := b.storage.SaveRange(ctx, b.account, r, events); saveErr != nil {
			b.logger.Warn("failed to cache events", logging.Range(r), logging.Err(saveErr))
		}
		return events, nil
	}

	cached, cacheErr := b.storage.LoadRange(ctx, b.account, r)
	if cacheErr != nil {
		if !errors.Is(cacheErr, ErrNotFound) {
			b.logger.Warn("failed to read event cache", logging.Range(r), logging.Err(cacheErr))
		}
		return nil, err
	}

	b.logger.Warn("serving stale events from cache",
		logging.Range(r),
		logging.Count(len(cached.Events)),
		slog.Time("fetched_at", cached.FetchedAt),
		logging.Err(err))
	return cached.Events, nil
}

// CreateEvent passes through to the wrapped backend
func (b *CachingBackend) CreateEvent(ctx context.Context, d event.Draft) (event.Event, error) {
	return b.next.CreateEvent(ctx, d)
}
