package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/layout"
	"github.com/teemow/calview/internal/logging"
)

// Refresh outcomes reported to Metrics
const (
	RefreshApplied = "applied"
	RefreshStale   = "stale"
	RefreshError   = "error"
)

// ErrNoSource is returned by Refresh when the controller has no event source,
// for example after the user signed out.
var ErrNoSource = errors.New("no event source")

// Source lists the events of a time window.
// calendar.Backend satisfies this interface.
type Source interface {
	ListEvents(ctx context.Context, r event.Range) ([]event.Event, error)
}

// Metrics receives view measurements. instrumentation.Metrics implements it.
type Metrics interface {
	RecordViewRefresh(ctx context.Context, view, result string)
	RecordLayoutPass(ctx context.Context, view string, events int, groupSizes []int)
}

// State is a consistent snapshot of a Controller
type State struct {
	Page
	Loading   bool      `json:"loading"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetchedAt,omitempty"`
	Seq       uint64    `json:"seq"`
}

// Controller holds the navigation state and loaded events of one user.
// It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	source  Source
	clock   clock.Clock
	opts    layout.Options
	metrics Metrics
	logger  *slog.Logger

	kind      Kind
	date      time.Time
	query     string
	events    []event.Event
	fetchedAt time.Time
	lastErr   error

	// seq is the number of the most recently issued refresh.
	seq     uint64
	loading bool
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithClock sets the time source used for "today"
func WithClock(c clock.Clock) ControllerOption {
	return func(ctrl *Controller) {
		ctrl.clock = c
	}
}

// WithLayoutOptions sets the layout constants and display location
func WithLayoutOptions(opts layout.Options) ControllerOption {
	return func(ctrl *Controller) {
		ctrl.opts = opts
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) ControllerOption {
	return func(ctrl *Controller) {
		ctrl.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ControllerOption {
	return func(ctrl *Controller) {
		ctrl.logger = l
	}
}

// WithKind sets the initial view kind
func WithKind(k Kind) ControllerOption {
	return func(ctrl *Controller) {
		ctrl.kind = k
	}
}

// NewController creates a controller showing the week of today
func NewController(source Source, opts ...ControllerOption) *Controller {
	c := &Controller{
		source: source,
		clock:  clock.System{},
		opts:   layout.DefaultOptions(),
		logger: slog.Default(),
		kind:   KindWeek,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.opts.Location == nil {
		c.opts.Location = time.Local
	}
	c.date = StartOfDay(c.clock.Now(), c.opts.Location)
	return c
}

// SetSource replaces the event source and drops loaded events
func (c *Controller) SetSource(source Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = source
	c.resetLocked()
}

// Clear drops loaded events and the event source. In-flight refreshes are
// discarded when they complete.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = nil
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.events = nil
	c.lastErr = nil
	c.fetchedAt = time.Time{}
	c.loading = false
	c.seq++
}

// SetView switches the page kind and reloads
func (c *Controller) SetView(ctx context.Context, kind Kind) error {
	c.mu.Lock()
	c.kind = kind
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetDate moves to the page containing date and reloads
func (c *Controller) SetDate(ctx context.Context, date time.Time) error {
	c.mu.Lock()
	c.date = StartOfDay(date, c.opts.Location)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Today moves to the page containing the current date and reloads
func (c *Controller) Today(ctx context.Context) error {
	return c.SetDate(ctx, c.clock.Now())
}

// Navigate applies a prev, next or today action and reloads
func (c *Controller) Navigate(ctx context.Context, action Action) error {
	switch action {
	case ActionToday:
		return c.Today(ctx)
	case ActionPrev, ActionNext:
		dir := 1
		if action == ActionPrev {
			dir = -1
		}
		c.mu.Lock()
		c.date = Step(c.kind, c.date, dir)
		c.mu.Unlock()
		return c.Refresh(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Move is a combined navigation request. Zero fields are left unchanged;
// Kind and Date are applied before Action.
type Move struct {
	Kind   Kind
	Date   time.Time
	Action Action
}

// Move applies m and reloads once
func (c *Controller) Move(ctx context.Context, m Move) error {
	if m.Kind != "" {
		kind, err := ParseKind(string(m.Kind))
		if err != nil {
			return err
		}
		m.Kind = kind
	}
	if m.Action != "" {
		if _, err := ParseAction(string(m.Action)); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if m.Kind != "" {
		c.kind = m.Kind
	}
	if !m.Date.IsZero() {
		c.date = StartOfDay(m.Date, c.opts.Location)
	}
	switch m.Action {
	case ActionToday:
		c.date = StartOfDay(c.clock.Now(), c.opts.Location)
	case ActionPrev:
		c.date = Step(c.kind, c.date, -1)
	case ActionNext:
		c.date = Step(c.kind, c.date, 1)
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Search sets the filter query. Loaded events are filtered locally, no fetch
// is issued.
func (c *Controller) Search(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = query
}

// Refresh fetches the events of the current page.
//
// Only the most recently issued refresh may change the loaded events. When a
// newer refresh (or Clear) happened while this one was in flight, its result
// is discarded and Refresh returns nil.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	kind := c.kind
	rng := RangeFor(kind, c.date, c.opts.Location)
	source := c.source
	c.loading = true
	c.mu.Unlock()

	if source == nil {
		c.mu.Lock()
		if seq == c.seq {
			c.loading = false
			c.lastErr = ErrNoSource
		}
		c.mu.Unlock()
		return ErrNoSource
	}

	events, err := source.ListEvents(ctx, rng)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		c.logger.Debug("discarding stale refresh",
			logging.View(string(kind)),
			logging.Range(rng),
			slog.Uint64("seq", seq),
			slog.Uint64("latest", c.seq))
		c.record(ctx, kind, RefreshStale)
		return nil
	}

	c.loading = false
	if err != nil {
		c.events = nil
		c.lastErr = err
		c.logger.Warn("refresh failed",
			logging.View(string(kind)),
			logging.Range(rng),
			logging.Err(err))
		c.record(ctx, kind, RefreshError)
		return err
	}

	c.events = events
	c.lastErr = nil
	c.fetchedAt = c.clock.Now()
	c.logger.Debug("refresh applied",
		logging.View(string(kind)),
		logging.Range(rng),
		logging.Count(len(events)))
	c.record(ctx, kind, RefreshApplied)
	return nil
}

func (c *Controller) record(ctx context.Context, kind Kind, result string) {
	if c.metrics != nil {
		c.metrics.RecordViewRefresh(ctx, string(kind), result)
	}
}

// Range returns the query window of the current page
func (c *Controller) Range() event.Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RangeFor(c.kind, c.date, c.opts.Location)
}

// Snapshot lays out the current page and returns it with the loading state.
func (c *Controller) Snapshot(ctx context.Context) State {
	c.mu.Lock()
	kind, date, query := c.kind, c.date, c.query
	events := make([]event.Event, len(c.events))
	copy(events, c.events)
	state := State{
		Loading:   c.loading,
		FetchedAt: c.fetchedAt,
		Seq:       c.seq,
	}
	if c.lastErr != nil {
		state.Error = c.lastErr.Error()
	}
	c.mu.Unlock()

	_, span := instrumentation.StartLayoutSpan(ctx, string(kind), len(events))
	state.Page = Build(kind, date, events, query, c.opts, c.clock)
	span.End()

	if c.metrics != nil {
		c.metrics.RecordLayoutPass(ctx, string(kind), state.EventCount(), state.GroupSizes)
	}
	return state
}

// Err returns the error of the last applied refresh, if any
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Loaded reports whether a refresh has completed since the last reset
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.fetchedAt.IsZero() || c.lastErr != nil
}
