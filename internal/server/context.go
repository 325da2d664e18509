package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/clock"
	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/layout"
	"github.com/teemow/calview/internal/logging"
	"github.com/teemow/calview/internal/store"
	"github.com/teemow/calview/internal/view"
)

// ErrShutdown is returned by ServerContext methods after Shutdown
var ErrShutdown = errors.New("server is shutting down")

// BackendFactory creates the calendar backend of a signed-in account
type BackendFactory func(ctx context.Context, account auth.Account, ts oauth2.TokenSource) (calendar.Backend, error)

// ServerContext holds the shared dependencies of the HTTP and MCP servers
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	auth        *auth.Service
	newBackend  BackendFactory
	clock       clock.Clock
	layoutOpts  layout.Options
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	cache       *store.Storage
	logger      *slog.Logger
	allowWrite  bool

	backends map[string]calendar.Backend // Maps account ID to its backend
	mu       sync.RWMutex
	shutdown bool
}

// ContextOption configures a ServerContext
type ContextOption func(*ServerContext)

// WithClock sets the clock used for "today" and layout
func WithClock(c clock.Clock) ContextOption {
	return func(sc *ServerContext) { sc.clock = c }
}

// WithLayoutOptions sets the layout constants and display zone
func WithLayoutOptions(opts layout.Options) ContextOption {
	return func(sc *ServerContext) { sc.layoutOpts = opts }
}

// WithMetrics enables metric recording
func WithMetrics(m *instrumentation.Metrics) ContextOption {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithAuditLogger enables audit logging of tool calls
func WithAuditLogger(al *instrumentation.AuditLogger) ContextOption {
	return func(sc *ServerContext) { sc.auditLogger = al }
}

// WithEventCache wraps every backend with the sqlite event cache
func WithEventCache(s *store.Storage) ContextOption {
	return func(sc *ServerContext) { sc.cache = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ContextOption {
	return func(sc *ServerContext) { sc.logger = l }
}

// WithAllowWrite enables event creation through MCP tools
func WithAllowWrite(allow bool) ContextOption {
	return func(sc *ServerContext) { sc.allowWrite = allow }
}

// NewServerContext creates a new server context. authSvc must be initialized.
func NewServerContext(ctx context.Context, authSvc *auth.Service, factory BackendFactory, opts ...ContextOption) (*ServerContext, error) {
	if authSvc == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("backend factory is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		auth:       authSvc,
		newBackend: factory,
		clock:      clock.System{},
		layoutOpts: layout.DefaultOptions(),
		logger:     slog.Default(),
		backends:   make(map[string]calendar.Backend),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Auth returns the identity service
func (sc *ServerContext) Auth() *auth.Service {
	return sc.auth
}

// Clock returns the injected clock
func (sc *ServerContext) Clock() clock.Clock {
	return sc.clock
}

// LayoutOptions returns the layout constants
func (sc *ServerContext) LayoutOptions() layout.Options {
	return sc.layoutOpts
}

// Metrics returns the metrics recorder, or nil
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// Logger returns the server logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// AllowWrite reports whether MCP tools may create events
func (sc *ServerContext) AllowWrite() bool {
	return sc.allowWrite
}

// Location returns the display time zone
func (sc *ServerContext) Location() *time.Location {
	if sc.layoutOpts.Location == nil {
		return time.Local
	}
	return sc.layoutOpts.Location
}

// NewController creates an empty calendar view using the server clock,
// layout options and metrics
func (sc *ServerContext) NewController() *view.Controller {
	opts := []view.ControllerOption{
		view.WithClock(sc.clock),
		view.WithLayoutOptions(sc.layoutOpts),
		view.WithLogger(sc.logger),
	}
	if sc.metrics != nil {
		opts = append(opts, view.WithMetrics(sc.metrics))
	}
	return view.NewController(nil, opts...)
}

// AccountByID returns the signed-in account with the given ID
func (sc *ServerContext) AccountByID(ctx context.Context, accountID string) (auth.Account, error) {
	accounts, err := sc.auth.Accounts(ctx)
	if err != nil {
		return auth.Account{}, err
	}
	for _, a := range accounts {
		if a.ID == accountID {
			return a, nil
		}
	}
	return auth.Account{}, auth.ErrNotAuthenticated
}

// BackendForAccount returns the backend of accountID.
// Creates and caches the backend if it doesn't exist yet.
func (sc *ServerContext) BackendForAccount(ctx context.Context, accountID string) (calendar.Backend, error) {
	sc.mu.RLock()
	if sc.shutdown {
		sc.mu.RUnlock()
		return nil, ErrShutdown
	}
	if b, ok := sc.backends[accountID]; ok {
		sc.mu.RUnlock()
		return b, nil
	}
	sc.mu.RUnlock()

	account, err := sc.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Token refreshes outlive the request that created the backend.
	ts, err := sc.auth.TokenSource(sc.ctx, accountID)
	if err != nil {
		return nil, err
	}
	backend, err := sc.newBackend(sc.ctx, account, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar backend: %w", err)
	}
	backend = calendar.NewInstrumented(backend, sc.metrics, sc.logger)
	if sc.cache != nil {
		backend = store.NewCachingBackend(backend, sc.cache, accountID, sc.logger)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if existing, ok := sc.backends[accountID]; ok {
		return existing, nil
	}
	sc.backends[accountID] = backend
	sc.logger.Debug("created calendar backend",
		logging.Backend(backend.Name()),
		logging.UserHash(account.Email))
	return backend, nil
}

// CurrentBackend returns the backend of the current account of the auth
// service. The stdio MCP transport has no session and uses this.
func (sc *ServerContext) CurrentBackend(ctx context.Context) (calendar.Backend, auth.Account, error) {
	account, err := sc.auth.CurrentAccount(ctx)
	if err != nil {
		return nil, auth.Account{}, err
	}
	backend, err := sc.BackendForAccount(ctx, account.ID)
	if err != nil {
		return nil, auth.Account{}, err
	}
	return backend, account, nil
}

// ForgetAccount drops the cached backend and cached events of accountID
func (sc *ServerContext) ForgetAccount(ctx context.Context, accountID string) {
	sc.mu.Lock()
	delete(sc.backends, accountID)
	sc.mu.Unlock()

	if sc.cache != nil {
		if err := sc.cache.Purge(ctx, accountID); err != nil {
			sc.logger.Warn("failed to purge event cache", logging.Err(err))
		}
	}
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context and drops all backends
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.backends = make(map[string]calendar.Backend)
	sc.cancel()
	return nil
}
