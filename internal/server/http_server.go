package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/logging"
	"github.com/teemow/calview/internal/view"
)

const (
	// DefaultReadHeaderTimeout bounds the time to read request headers
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout is the keep-alive timeout of the API server
	DefaultIdleTimeout = 120 * time.Second

	maxRequestBody = 1 << 20
)

// HTTPServer serves the calendar API, the browser sign-in flow and the
// health endpoints
type HTTPServer struct {
	sc       *ServerContext
	sessions *SessionManager
	health   *HealthChecker
	mcp      http.Handler
	logger   *slog.Logger

	postLoginRedirect string
	httpServer        *http.Server
}

// HTTPOption configures an HTTPServer
type HTTPOption func(*HTTPServer)

// WithMCPHandler mounts the streamable HTTP MCP endpoint at /mcp
func WithMCPHandler(h http.Handler) HTTPOption {
	return func(s *HTTPServer) { s.mcp = h }
}

// WithPostLoginRedirect sets where the browser is sent after signing in
func WithPostLoginRedirect(path string) HTTPOption {
	return func(s *HTTPServer) { s.postLoginRedirect = path }
}

// NewHTTPServer creates the API server
func NewHTTPServer(sc *ServerContext, sessions *SessionManager, opts ...HTTPOption) *HTTPServer {
	s := &HTTPServer{
		sc:                sc,
		sessions:          sessions,
		health:            NewHealthChecker(sc, WithSessionCounter(sessions)),
		logger:            logging.WithComponent(sc.Logger(), "http"),
		postLoginRedirect: "/api/view",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Health returns the health checker, e.g. to mark the server not ready
// during shutdown
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Handler returns the routed and instrumented handler
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleCallback)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)

	mux.HandleFunc("GET /api/me", s.handleMe)
	mux.HandleFunc("GET /api/view", s.handleGetView)
	mux.HandleFunc("POST /api/view", s.handlePostView)
	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("POST /api/events", s.handleCreateEvent)

	s.health.RegisterHealthEndpoints(mux)

	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}

	// withMetrics wraps the mux directly: it reads the route pattern the mux
	// sets on the request it receives.
	traced := otelhttp.NewHandler(withMetrics(s.sc.Metrics(), mux), "calview.http",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, "/healthz") && r.URL.Path != "/readyz"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "http." + r.Method
		}))
	return withSecurityHeaders(traced)
}

// Start serves on addr until Shutdown is called. TLS is used when certFile
// and keyFile are set.
func (s *HTTPServer) Start(addr, certFile, keyFile string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return s.sc.Context()
		},
	}

	s.logger.Info("starting HTTP server", slog.String("addr", addr), slog.Bool("tls", certFile != ""))
	var err error
	if certFile != "" && keyFile != "" {
		err = s.httpServer.ListenAndServeTLS(certFile, keyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown marks the server not ready and drains open requests
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Resolve(w, r)

	state, err := auth.NewState()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	url, verifier, err := s.sc.Auth().AuthCodeURL(state)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	sess.SetPending(state, verifier)
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *HTTPServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	sess, ok := s.sessions.Lookup(r)
	if !ok {
		writeError(w, s.logger, badRequest("no login in progress"))
		return
	}
	verifier, ok := sess.TakePending(q.Get("state"))
	if !ok {
		writeError(w, s.logger, badRequest("state mismatch"))
		return
	}
	if e := q.Get("error"); e != "" {
		writeError(w, s.logger, fmt.Errorf("%w: provider returned %s", auth.ErrInteractionRequired, e))
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, s.logger, badRequest("missing code"))
		return
	}

	account, err := s.sc.Auth().Exchange(ctx, code, verifier)
	if err != nil {
		writeError(w, s.logger, fmt.Errorf("%w: %v", auth.ErrInteractionRequired, err))
		return
	}
	backend, err := s.sc.BackendForAccount(ctx, account.ID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	sess.SetAccount(account, backend)
	if err := sess.Controller().Refresh(ctx); err != nil {
		// The view reports the error itself; signing in still succeeded.
		s.logger.Warn("initial refresh failed", logging.UserHash(account.Email), logging.Err(err))
	}
	http.Redirect(w, r, s.postLoginRedirect, http.StatusFound)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sess, ok := s.sessions.Lookup(r); ok {
		if account, signedIn := sess.Account(); signedIn {
			if err := s.sc.Auth().Logout(ctx, account.ID); err != nil {
				s.logger.Warn("failed to remove token", logging.Err(err))
			}
			s.sc.ForgetAccount(ctx, account.ID)
		}
		sess.ClearAccount()
	}
	s.sessions.Remove(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// meResponse describes the signed-in user
type meResponse struct {
	Account  auth.Account      `json:"account"`
	Provider auth.ProviderKind `json:"provider"`
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	_, account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Account: account, Provider: s.sc.Auth().Provider()})
}

func (s *HTTPServer) handleGetView(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	ctrl := sess.Controller()
	if !ctrl.Loaded() {
		if err := ctrl.Refresh(r.Context()); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}
	s.writeState(w, r.Context(), ctrl)
}

// viewRequest changes the page of a session view. Empty fields keep their
// current value.
type viewRequest struct {
	View   string  `json:"view"`
	Date   string  `json:"date"`
	Action string  `json:"action"`
	Query  *string `json:"query"`
}

func (s *HTTPServer) handlePostView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, _, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	move := view.Move{Kind: view.Kind(req.View), Action: view.Action(req.Action)}
	if req.Date != "" {
		date, err := parseTime(req.Date, s.sc.Location())
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		move.Date = date
	}

	ctrl := sess.Controller()
	if req.Query != nil {
		ctrl.Search(*req.Query)
	}

	// A pure search filters loaded events without a fetch.
	if move != (view.Move{}) || !ctrl.Loaded() {
		if err := ctrl.Move(ctx, move); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}
	s.writeState(w, ctx, ctrl)
}

// writeState writes the laid out page. Upstream error details are not exposed.
func (s *HTTPServer) writeState(w http.ResponseWriter, ctx context.Context, ctrl *view.Controller) {
	state := ctrl.Snapshot(ctx)
	if err := ctrl.Err(); err != nil {
		_, body := classify(err)
		state.Error = body.Message
	}
	writeJSON(w, http.StatusOK, state)
}

// eventsResponse is the raw event list of a range
type eventsResponse struct {
	Range  event.Range   `json:"range"`
	Events []event.Event `json:"events"`
}

func (s *HTTPServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	rng, err := s.parseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	backend, err := s.sc.BackendForAccount(ctx, account.ID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	events, err := backend.ListEvents(ctx, rng)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Range: rng, Events: events})
}

// createEventRequest is the body of POST /api/events.
// Attendees is a comma separated list of e-mail addresses.
type createEventRequest struct {
	Title           string `json:"title"`
	Start           string `json:"start"`
	End             string `json:"end"`
	TimeZone        string `json:"timeZone"`
	Location        string `json:"location"`
	Description     string `json:"description"`
	Attendees       string `json:"attendees"`
	IsOnlineMeeting bool   `json:"isOnlineMeeting"`
}

func (r createEventRequest) draft(fallback *time.Location) (event.Draft, error) {
	loc := fallback
	if r.TimeZone != "" {
		l, err := time.LoadLocation(r.TimeZone)
		if err != nil {
			return event.Draft{}, fmt.Errorf("%w: unknown time zone %q", event.ErrInvalidDraft, r.TimeZone)
		}
		loc = l
	}
	d := event.Draft{
		Title:           strings.TrimSpace(r.Title),
		TimeZone:        r.TimeZone,
		Location:        r.Location,
		Description:     r.Description,
		Attendees:       event.ParseAttendees(r.Attendees),
		IsOnlineMeeting: r.IsOnlineMeeting,
	}
	var err error
	if r.Start != "" {
		if d.Start, err = parseTime(r.Start, loc); err != nil {
			return event.Draft{}, err
		}
	}
	if r.End != "" {
		if d.End, err = parseTime(r.End, loc); err != nil {
			return event.Draft{}, err
		}
	}
	return d, d.Validate()
}

func (s *HTTPServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}

	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	draft, err := req.draft(s.sc.Location())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	backend, err := s.sc.BackendForAccount(ctx, account.ID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	created, err := backend.CreateEvent(ctx, draft)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if err := sess.Controller().Refresh(ctx); err != nil {
		s.logger.Warn("refresh after create failed", logging.Err(err))
	}
	writeJSON(w, http.StatusCreated, created)
}

// requireAccount returns the signed-in session of r or writes a 401
func (s *HTTPServer) requireAccount(w http.ResponseWriter, r *http.Request) (*Session, auth.Account, bool) {
	sess, ok := s.sessions.Lookup(r)
	if !ok {
		writeError(w, s.logger, auth.ErrNotAuthenticated)
		return nil, auth.Account{}, false
	}
	account, ok := sess.Account()
	if !ok {
		writeError(w, s.logger, auth.ErrNotAuthenticated)
		return nil, auth.Account{}, false
	}
	return sess, account, true
}

func (s *HTTPServer) parseRange(startParam, endParam string) (event.Range, error) {
	if startParam == "" || endParam == "" {
		return event.Range{}, badRequest("start and end are required")
	}
	start, err := parseTime(startParam, s.sc.Location())
	if err != nil {
		return event.Range{}, err
	}
	end, err := parseTime(endParam, s.sc.Location())
	if err != nil {
		return event.Range{}, err
	}
	if !end.After(start) {
		return event.Range{}, badRequest("end must be after start")
	}
	return event.Range{Start: start, End: end}, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	t, err := event.ParseTime(s, loc)
	if err != nil {
		return time.Time{}, badRequest("%v", err)
	}
	return t, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
