package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusUnavailable  = "unavailable"
)

// tokenStoreTimeout bounds the token store probe of /readyz
const tokenStoreTimeout = 2 * time.Second

// SessionCounter reports the number of live sessions. SessionManager implements it.
type SessionCounter interface {
	Len() int
}

// HealthChecker serves /healthz, /readyz and /healthz/detailed.
//
// Liveness only says the process answers. Readiness also requires that the
// server was not marked draining, that the server context is not shut down,
// and that the token store can list accounts.
type HealthChecker struct {
	ready     atomic.Bool
	version   atomic.Value
	sc        *ServerContext
	sessions  SessionCounter
	startTime time.Time
}

// HealthOption configures a HealthChecker
type HealthOption func(*HealthChecker)

// WithSessionCounter adds the session count to the detailed health response
func WithSessionCounter(c SessionCounter) HealthOption {
	return func(h *HealthChecker) { h.sessions = c }
}

// NewHealthChecker creates a ready HealthChecker. sc may be nil in tests, in
// which case only the ready flag is checked.
func NewHealthChecker(sc *ServerContext, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{sc: sc, startTime: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	h.ready.Store(true)
	return h
}

// SetReady marks the server ready or draining
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// SetVersion sets the version reported by /healthz/detailed
func (h *HealthChecker) SetVersion(v string) {
	h.version.Store(v)
}

// HealthResponse is the body of /healthz and /readyz
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed
type DetailedHealthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version,omitempty"`
	Provider string `json:"provider,omitempty"`
	Accounts *int   `json:"accounts,omitempty"`
	Sessions *int   `json:"sessions,omitempty"`
}

// check runs the readiness checks. The overall status is the first failing
// check, or ok.
func (h *HealthChecker) check(ctx context.Context) (string, map[string]string) {
	status := healthStatusOK
	checks := make(map[string]string, 3)
	record := func(name, result string) {
		checks[name] = result
		if result != healthStatusOK && status == healthStatusOK {
			status = result
		}
	}

	if h.ready.Load() {
		record("ready", healthStatusOK)
	} else {
		record("ready", healthStatusNotReady)
	}

	if h.sc == nil {
		return status, checks
	}
	if h.sc.IsShutdown() {
		record("shutdown", healthStatusShuttingDown)
		return status, checks
	}
	record("shutdown", healthStatusOK)

	ctx, cancel := context.WithTimeout(ctx, tokenStoreTimeout)
	defer cancel()
	if _, err := h.sc.Auth().Accounts(ctx); err != nil {
		record("token_store", healthStatusUnavailable)
	} else {
		record("token_store", healthStatusOK)
	}
	return status, checks
}

// LivenessHandler serves /healthz
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler serves /readyz
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, checks := h.check(r.Context())
		code := http.StatusOK
		if status != healthStatusOK {
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler serves /healthz/detailed
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, _ := h.check(r.Context())
		resp := DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if v, ok := h.version.Load().(string); ok {
			resp.Version = v
		}
		if h.sc != nil {
			resp.Provider = string(h.sc.Auth().Provider())
			if accounts, err := h.sc.Auth().Accounts(r.Context()); err == nil {
				n := len(accounts)
				resp.Accounts = &n
			}
		}
		if h.sessions != nil {
			n := h.sessions.Len()
			resp.Sessions = &n
		}

		code := http.StatusOK
		if status != healthStatusOK {
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, resp)
	})
}

// RegisterHealthEndpoints registers the health routes on mux
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}

func writeHealth(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
