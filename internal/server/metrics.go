package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/logging"
)

// DefaultMetricsAddr is used when no address is configured
const DefaultMetricsAddr = ":9090"

const (
	metricsReadHeaderTimeout = 10 * time.Second
	metricsWriteTimeout      = 10 * time.Second
	metricsIdleTimeout       = 60 * time.Second
)

// MetricsServer serves /metrics on its own listener so scrapers never reach
// the sign-in and view routes.
type MetricsServer struct {
	addr       string
	handler    http.Handler
	logger     *slog.Logger
	httpServer *http.Server
}

// MetricsOption configures a MetricsServer
type MetricsOption func(*MetricsServer)

// WithMetricsAddr sets the listen address
func WithMetricsAddr(addr string) MetricsOption {
	return func(s *MetricsServer) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithMetricsLogger sets the logger
func WithMetricsLogger(l *slog.Logger) MetricsOption {
	return func(s *MetricsServer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewMetricsServer creates the metrics server of provider, which must be
// enabled and export to Prometheus.
func NewMetricsServer(provider *instrumentation.Provider, opts ...MetricsOption) (*MetricsServer, error) {
	if provider == nil {
		return nil, fmt.Errorf("instrumentation provider is required for metrics server")
	}
	if !provider.Enabled() {
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	}
	handler := provider.PrometheusHandler()
	if handler == nil {
		return nil, fmt.Errorf("instrumentation provider does not export prometheus metrics")
	}

	s := &MetricsServer{
		addr:    DefaultMetricsAddr,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "metrics")
	return s, nil
}

// Handler returns the routes of the metrics server
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves until Shutdown is called
func (s *MetricsServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: metricsReadHeaderTimeout,
		WriteTimeout:      metricsWriteTimeout,
		IdleTimeout:       metricsIdleTimeout,
	}

	s.logger.Info("metrics server listening", slog.String("addr", s.addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("metrics server stopping")
	return s.httpServer.Shutdown(ctx)
}

func (s *MetricsServer) Addr() string {
	return s.addr
}
