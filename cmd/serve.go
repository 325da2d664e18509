package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/calview/internal/config"
	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/logging"
	"github.com/teemow/calview/internal/resources"
	"github.com/teemow/calview/internal/server"
	"github.com/teemow/calview/internal/tools/calendar_tools"
)

// Transports accepted by --transport
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

const shutdownTimeout = 30 * time.Second

const mcpInstructions = `calview lays out calendar events for day, week and month views.
Use calendar_list_events to read events, calendar_layout to get the computed
position of every event on a page, and calendar_create_event (when enabled)
to create meetings. Every tool accepts an optional account argument; read the
calview://accounts resource to see which accounts are signed in.`

// serveOptions holds the serve flags
type serveOptions struct {
	transport        string
	httpAddr         string
	baseURL          string
	allowWrite       bool
	sessionTTL       time.Duration
	tlsCertFile      string
	tlsKeyFile       string
	metricsEnabled   bool
	metricsAddr      string
	disableStreaming bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calview server",
		Long: `Start calview with one of two transports:
  - http: browser sign-in (/auth/login), the JSON view API (/api/view,
    /api/events), health endpoints and the MCP streamable HTTP endpoint (/mcp)
  - stdio: an MCP server on standard input/output acting for the account
    signed in with 'calview login'

Safety Mode:
  By default MCP clients can only read. Use --allow-write to register the
  calendar_create_event tool.

Configuration:
  Settings come from --config, then CALVIEW_* environment variables, then flags.
  The identity provider needs CALVIEW_CLIENT_ID (or GOOGLE_CLIENT_ID) and
  usually CALVIEW_CLIENT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			opts.applyEnv(cmd)
			opts.applyTo(cmd, &cfg)
			return runServe(cmd.Context(), cfg, opts)
		},
	}

	opts.bindFlags(cmd)
	return cmd
}

// bindFlags registers the serve flags on cmd
func (o *serveOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.transport, "transport", TransportHTTP, "Transport type: http or stdio. Can also use CALVIEW_TRANSPORT env var.")
	f.StringVar(&o.httpAddr, "http-addr", config.DefaultHTTPAddr, "HTTP server address (http transport)")
	f.StringVar(&o.baseURL, "base-url", config.DefaultBaseURL, "Public base URL used for the sign-in redirect (http transport)")
	f.BoolVar(&o.allowWrite, "allow-write", false, "Enable the event creation MCP tool. Can also use CALVIEW_ALLOW_WRITE env var.")
	f.DurationVar(&o.sessionTTL, "session-ttl", server.DefaultSessionTTL, "Idle lifetime of browser sessions")
	f.StringVar(&o.tlsCertFile, "tls-cert-file", "", "Path to TLS certificate file (PEM format). Can also use TLS_CERT_FILE env var.")
	f.StringVar(&o.tlsKeyFile, "tls-key-file", "", "Path to TLS private key file (PEM format). Can also use TLS_KEY_FILE env var.")
	f.BoolVar(&o.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	f.StringVar(&o.metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Metrics server address")
	f.BoolVar(&o.disableStreaming, "disable-streaming", false, "Disable SSE streaming on the MCP HTTP endpoint (for compatibility with certain clients)")
}

// applyEnv fills flags that were not set on the command line from the environment
func (o *serveOptions) applyEnv(cmd *cobra.Command) {
	if !cmd.Flags().Changed("transport") {
		if v := os.Getenv("CALVIEW_TRANSPORT"); v != "" {
			o.transport = v
		}
	}
	if !cmd.Flags().Changed("allow-write") {
		if v, err := strconv.ParseBool(os.Getenv("CALVIEW_ALLOW_WRITE")); err == nil {
			o.allowWrite = v
		}
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if v, err := strconv.ParseBool(os.Getenv("METRICS_ENABLED")); err == nil {
			o.metricsEnabled = v
		}
	}
	if o.tlsCertFile == "" {
		o.tlsCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if o.tlsKeyFile == "" {
		o.tlsKeyFile = os.Getenv("TLS_KEY_FILE")
	}
}

// applyTo overrides cfg with the flags set on the command line. Flags left at
// their default keep the value from the config file and environment.
func (o *serveOptions) applyTo(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("http-addr") {
		cfg.Server.Addr = o.httpAddr
	}
	if changed("base-url") {
		cfg.Server.BaseURL = o.baseURL
	}
	if changed("session-ttl") || cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = o.sessionTTL
	}
	if o.tlsCertFile != "" {
		cfg.Server.TLSCert = o.tlsCertFile
	}
	if o.tlsKeyFile != "" {
		cfg.Server.TLSKey = o.tlsKeyFile
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if changed("metrics-enabled") || os.Getenv("METRICS_ENABLED") != "" {
		cfg.Metrics.Enabled = o.metricsEnabled
	}
	if changed("allow-write") || os.Getenv("CALVIEW_ALLOW_WRITE") != "" {
		cfg.AllowWrite = o.allowWrite
	}
}

func runServe(parent context.Context, cfg config.Config, opts *serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	if opts.transport != TransportHTTP && opts.transport != TransportStdio {
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", opts.transport, TransportHTTP, TransportStdio)
	}

	cfg.Telemetry.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	a, err := newApp(ctx, cfg, provider.Metrics(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	mcpSrv, err := newMCPServer(a.sc)
	if err != nil {
		return err
	}

	if cfg.AllowWrite {
		logger.Info("starting with write operations enabled")
	} else {
		logger.Info("starting in read-only mode (use --allow-write to enable event creation)")
	}

	switch opts.transport {
	case TransportStdio:
		return runStdioServer(mcpSrv)
	default:
		return runHTTPServer(ctx, a, mcpSrv, provider, opts)
	}
}

// newMCPServer creates the MCP server with every calendar tool and resource
// registered
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("calview", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithInstructions(mcpInstructions),
		mcpserver.WithRecovery(),
		mcpserver.WithLogging(),
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register calendar tools: %w", err)
	}
	if err := resources.RegisterResources(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}
	return mcpSrv, nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, a *app, mcpSrv *mcpserver.MCPServer, provider *instrumentation.Provider, opts *serveOptions) error {
	cfg := a.cfg
	logger := a.logger

	sessions := server.NewSessionManager(
		server.WithSessionTTL(cfg.Server.SessionTTL),
		server.WithControllerFactory(a.sc.NewController),
		server.WithSecureCookies(strings.HasPrefix(cfg.Server.BaseURL, "https://")),
		server.WithSessionLogger(logging.NewSlogAdapter(logger)),
		server.WithSessionMetrics(a.metrics),
	)
	defer sessions.Stop()

	mcpHandler := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithDisableStreaming(opts.disableStreaming),
		mcpserver.WithLogger(logging.NewSlogAdapter(logger)),
	)
	httpServer := server.NewHTTPServer(a.sc, sessions,
		server.WithMCPHandler(mcpHandler))
	httpServer.Health().SetVersion(version)

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(provider,
			server.WithMetricsAddr(cfg.Metrics.Addr),
			server.WithMetricsLogger(logger))
		if err != nil {
			logger.Warn("metrics server disabled", logging.Err(err))
			metricsServer = nil
		}
	}

	logger.Info("calview HTTP server starting",
		slog.String("addr", cfg.Server.Addr),
		slog.String("base_url", cfg.Server.BaseURL),
		slog.String("redirect_url", cfg.Provider.RedirectURL),
		slog.String("provider", string(cfg.Provider.Kind)),
		slog.String("backend", cfg.Backend.Kind),
		slog.Bool("metrics", metricsServer != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Start(cfg.Server.Addr, cfg.Server.TLSCert, cfg.Server.TLSKey); err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("metrics server stopped with error: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("HTTP server gracefully stopped")
	return nil
}
