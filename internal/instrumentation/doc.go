// Package instrumentation provides OpenTelemetry metrics and tracing for calview.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of active browser sessions
//
// Calendar Backend Metrics:
//   - calendar_backend_operations_total: Counter of backend calls by backend, operation, status
//   - calendar_backend_operation_duration_seconds: Histogram of backend call durations
//
// View and Layout Metrics:
//   - view_refresh_total: Counter of view refreshes by view and result (applied, stale, error)
//   - layout_passes_total: Counter of layout passes by view
//   - layout_events: Histogram of events positioned per pass
//   - layout_group_size: Histogram of overlap group sizes
//
// OAuth Metrics:
//   - oauth_auth_total: Counter of sign-in attempts by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of tool execution durations
//
// # Tracing
//
// Spans are created for:
//   - MCP tool invocations (tool.<name>)
//   - Calendar backend calls (backend.<backend>.<operation>)
//   - Layout passes (layout.arrange)
//
// # Configuration
//
// Defaults come from environment variables and can be overridden by the
// telemetry section of the calview config file:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: calview)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordBackendOperation(ctx, "google", "list", instrumentation.StatusSuccess, time.Since(start))
//	recorder.RecordLayoutPass(ctx, "week", len(events), groupSizes)
package instrumentation
