package instrumentation

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrBackend   = "backend"
	attrResult    = "result"
	attrTool      = "tool"
	attrAccount   = "account"
	attrView      = "view"
)

var (
	latencyBuckets  = []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}
	upstreamBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	eventBuckets    = []float64{0, 1, 5, 10, 25, 50, 100, 250}
	groupBuckets    = []float64{1, 2, 3, 4, 6, 8, 12, 16}
)

// Metrics records the calview metrics. The zero value and a nil *Metrics
// record nothing, so callers never check whether telemetry is enabled.
type Metrics struct {
	httpRequests   metric.Int64Counter
	httpDuration   metric.Float64Histogram
	activeSessions metric.Int64UpDownCounter

	backendOps      metric.Int64Counter
	backendDuration metric.Float64Histogram

	viewRefreshes metric.Int64Counter
	layoutPasses  metric.Int64Counter
	layoutEvents  metric.Int64Histogram
	groupSize     metric.Int64Histogram

	authAttempts metric.Int64Counter
	tokenRefresh metric.Int64Counter
	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
	detailed     bool
}

// instruments creates instruments on a meter and keeps every error
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.errs = append(in.errs, err)
	return c
}

func (in *instruments) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.errs = append(in.errs, err)
	return c
}

func (in *instruments) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...))
	in.errs = append(in.errs, err)
	return h
}

func (in *instruments) sizes(name, desc, unit string, buckets []float64) metric.Int64Histogram {
	h, err := in.meter.Int64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(buckets...))
	in.errs = append(in.errs, err)
	return h
}

// NewMetrics creates every instrument on meter. detailed adds the account
// label to tool metrics, which is high-cardinality.
func NewMetrics(meter metric.Meter, detailed bool) (*Metrics, error) {
	in := &instruments{meter: meter}
	m := &Metrics{
		httpRequests:   in.counter("http_requests_total", "HTTP requests served", "{request}"),
		httpDuration:   in.seconds("http_request_duration_seconds", "HTTP request duration", latencyBuckets),
		activeSessions: in.upDown("active_sessions", "Live browser sessions", "{session}"),

		backendOps:      in.counter("calendar_backend_operations_total", "Calls to calendar backends", "{operation}"),
		backendDuration: in.seconds("calendar_backend_operation_duration_seconds", "Calendar backend call duration", upstreamBuckets),

		viewRefreshes: in.counter("view_refresh_total", "View refreshes by outcome", "{refresh}"),
		layoutPasses:  in.counter("layout_passes_total", "Pages laid out", "{pass}"),
		layoutEvents:  in.sizes("layout_events", "Events positioned per page", "{event}", eventBuckets),
		groupSize:     in.sizes("layout_group_size", "Events per overlap group", "{event}", groupBuckets),

		authAttempts: in.counter("oauth_auth_total", "Sign-in code exchanges", "{attempt}"),
		tokenRefresh: in.counter("oauth_token_refresh_total", "Access token refreshes", "{attempt}"),
		toolCalls:    in.counter("mcp_tool_invocations_total", "MCP tool calls", "{invocation}"),
		toolDuration: in.seconds("mcp_tool_duration_seconds", "MCP tool call duration", upstreamBuckets),
		detailed:     detailed,
	}
	if err := errors.Join(in.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordHTTPRequest records a served request. path is the route pattern,
// never the raw URL.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	opt := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)))
	m.httpRequests.Add(ctx, 1, opt)
	m.httpDuration.Record(ctx, duration.Seconds(), opt)
}

// RecordBackendOperation records a list or create call to a backend.
func (m *Metrics) RecordBackendOperation(ctx context.Context, backend, operation, status string, duration time.Duration) {
	if m == nil || m.backendOps == nil {
		return
	}
	opt := metric.WithAttributes(
		attribute.String(attrBackend, backend),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status))
	m.backendOps.Add(ctx, 1, opt)
	m.backendDuration.Record(ctx, duration.Seconds(), opt)
}

// RecordViewRefresh records a refresh outcome: applied, stale or error.
func (m *Metrics) RecordViewRefresh(ctx context.Context, view, result string) {
	if m == nil || m.viewRefreshes == nil {
		return
	}
	m.viewRefreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrView, view),
		attribute.String(attrResult, result)))
}

// RecordLayoutPass records one laid out page and the size of each of its
// overlap groups.
func (m *Metrics) RecordLayoutPass(ctx context.Context, view string, events int, groupSizes []int) {
	if m == nil || m.layoutPasses == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String(attrView, view))
	m.layoutPasses.Add(ctx, 1, opt)
	m.layoutEvents.Record(ctx, int64(events), opt)
	for _, size := range groupSizes {
		m.groupSize.Record(ctx, int64(size), opt)
	}
}

// RecordOAuthAuth records a code exchange: success or failure.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.authAttempts == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a refresh: success, failure or expired.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.tokenRefresh == nil {
		return
	}
	m.tokenRefresh.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records a tool call without an account.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithAccount(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithAccount records a tool call. The account label is
// only attached with detailed labels.
func (m *Metrics) RecordToolInvocationWithAccount(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil || m.toolCalls == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailed && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}
	opt := metric.WithAttributes(attrs...)
	m.toolCalls.Add(ctx, 1, opt)
	m.toolDuration.Record(ctx, duration.Seconds(), opt)
}

func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
