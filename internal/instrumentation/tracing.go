package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer of every calview span
const TracerName = "github.com/teemow/calview"

// Span attribute keys
const (
	SpanAttrTool      = "mcp.tool"
	SpanAttrReadOnly  = "mcp.read_only"
	SpanAttrBackend   = "calendar.backend"
	SpanAttrOperation = "calendar.operation"
	SpanAttrRange     = "calendar.range"
	SpanAttrCount     = "calendar.count"
	SpanAttrOnline    = "calendar.online"
	SpanAttrView      = "calview.view"
)

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartToolSpan starts the server span "tool.<name>" of one MCP tool call.
// readOnly records whether the server was started without --allow-write.
func StartToolSpan(ctx context.Context, toolName, operation string, readOnly bool) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(SpanAttrTool, toolName),
		attribute.Bool(SpanAttrReadOnly, readOnly),
	}
	if operation != "" {
		attrs = append(attrs, attribute.String(SpanAttrOperation, operation))
	}
	return tracer().Start(ctx, "tool."+toolName,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer))
}

// StartBackendSpan starts the client span "backend.<backend>.<operation>"
// around a call to a calendar service.
func StartBackendSpan(ctx context.Context, backend, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrBackend, backend),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return tracer().Start(ctx, "backend."+backend+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient))
}

// StartLayoutSpan starts the internal span of one layout pass over a page.
func StartLayoutSpan(ctx context.Context, view string, events int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "layout.arrange",
		trace.WithAttributes(
			attribute.String(SpanAttrView, view),
			attribute.Int(SpanAttrCount, events)),
		trace.WithSpanKind(trace.SpanKindInternal))
}

// SetSpanError records err on span. A nil error leaves the span untouched.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
