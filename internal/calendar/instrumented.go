package calendar

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/instrumentation"
	"github.com/teemow/calview/internal/logging"
)

// Instrumented wraps a Backend with spans, operation metrics and logs
type Instrumented struct {
	next    Backend
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewInstrumented decorates next. A nil metrics disables metric recording.
func NewInstrumented(next Backend, metrics *instrumentation.Metrics, logger *slog.Logger) *Instrumented {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{
		next:    next,
		metrics: metrics,
		logger:  logging.WithBackend(logger, next.Name()),
	}
}

// Name returns the name of the wrapped backend
func (b *Instrumented) Name() string {
	return b.next.Name()
}

// Unwrap returns the wrapped backend
func (b *Instrumented) Unwrap() Backend {
	return b.next
}

// ListEvents lists events through the wrapped backend
func (b *Instrumented) ListEvents(ctx context.Context, r event.Range) ([]event.Event, error) {
	ctx, span := instrumentation.StartBackendSpan(ctx, b.next.Name(), OpList,
		attribute.String(instrumentation.SpanAttrRange, r.String()))
	defer span.End()

	start := time.Now()
	events, err := b.next.ListEvents(ctx, r)
	b.finish(ctx, OpList, start, err)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		b.logger.Warn("list events failed", logging.Range(r), logging.Err(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int(instrumentation.SpanAttrCount, len(events)))
	instrumentation.SetSpanSuccess(span)
	b.logger.Debug("listed events", logging.Range(r), logging.Count(len(events)))
	return events, nil
}

// CreateEvent creates an event through the wrapped backend
func (b *Instrumented) CreateEvent(ctx context.Context, d event.Draft) (event.Event, error) {
	ctx, span := instrumentation.StartBackendSpan(ctx, b.next.Name(), OpCreate,
		attribute.Bool(instrumentation.SpanAttrOnline, d.IsOnlineMeeting),
		attribute.Int(instrumentation.SpanAttrCount, len(d.Attendees)))
	defer span.End()

	start := time.Now()
	created, err := b.next.CreateEvent(ctx, d)
	b.finish(ctx, OpCreate, start, err)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		b.logger.Warn("create event failed", logging.Err(err))
		return event.Event{}, err
	}

	instrumentation.SetSpanSuccess(span)
	b.logger.Info("created event", slog.String("event_id", created.ID))
	return created, nil
}

func (b *Instrumented) finish(ctx context.Context, op string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	b.metrics.RecordBackendOperation(ctx, b.next.Name(), op, status, time.Since(start))
}
