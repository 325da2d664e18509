package instrumentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation is the audit record of one MCP tool call.
//
// Account holds the signed-in user's e-mail and is PII. General logs only
// carry its domain; the full address is written when the AuditLogger is
// configured to include PII.
type ToolInvocation struct {
	Tool    string
	Account string

	// Calendar target of the call
	Backend   string
	Operation string // list, create, layout
	View      string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing a tool call.
// Call Complete when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// AccountDomain returns the domain of the account address, or "unknown".
func (ti *ToolInvocation) AccountDomain() string {
	_, domain, ok := strings.Cut(ti.Account, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "unknown"
	}
	return domain
}

// Status returns "success" or "error".
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// WithAccount sets the signed-in account.
func (ti *ToolInvocation) WithAccount(account string) *ToolInvocation {
	ti.Account = account
	return ti
}

// WithBackend sets the calendar backend and operation.
func (ti *ToolInvocation) WithBackend(backend, operation string) *ToolInvocation {
	ti.Backend = backend
	ti.Operation = operation
	return ti
}

// WithView sets the view kind the tool rendered.
func (ti *ToolInvocation) WithView(view string) *ToolInvocation {
	ti.View = view
	return ti
}

// WithSpanContext copies trace and span IDs from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		ti.TraceID = sc.TraceID().String()
		ti.SpanID = sc.SpanID().String()
	}
	return ti
}

// Complete records the outcome and duration of the call.
func (ti *ToolInvocation) Complete(err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = err == nil
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Fail records a failed call that produced no Go error, such as a tool
// result flagged as an error.
func (ti *ToolInvocation) Fail(reason string) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = false
	ti.Error = reason
	return ti
}

// logAttrs returns the attributes of the record. The account is written
// in full only when includePII is set.
func (ti *ToolInvocation) logAttrs(includePII bool) []any {
	attrs := []any{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if includePII {
		attrs = append(attrs, slog.String("account", ti.Account))
	} else {
		attrs = append(attrs, slog.String("account_domain", ti.AccountDomain()))
	}

	optional := []struct{ key, value string }{
		{"backend", ti.Backend},
		{"operation", ti.Operation},
		{"view", ti.View},
		{"trace_id", ti.TraceID},
		{"span_id", ti.SpanID},
		{"error", ti.Error},
	}
	for _, o := range optional {
		if o.value != "" {
			attrs = append(attrs, slog.String(o.key, o.value))
		}
	}
	return attrs
}

// AuditLogger writes one structured record per tool call.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger from config. A nil logger uses slog.Default.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation logs the record at info level on success and warn on failure.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	attrs := ti.logAttrs(al.includePII)
	if ti.Success {
		al.logger.Info("tool_executed", attrs...)
	} else {
		al.logger.Warn("tool_failed", attrs...)
	}
}
