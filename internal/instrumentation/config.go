package instrumentation

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: calview)
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the version of the service
	ServiceVersion string `yaml:"-"`

	// ServiceInstanceID is the unique instance identifier (default: hostname)
	ServiceInstanceID string `yaml:"service_instance_id"`

	// Enabled determines if instrumentation is active (default: true)
	Enabled bool `yaml:"enabled"`

	// MetricsExporter is one of "prometheus", "otlp", "stdout" (default: "prometheus")
	MetricsExporter string `yaml:"metrics_exporter"`

	// TracingExporter is one of "otlp", "stdout", "none" (default: "none")
	TracingExporter string `yaml:"tracing_exporter"`

	// OTLPEndpoint is the OTLP collector endpoint without protocol prefix,
	// e.g. "localhost:4318"
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// OTLPInsecure uses plain HTTP for OTLP export. Local development only.
	OTLPInsecure bool `yaml:"otlp_insecure"`

	// TraceSamplingRate is the sampling rate for traces (0.0 to 1.0, default: 0.1)
	TraceSamplingRate float64 `yaml:"trace_sampling_rate"`

	// DetailedLabels adds high-cardinality labels such as account IDs.
	// Keep disabled in production.
	DetailedLabels bool `yaml:"detailed_labels"`

	// AuditLogging configures audit logging of MCP tool calls.
	AuditLogging AuditLoggingConfig `yaml:"audit"`
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active (default: true)
	Enabled bool `yaml:"enabled"`

	// IncludePII logs full account e-mail addresses instead of their domain.
	IncludePII bool `yaml:"include_pii"`
}

// DefaultConfig returns a Config with defaults taken from environment variables.
func DefaultConfig() Config {
	return Config{
		ServiceName:       getEnvOrDefault("OTEL_SERVICE_NAME", "calview"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:           getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:    getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
			IncludePII: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_PII", false),
		},
	}
}

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Validate checks the exporter names and that OTLP export has an endpoint.
// Empty exporter names select the defaults.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: %s", c.MetricsExporter, strings.Join(metricsExporters, ", "))
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: %s", c.TracingExporter, strings.Join(tracingExporters, ", "))
	}
	if c.OTLPEndpoint == "" {
		switch ExporterOTLP {
		case c.TracingExporter:
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		case c.MetricsExporter:
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// getEnvParsed returns def when key is unset or does not parse
func getEnvParsed[T any](key string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parsed, err := parse(v)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBoolOrDefault(key string, def bool) bool {
	return getEnvParsed(key, def, strconv.ParseBool)
}

func getEnvFloatOrDefault(key string, def float64) float64 {
	return getEnvParsed(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// OAuth result values
	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the export interval of periodic readers
	DefaultMetricInterval = 10 * time.Second
)
