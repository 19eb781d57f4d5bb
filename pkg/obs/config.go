// Package obs provides OpenTelemetry-based tracing and metrics plus
// slog-based structured logging for the vector space model pipeline,
// adapted from the internal/observability package from
// CLI/MCP/server application modes to the harness/transport/fit-chain
// operations this pipeline runs.
package obs

import "log/slog"

// Mode identifies which part of the pipeline is running, mirroring an
// AppMode-style distinction between CLI, MCP, and server execution.
type Mode string

const (
	// ModeCLI is a one-shot command-line invocation.
	ModeCLI Mode = "cli"
	// ModeBatch is a long-running unattended batch/ingestion run.
	ModeBatch Mode = "batch"
)

const (
	defaultServiceName       = "vsmodel"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production", "dev").
	Environment string

	// Mode identifies how the binary was launched.
	Mode Mode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export and makes the tracer provider a no-op; the
	// meter provider is a no-op too unless PrometheusEnabled is set.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// DebugTrace forces 100% trace sampling when true.
	DebugTrace bool

	// SampleRatio is the trace sampling ratio (0.0 to 1.0) when DebugTrace
	// is false. Zero uses the OTel SDK default (parent-based always-on).
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on
	// shutdown.
	ShutdownTimeoutSec int

	// PrometheusEnabled adds a Prometheus collector as an additional
	// metric reader, independent of OTLPEndpoint, and populates
	// Providers.PrometheusHandler with a /metrics scrape handler.
	PrometheusEnabled bool
}

// DefaultConfig returns a Config with sensible defaults for zero-config
// startup: no-op providers, text logging at info level.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
