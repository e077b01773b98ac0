package observe

import (
	"errors"
	"fmt"
	"io"
)

// Config errors.
var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample fraction outside [0, 1]")
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")
)

// ErrNilObserver is returned when instruments are built from a nil Observer.
var ErrNilObserver = errors.New("observe: observer is nil")

// ErrMissingKind is returned by ArtifactMeta.Validate when Kind is empty.
var ErrMissingKind = errors.New("observe: artifact kind is required")

// Config selects the telemetry backends for a process. A disabled
// subsystem falls back to a no-op implementation.
type Config struct {
	ServiceName string
	Version     string
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Enabled bool
	// Exporter is otlp, stdout or none.
	Exporter string
	// SamplePct is the fraction of root spans kept, from 0 to 1.
	SamplePct float64
}

// MetricsConfig selects the metrics reader.
type MetricsConfig struct {
	Enabled bool
	// Exporter is otlp, prometheus, stdout or none.
	Exporter string
}

// LoggingConfig configures the JSON logger.
type LoggingConfig struct {
	Enabled bool
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Writer receives log lines. Defaults to os.Stderr.
	Writer io.Writer
}

// Validate reports the first invalid setting. Disabled subsystems are not
// checked.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "", "none", "stdout", "otlp":
		default:
			return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Tracing.Exporter)
		}
		if pct := c.Tracing.SamplePct; pct < 0 || pct > 1 {
			return fmt.Errorf("%w: %g", ErrInvalidSamplePct, pct)
		}
	}
	if c.Metrics.Enabled {
		switch c.Metrics.Exporter {
		case "", "none", "stdout", "otlp", "prometheus":
		default:
			return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter)
		}
	}
	if c.Logging.Enabled {
		if _, ok := lookupLevel(c.Logging.Level); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
		}
	}
	return nil
}
