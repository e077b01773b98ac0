package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{
			ServiceName: "cropadvisor",
			Version:     "0.1.0",
			Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 0.25},
			Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     LoggingConfig{Enabled: true, Level: "debug"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, ErrMissingServiceName},
		{"unknown tracing exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, ErrInvalidTracingExporter},
		{"negative sample", func(c *Config) { c.Tracing.SamplePct = -0.1 }, ErrInvalidSamplePct},
		{"sample above one", func(c *Config) { c.Tracing.SamplePct = 1.5 }, ErrInvalidSamplePct},
		{"unknown metrics exporter", func(c *Config) { c.Metrics.Exporter = "statsd" }, ErrInvalidMetricsExporter},
		{"unknown log level", func(c *Config) { c.Logging.Level = "badlevel" }, ErrInvalidLogLevel},
		{"upper-case log level", func(c *Config) { c.Logging.Level = "WARN" }, nil},
		{"disabled tracing skips checks", func(c *Config) {
			c.Tracing = TracingConfig{Exporter: "jaeger", SamplePct: 7}
		}, nil},
		{"disabled logging skips checks", func(c *Config) {
			c.Logging = LoggingConfig{Level: "badlevel"}
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewObserverRejectsInvalidConfig(t *testing.T) {
	if _, err := NewObserver(context.Background(), Config{}); !errors.Is(err, ErrMissingServiceName) {
		t.Fatalf("NewObserver() error = %v, want ErrMissingServiceName", err)
	}
}

func TestNewObserverDisabledIsNoop(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "cropadvisor"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("disabled observer must still hand out usable primitives")
	}

	_, span := obs.Tracer().Start(context.Background(), "artifact.resolve.soil")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing produced a recording span")
	}
	span.End()

	if err := obs.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestNewObserverEnabled(t *testing.T) {
	var logs bytes.Buffer
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "cropadvisor",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "info", Writer: &logs},
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	_, span := obs.Tracer().Start(context.Background(), "artifact.resolve.soil")
	if !span.SpanContext().IsValid() {
		t.Error("enabled tracing produced an invalid span")
	}
	span.End()

	obs.Logger().Info(context.Background(), "hello")
	if logs.Len() == 0 {
		t.Error("configured writer received no log line")
	}

	if err := obs.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		pct  float64
		want sdktrace.SamplingDecision
	}{
		{1, sdktrace.RecordAndSample},
		{0, sdktrace.Drop},
	}
	for _, tt := range tests {
		got := sampler(tt.pct).ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			Name:          "root",
		})
		if got.Decision != tt.want {
			t.Errorf("sampler(%g) decision = %v, want %v", tt.pct, got.Decision, tt.want)
		}
	}
}

func TestInstrumentsFromObserver(t *testing.T) {
	if _, err := InstrumentsFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("nil observer error = %v, want ErrNilObserver", err)
	}

	obs, err := NewObserver(context.Background(), Config{ServiceName: "cropadvisor"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	in, err := InstrumentsFromObserver(obs)
	if err != nil {
		t.Fatalf("InstrumentsFromObserver() error = %v", err)
	}
	if in.Tracer == nil || in.Metrics == nil || in.Logger == nil {
		t.Fatalf("instruments incomplete: %+v", in)
	}
}
