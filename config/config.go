package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/cropadvisor/cache"
	"github.com/jonwraymond/cropadvisor/generate"
	"github.com/jonwraymond/cropadvisor/observe"
	"github.com/jonwraymond/cropadvisor/resilience"
)

// Config holds every cropadvisor setting.
type Config struct {
	HTTPAddr string `env:"CROPADVISOR_HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"CROPADVISOR_DB_PATH" envDefault:"data/cropadvisor.db"`
	FilePath string `env:"CROPADVISOR_CONFIG"`

	// Generator endpoint.
	APIKey      string  `env:"CROPADVISOR_LLM_API_KEY"`
	BaseURL     string  `env:"CROPADVISOR_LLM_BASE_URL"`
	Model       string  `env:"CROPADVISOR_LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64 `env:"CROPADVISOR_LLM_TEMPERATURE" envDefault:"0.3"`
	MaxTokens   int64   `env:"CROPADVISOR_LLM_MAX_TOKENS" envDefault:"1500"`

	// Generator guards. Zero disables a guard.
	GenerateTimeout time.Duration `env:"CROPADVISOR_GENERATE_TIMEOUT" envDefault:"90s"`
	RatePerSecond   float64       `env:"CROPADVISOR_GENERATE_RATE" envDefault:"2"`
	RateBurst       int           `env:"CROPADVISOR_GENERATE_BURST" envDefault:"4"`
	MaxConcurrent   int           `env:"CROPADVISOR_GENERATE_MAX_CONCURRENT" envDefault:"4"`
	MaxWait         time.Duration `env:"CROPADVISOR_GENERATE_MAX_WAIT" envDefault:"30s"`
	MaxFailures     int           `env:"CROPADVISOR_GENERATE_MAX_FAILURES" envDefault:"5"`
	ResetTimeout    time.Duration `env:"CROPADVISOR_GENERATE_RESET_TIMEOUT" envDefault:"30s"`

	// Observability.
	ServiceName     string  `env:"CROPADVISOR_SERVICE_NAME" envDefault:"cropadvisor"`
	LogLevel        string  `env:"CROPADVISOR_LOG_LEVEL" envDefault:"info"`
	TracingExporter string  `env:"CROPADVISOR_TRACING_EXPORTER" envDefault:"none"`
	SamplePct       float64 `env:"CROPADVISOR_TRACING_SAMPLE_PCT" envDefault:"1"`
	MetricsExporter string  `env:"CROPADVISOR_METRICS_EXPORTER" envDefault:"none"`

	// HTTP authentication. With no keys and no JWT secret the API is open.
	APIKeys      []string `env:"CROPADVISOR_API_KEYS" envSeparator:","`
	AdminAPIKeys []string `env:"CROPADVISOR_ADMIN_API_KEYS" envSeparator:","`
	JWTSecret    string   `env:"CROPADVISOR_JWT_SECRET"`
	JWTIssuer    string   `env:"CROPADVISOR_JWT_ISSUER"`
	JWTAudience  string   `env:"CROPADVISOR_JWT_AUDIENCE"`

	// File is the parsed config file, if FilePath is set.
	File File `env:"-"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Parse loads the environment, then flags from args, then the config file,
// and validates the result. Flags registered on fs by the caller are parsed
// too.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.FilePath, "config", cfg.FilePath, "YAML config file")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Chat model name")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "OpenAI-compatible API base URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	fs.DurationVar(&cfg.GenerateTimeout, "generate-timeout", cfg.GenerateTimeout, "Timeout per generator call")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if cfg.FilePath != "" {
		f, err := LoadFile(cfg.FilePath)
		if err != nil {
			return Config{}, err
		}
		cfg.File = f
		if f.Model != "" {
			cfg.Model = f.Model
		}
		if f.BaseURL != "" {
			cfg.BaseURL = f.BaseURL
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field rules.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("%w: db path is required", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v outside [0, 2]", ErrInvalidConfig, c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: negative max tokens", ErrInvalidConfig)
	}
	for name, d := range map[string]time.Duration{
		"generate timeout": c.GenerateTimeout,
		"max wait":         c.MaxWait,
		"reset timeout":    c.ResetTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: negative %s", ErrInvalidConfig, name)
		}
	}
	if c.RatePerSecond < 0 || c.RateBurst < 0 || c.MaxConcurrent < 0 || c.MaxFailures < 0 {
		return fmt.Errorf("%w: negative guard limit", ErrInvalidConfig)
	}
	obs := c.Observe()
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.Chat(); err != nil {
		return err
	}
	return nil
}

// AuthEnabled reports whether the HTTP API requires credentials.
func (c Config) AuthEnabled() bool {
	return len(c.APIKeys) > 0 || len(c.AdminAPIKeys) > 0 || c.JWTSecret != ""
}

// Policy returns the default max-age policy with file overrides applied.
func (c Config) Policy() (cache.Policy, error) {
	policy := cache.DefaultPolicy()
	overrides, err := c.File.MaxAges()
	if err != nil {
		return cache.Policy{}, err
	}
	for kind, d := range overrides {
		policy = policy.With(kind, d)
	}
	if err := policy.Validate(); err != nil {
		return cache.Policy{}, err
	}
	return policy, nil
}

// Chat returns the chat generator settings. Prompt overrides naming an
// unknown kind are an error.
func (c Config) Chat() (generate.ChatConfig, error) {
	prompts, err := c.File.PromptOverrides()
	if err != nil {
		return generate.ChatConfig{}, err
	}
	return generate.ChatConfig{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Prompts:     prompts,
	}, nil
}

// Executor returns the generator guard settings.
func (c Config) Executor() resilience.ExecutorConfig {
	return resilience.ExecutorConfig{
		RatePerSecond: c.RatePerSecond,
		Burst:         c.RateBurst,
		MaxConcurrent: c.MaxConcurrent,
		MaxWait:       c.MaxWait,
		MaxFailures:   c.MaxFailures,
		ResetTimeout:  c.ResetTimeout,
		Timeout:       c.GenerateTimeout,
	}
}

// Observe returns the observer settings.
func (c Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingExporter != "" && c.TracingExporter != "none",
			Exporter:  c.TracingExporter,
			SamplePct: c.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsExporter != "" && c.MetricsExporter != "none",
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}
