package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/jonwraymond/toolpipe/observe"
)

// Config is the complete toolpipe configuration.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Server   ServerConfig   `mapstructure:"server"`
	Client   ClientConfig   `mapstructure:"client"`
	Job      JobConfig      `mapstructure:"job"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Observe  ObserveConfig  `mapstructure:"observe"`
}

// ServiceConfig names the running service.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// ServerConfig configures the demo HTTP server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	SlowDelay       time.Duration `mapstructure:"slow_delay"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Client modes.
const (
	ClientModeStandard     = "standard"
	ClientModeShortTimeout = "short-timeout"
)

// ClientConfig configures the outbound HTTP client.
type ClientConfig struct {
	// BaseURL defaults to the server's own address when empty.
	BaseURL string `mapstructure:"base_url"`
	Mode    string `mapstructure:"mode"`
}

// JobConfig configures the one-shot startup job.
type JobConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	StartDelay time.Duration `mapstructure:"start_delay"`
	Endpoint   string        `mapstructure:"endpoint"`
}

// AuthConfig configures bearer-token auth between the job and the server.
type AuthConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	SigningKey string        `mapstructure:"signing_key"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	Subject    string        `mapstructure:"subject"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// SecretsConfig configures secretref resolution.
type SecretsConfig struct {
	Strict    bool   `mapstructure:"strict"`
	EnvPrefix string `mapstructure:"env_prefix"`
	FileDir   string `mapstructure:"file_dir"`
}

// ObserveConfig mirrors observe.Config in file form.
type ObserveConfig struct {
	Tracing struct {
		Enabled   bool    `mapstructure:"enabled"`
		Exporter  string  `mapstructure:"exporter"`
		SamplePct float64 `mapstructure:"sample_pct"`
	} `mapstructure:"tracing"`
	Metrics struct {
		Enabled  bool   `mapstructure:"enabled"`
		Exporter string `mapstructure:"exporter"`
	} `mapstructure:"metrics"`
	Logging struct {
		Enabled bool   `mapstructure:"enabled"`
		Level   string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// defaults are keyed the way viper sees them. Every key must appear here so
// that TOOLPIPE_* overrides reach Unmarshal.
var defaults = map[string]any{
	"service.name":    "toolpipe-demo",
	"service.version": "dev",

	"server.addr":             "127.0.0.1:8080",
	"server.slow_delay":       5 * time.Second,
	"server.shutdown_timeout": 10 * time.Second,

	"client.base_url": "",
	"client.mode":     ClientModeStandard,

	"job.enabled":     true,
	"job.start_delay": 5 * time.Second,
	"job.endpoint":    "slow",

	"pipeline.name":                 "startup-call",
	"pipeline.retry.enabled":        true,
	"pipeline.retry.max_attempts":   5,
	"pipeline.retry.delay":          time.Second,
	"pipeline.retry.max_delay":      time.Duration(0),
	"pipeline.retry.backoff":        "constant",
	"pipeline.retry.multiplier":     2.0,
	"pipeline.retry.jitter":         false,
	"pipeline.retry.keep_history":   false,
	"pipeline.retry.retry_timeouts": true,
	"pipeline.timeout":              time.Second,

	"auth.enabled":     false,
	"auth.signing_key": "",
	"auth.issuer":      "toolpipe",
	"auth.audience":    "toolpipe-demo",
	"auth.subject":     "startup-job",
	"auth.token_ttl":   5 * time.Minute,

	"secrets.strict":     true,
	"secrets.env_prefix": "",
	"secrets.file_dir":   "",

	"observe.tracing.enabled":    false,
	"observe.tracing.exporter":   "none",
	"observe.tracing.sample_pct": 1.0,
	"observe.metrics.enabled":    false,
	"observe.metrics.exporter":   "none",
	"observe.logging.enabled":    true,
	"observe.logging.level":      "info",
}

// Validate checks every section and reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return invalid("service.name", "is required")
	}
	if c.Server.Addr == "" {
		return invalid("server.addr", "is required")
	}
	if c.Server.SlowDelay < 0 {
		return invalid("server.slow_delay", "must not be negative")
	}
	if !slices.Contains([]string{ClientModeStandard, ClientModeShortTimeout}, c.Client.Mode) {
		return invalid("client.mode", fmt.Sprintf("must be %q or %q (got %q)", ClientModeStandard, ClientModeShortTimeout, c.Client.Mode))
	}
	if c.Client.BaseURL != "" {
		u, err := url.Parse(c.Client.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("client.base_url", fmt.Sprintf("must be an absolute URL (got %q)", c.Client.BaseURL))
		}
	}
	if c.Job.StartDelay < 0 {
		return invalid("job.start_delay", "must not be negative")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if c.Auth.Enabled {
		if c.Auth.SigningKey == "" {
			return invalid("auth.signing_key", "is required when auth is enabled")
		}
		if c.Auth.Subject == "" {
			return invalid("auth.subject", "is required when auth is enabled")
		}
	}
	obs := c.ObserveConfig()
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalid, err)
	}
	return nil
}

// ObserveConfig converts the observe section for observe.NewObserver.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Service.Name,
		Version:     c.Service.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing.Enabled,
			Exporter:  c.Observe.Tracing.Exporter,
			SamplePct: c.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics.Enabled,
			Exporter: c.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Observe.Logging.Enabled,
			Level:   c.Observe.Logging.Level,
		},
	}
}

func invalid(key, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalid, key, reason)
}
