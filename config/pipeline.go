package config

import (
	"context"
	"time"

	"github.com/jonwraymond/toolpipe/resilience"
)

// PipelineConfig configures the resilience pipeline guarding the job call.
type PipelineConfig struct {
	Name  string      `mapstructure:"name"`
	Retry RetryConfig `mapstructure:"retry"`

	// Timeout bounds each attempt. Zero disables the timeout strategy.
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetryConfig is the file form of resilience.RetryConfig.
type RetryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Backoff     string        `mapstructure:"backoff"`
	Multiplier  float64       `mapstructure:"multiplier"`
	Jitter      bool          `mapstructure:"jitter"`
	KeepHistory bool          `mapstructure:"keep_history"`

	// RetryTimeouts adds timeout faults to the retried kinds. Transport
	// faults are always retried.
	RetryTimeouts bool `mapstructure:"retry_timeouts"`
}

// Validate checks the pipeline settings without building strategies.
func (p PipelineConfig) Validate() error {
	if p.Name == "" {
		return invalid("pipeline.name", "is required")
	}
	if p.Timeout < 0 {
		return invalid("pipeline.timeout", "must not be negative")
	}
	if !p.Retry.Enabled {
		return nil
	}
	if _, ok := resilience.ParseBackoffStrategy(p.Retry.Backoff); !ok {
		return invalid("pipeline.retry.backoff", "must be constant, linear or exponential (got \""+p.Retry.Backoff+"\")")
	}
	if p.Retry.MaxAttempts < 0 {
		return invalid("pipeline.retry.max_attempts", "must not be negative")
	}
	if p.Retry.Delay < 0 || p.Retry.MaxDelay < 0 {
		return invalid("pipeline.retry.delay", "must not be negative")
	}
	return nil
}

// RetryConfig converts the retry section. The caller may still set
// OnRetry before building.
func (p PipelineConfig) RetryConfig() resilience.RetryConfig {
	backoff, _ := resilience.ParseBackoffStrategy(p.Retry.Backoff)
	classifier := resilience.HandleKinds(resilience.FaultTransport)
	if p.Retry.RetryTimeouts {
		classifier = resilience.DefaultClassifier
	}
	return resilience.RetryConfig{
		MaxRetryAttempts: p.Retry.MaxAttempts,
		Delay:            p.Retry.Delay,
		MaxDelay:         p.Retry.MaxDelay,
		Backoff:          backoff,
		Multiplier:       p.Retry.Multiplier,
		Jitter:           p.Retry.Jitter,
		KeepHistory:      p.Retry.KeepHistory,
		ShouldHandle:     classifier,
	}
}

// Builder returns a builder with retry outermost and the per-attempt
// timeout inside it, so every retry gets a fresh deadline. onRetry may be nil.
func (p PipelineConfig) Builder(onRetry func(ctx context.Context, args resilience.RetryArgs) error) *resilience.Builder {
	b := resilience.NewBuilder().WithName(p.Name)
	if p.Retry.Enabled {
		rc := p.RetryConfig()
		rc.OnRetry = onRetry
		b.AddRetry(rc)
	}
	if p.Timeout > 0 {
		b.AddTimeout(resilience.TimeoutConfig{Timeout: p.Timeout})
	}
	return b
}
