package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/toolpipe/resilience"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func mustLoad(t *testing.T, opts ...LoaderOption) *Config {
	t.Helper()
	cfg, err := Load(context.Background(), opts...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := mustLoad(t)

	checks := []struct {
		name      string
		got, want any
	}{
		{"service.name", cfg.Service.Name, "toolpipe-demo"},
		{"server.addr", cfg.Server.Addr, "127.0.0.1:8080"},
		{"server.slow_delay", cfg.Server.SlowDelay, 5 * time.Second},
		{"client.mode", cfg.Client.Mode, ClientModeStandard},
		{"job.enabled", cfg.Job.Enabled, true},
		{"job.start_delay", cfg.Job.StartDelay, 5 * time.Second},
		{"job.endpoint", cfg.Job.Endpoint, "slow"},
		{"pipeline.name", cfg.Pipeline.Name, "startup-call"},
		{"pipeline.retry.max_attempts", cfg.Pipeline.Retry.MaxAttempts, 5},
		{"pipeline.retry.delay", cfg.Pipeline.Retry.Delay, time.Second},
		{"pipeline.retry.backoff", cfg.Pipeline.Retry.Backoff, "constant"},
		{"pipeline.retry.retry_timeouts", cfg.Pipeline.Retry.RetryTimeouts, true},
		{"pipeline.timeout", cfg.Pipeline.Timeout, time.Second},
		{"auth.enabled", cfg.Auth.Enabled, false},
		{"observe.logging.enabled", cfg.Observe.Logging.Enabled, true},
		{"observe.logging.level", cfg.Observe.Logging.Level, "info"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := writeFile(t, dir, "toolpipe.yaml", `
server:
  addr: 0.0.0.0:9090
  slow_delay: 2s
client:
  mode: short-timeout
pipeline:
  retry:
    max_attempts: 2
    backoff: exponential
    delay: 100ms
  timeout: 750ms
observe:
  logging:
    level: debug
`)
	t.Setenv("TOOLPIPE_PIPELINE_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("TOOLPIPE_SERVER_SLOW_DELAY", "3s")

	cfg := mustLoad(t, WithConfigFile(file))

	checks := []struct {
		name      string
		got, want any
	}{
		{"server.addr", cfg.Server.Addr, "0.0.0.0:9090"},
		{"server.slow_delay (env over file)", cfg.Server.SlowDelay, 3 * time.Second},
		{"client.mode", cfg.Client.Mode, ClientModeShortTimeout},
		{"pipeline.retry.max_attempts (env over file)", cfg.Pipeline.Retry.MaxAttempts, 7},
		{"pipeline.retry.backoff", cfg.Pipeline.Retry.Backoff, "exponential"},
		{"pipeline.retry.delay", cfg.Pipeline.Retry.Delay, 100 * time.Millisecond},
		{"pipeline.timeout", cfg.Pipeline.Timeout, 750 * time.Millisecond},
		{"observe.logging.level", cfg.Observe.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "TOOLPIPE_JOB_ENDPOINT=fast\n")
	t.Cleanup(func() { _ = os.Unsetenv("TOOLPIPE_JOB_ENDPOINT") })

	if got := mustLoad(t).Job.Endpoint; got != "fast" {
		t.Errorf("job.endpoint = %q, want fast", got)
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load(context.Background(), WithConfigFile("nope.yaml")); !errors.Is(err, ErrRead) {
		t.Errorf("missing config file: error = %v, want ErrRead", err)
	}
	if _, err := Load(context.Background(), WithEnvFile("nope.env")); !errors.Is(err, ErrRead) {
		t.Errorf("missing env file: error = %v, want ErrRead", err)
	}
}

func TestLoad_ResolvesSecrets(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "secrets/jwt.key", "from-file\n")

	t.Setenv("TOOLPIPE_AUTH_ENABLED", "true")
	t.Setenv("TOOLPIPE_SECRETS_FILE_DIR", filepath.Join(dir, "secrets"))
	t.Setenv("TOOLPIPE_AUTH_SIGNING_KEY", "secretref:file:jwt.key")
	t.Setenv("UPSTREAM_HOST", "example.test:8443")
	t.Setenv("TOOLPIPE_CLIENT_BASE_URL", "https://${UPSTREAM_HOST}")

	cfg := mustLoad(t)
	if cfg.Auth.SigningKey != "from-file" {
		t.Errorf("auth.signing_key = %q, want from-file", cfg.Auth.SigningKey)
	}
	if cfg.Client.BaseURL != "https://example.test:8443" {
		t.Errorf("client.base_url = %q", cfg.Client.BaseURL)
	}
}

func TestLoad_SecretFailures(t *testing.T) {
	t.Chdir(t.TempDir())

	for _, value := range []string{
		"secretref:env:TOOLPIPE_TEST_ABSENT_KEY",
		"${TOOLPIPE_TEST_ABSENT_VAR}",
	} {
		t.Setenv("TOOLPIPE_AUTH_SIGNING_KEY", value)
		if _, err := Load(context.Background()); !errors.Is(err, ErrInvalid) {
			t.Errorf("signing key %q: error = %v, want ErrInvalid", value, err)
		}
	}
}

func TestLoad_AuthRequiresKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOOLPIPE_AUTH_ENABLED", "true")

	_, err := Load(context.Background())
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "auth.signing_key") {
		t.Errorf("error = %v, want it to name auth.signing_key", err)
	}
}

func validConfig(t *testing.T) Config {
	t.Helper()
	t.Chdir(t.TempDir())
	return *mustLoad(t)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"missing service name", func(c *Config) { c.Service.Name = "" }, "service.name"},
		{"missing addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative slow delay", func(c *Config) { c.Server.SlowDelay = -time.Second }, "server.slow_delay"},
		{"unknown client mode", func(c *Config) { c.Client.Mode = "turbo" }, "client.mode"},
		{"relative base url", func(c *Config) { c.Client.BaseURL = "/api" }, "client.base_url"},
		{"negative start delay", func(c *Config) { c.Job.StartDelay = -1 }, "job.start_delay"},
		{"missing pipeline name", func(c *Config) { c.Pipeline.Name = "" }, "pipeline.name"},
		{"negative timeout", func(c *Config) { c.Pipeline.Timeout = -1 }, "pipeline.timeout"},
		{"unknown backoff", func(c *Config) { c.Pipeline.Retry.Backoff = "fibonacci" }, "pipeline.retry.backoff"},
		{"negative attempts", func(c *Config) { c.Pipeline.Retry.MaxAttempts = -1 }, "pipeline.retry.max_attempts"},
		{"auth without subject", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.SigningKey = "k"
			c.Auth.Subject = ""
		}, "auth.subject"},
		{"bad log level", func(c *Config) { c.Observe.Logging.Level = "loud" }, "observe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() error = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("Validate() error = %v, want it to name %s", err, tt.wantKey)
			}
		})
	}
}

func TestConfig_ObserveConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Observe.Tracing.Enabled = true
	cfg.Observe.Tracing.Exporter = "stdout"

	obs := cfg.ObserveConfig()
	if obs.ServiceName != "toolpipe-demo" {
		t.Errorf("ServiceName = %q", obs.ServiceName)
	}
	if !obs.Tracing.Enabled || obs.Tracing.Exporter != "stdout" {
		t.Errorf("Tracing = %+v, want enabled stdout", obs.Tracing)
	}
	if err := obs.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPipelineConfig_Builder(t *testing.T) {
	cfg := validConfig(t)

	p, err := cfg.Pipeline.Builder(nil).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.Name() != "startup-call" {
		t.Errorf("Name() = %q, want startup-call", p.Name())
	}
	if got := p.Strategies(); !slices.Equal(got, []string{"retry", "timeout"}) {
		t.Errorf("Strategies() = %v, want [retry timeout]", got)
	}

	cfg.Pipeline.Retry.Enabled = false
	cfg.Pipeline.Timeout = 0
	p, err = cfg.Pipeline.Builder(nil).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := p.Strategies(); len(got) != 0 {
		t.Errorf("Strategies() = %v, want none", got)
	}
}

func TestPipelineConfig_RetryConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Pipeline.Retry.Backoff = "linear"
	cfg.Pipeline.Retry.MaxAttempts = 0

	rc := cfg.Pipeline.RetryConfig()
	if rc.Backoff != resilience.BackoffLinear {
		t.Errorf("Backoff = %v, want linear", rc.Backoff)
	}
	if rc.MaxRetryAttempts != 0 {
		t.Errorf("MaxRetryAttempts = %d, want 0", rc.MaxRetryAttempts)
	}

	timeout := resilience.Failure(resilience.TimeoutFault(nil))
	transport := resilience.Failure(resilience.TransportFault(errors.New("reset")))
	if !rc.ShouldHandle(timeout) || !rc.ShouldHandle(transport) {
		t.Error("timeouts and transport faults should be retryable by default")
	}

	cfg.Pipeline.Retry.RetryTimeouts = false
	rc = cfg.Pipeline.RetryConfig()
	if rc.ShouldHandle(timeout) {
		t.Error("timeouts should be excluded when retry_timeouts is off")
	}
	if !rc.ShouldHandle(transport) {
		t.Error("transport faults should stay retryable")
	}
}

func TestPipelineConfig_OnRetryWired(t *testing.T) {
	cfg := validConfig(t)
	cfg.Pipeline.Retry.MaxAttempts = 1
	cfg.Pipeline.Retry.Delay = 0
	cfg.Pipeline.Timeout = 0

	var retried []int
	p, err := cfg.Pipeline.Builder(func(_ context.Context, args resilience.RetryArgs) error {
		retried = append(retried, args.Attempt)
		return nil
	}).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	calls := 0
	err = p.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return resilience.TransportFault(errors.New("reset"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !slices.Equal(retried, []int{0}) {
		t.Errorf("OnRetry attempts = %v, want [0]", retried)
	}
}
