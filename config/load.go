package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonwraymond/toolpipe/secret"
)

// EnvPrefix prefixes every environment override, e.g. TOOLPIPE_SERVER_ADDR.
const EnvPrefix = "TOOLPIPE"

type loaderConfig struct {
	configFile string
	envFile    string
	registry   *secret.Registry
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*loaderConfig)

// WithConfigFile reads settings from a YAML (or any viper-supported) file.
// A missing explicit file is an error.
func WithConfigFile(path string) LoaderOption {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile loads a .env file before reading the environment. Variables
// already set in the process win. A missing explicit file is an error.
func WithEnvFile(path string) LoaderOption {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// WithSecretRegistry replaces the registry used to build secret providers.
func WithSecretRegistry(r *secret.Registry) LoaderOption {
	return func(lc *loaderConfig) { lc.registry = r }
}

// Load builds a validated Config. Without WithEnvFile a ./.env file is
// loaded when present.
func Load(ctx context.Context, opts ...LoaderOption) (*Config, error) {
	lc := loaderConfig{}
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.registry == nil {
		lc.registry = secret.NewDefaultRegistry()
	}

	if err := loadEnvFile(lc.envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRead, lc.configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %w", ErrInvalid, err)
	}

	if err := resolveSecrets(ctx, &cfg, lc.registry); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: .env: %w", ErrRead, err)
		}
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	return nil
}

// resolveSecrets expands ${VAR} and secretref: values in the settings that
// may carry credentials or deployment-specific endpoints.
func resolveSecrets(ctx context.Context, cfg *Config, registry *secret.Registry) error {
	resolver := secret.NewResolver(cfg.Secrets.Strict)
	defer resolver.Close()

	env, err := registry.Create("env", map[string]any{"prefix": cfg.Secrets.EnvPrefix})
	if err != nil {
		return fmt.Errorf("%w: secrets: %w", ErrInvalid, err)
	}
	resolver.Register(env)

	if cfg.Secrets.FileDir != "" {
		file, err := registry.Create("file", map[string]any{"dir": cfg.Secrets.FileDir})
		if err != nil {
			return fmt.Errorf("%w: secrets.file_dir: %w", ErrInvalid, err)
		}
		resolver.Register(file)
	}

	fields := []struct {
		key string
		val *string
	}{
		{"auth.signing_key", &cfg.Auth.SigningKey},
		{"client.base_url", &cfg.Client.BaseURL},
		{"server.addr", &cfg.Server.Addr},
	}
	for _, f := range fields {
		if *f.val == "" {
			continue
		}
		resolved, err := resolver.ResolveValue(ctx, *f.val)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, f.key, err)
		}
		*f.val = resolved
	}
	return nil
}
