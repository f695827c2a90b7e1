// Command toolpipe-demo hosts the demo server and runs one guarded call
// against it after a startup delay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolpipe/auth"
	"github.com/jonwraymond/toolpipe/config"
	"github.com/jonwraymond/toolpipe/host"
	"github.com/jonwraymond/toolpipe/observe"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		envFile    string
	)

	load := func(ctx context.Context) (*config.Config, error) {
		opts := []config.LoaderOption{config.WithEnvFile(envFile)}
		if configFile != "" {
			opts = append(opts, config.WithConfigFile(configFile))
		}
		return config.Load(ctx, opts...)
	}

	root := &cobra.Command{
		Use:          "toolpipe-demo",
		Short:        "Run the demo server and its startup job",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := load(ctx)
			if err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the environment (default: ./.env if present)")

	root.AddCommand(&cobra.Command{
		Use:   "token",
		Short: "Print a bearer token accepted by the demo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(auth.IssuerConfig{
				Subject:  cfg.Auth.Subject,
				Issuer:   cfg.Auth.Issuer,
				Audience: cfg.Auth.Audience,
				TTL:      cfg.Auth.TokenTTL,
			}, []byte(cfg.Auth.SigningKey))
			if err != nil {
				return err
			}
			token, err := issuer.Token(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})
	return root
}

func run(ctx context.Context, cfg *config.Config) error {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	svc, err := host.NewService(cfg, obs)
	if err != nil {
		return err
	}

	obs.Logger().Info(ctx, "starting",
		observe.Field{Key: "version", Value: version},
		observe.Field{Key: "addr", Value: cfg.Server.Addr},
		observe.Field{Key: "endpoint", Value: cfg.Job.Endpoint},
	)
	err = svc.Run(ctx)
	obs.Logger().Info(context.Background(), "stopped")
	return err
}
