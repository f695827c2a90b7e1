package host

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolpipe/auth"
	"github.com/jonwraymond/toolpipe/config"
	"github.com/jonwraymond/toolpipe/health"
	"github.com/jonwraymond/toolpipe/httpop"
	"github.com/jonwraymond/toolpipe/observe"
	"github.com/jonwraymond/toolpipe/resilience"
)

// Service wires the server and the startup job from configuration.
type Service struct {
	cfg      *config.Config
	logger   observe.Logger
	pipeline *resilience.Pipeline
	tel      *observe.Telemetry
	tracker  *health.JobTracker
	health   *health.Aggregator
	server   *Server
}

// NewService builds the pipeline, health checks and server. The client is
// created in Run, once the listen address is known.
func NewService(cfg *config.Config, obs observe.Observer) (*Service, error) {
	if obs == nil {
		return nil, observe.ErrNilObserver
	}

	meta := observe.PipelineMeta{
		Name:      cfg.Pipeline.Name,
		Operation: "GET /" + cfg.Job.Endpoint,
		Version:   cfg.Service.Version,
	}
	tel, err := observe.TelemetryFromObserver(obs, meta)
	if err != nil {
		return nil, fmt.Errorf("host: telemetry: %w", err)
	}

	tracker := health.NewJobTracker(cfg.Pipeline.Name)
	pipeline, err := cfg.Pipeline.Builder(nil).
		WithListener(resilience.MultiListener{tel, tracker}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("host: pipeline: %w", err)
	}

	agg := health.NewAggregator()
	if cfg.Job.Enabled {
		agg.Register(tracker.Name(), tracker)
	}

	var authn auth.Authenticator
	if cfg.Auth.Enabled {
		authn = auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		}, auth.NewStaticKeyProvider([]byte(cfg.Auth.SigningKey)))
	}

	logger := obs.Logger()
	return &Service{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		tel:      tel,
		tracker:  tracker,
		health:   agg,
		server: NewServer(ServerOptions{
			SlowDelay:       cfg.Server.SlowDelay,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Authenticator:   authn,
			Health:          agg,
			Logger:          logger,
		}),
	}, nil
}

// Tracker returns the startup job's health tracker.
func (s *Service) Tracker() *health.JobTracker {
	return s.tracker
}

// Run listens on the configured address and serves until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("host: listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on ln and, when enabled, the startup job. The job
// finishing does not stop the server; a server failure cancels the job.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	var job *Job
	if s.cfg.Job.Enabled {
		var err error
		if job, err = s.newJob(ln.Addr()); err != nil {
			_ = ln.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.server.Serve(gctx, ln)
	})
	if job != nil {
		g.Go(func() error {
			// Cancellation during the start delay is a normal shutdown.
			_ = job.Run(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) newJob(addr net.Addr) (*Job, error) {
	baseURL := s.cfg.Client.BaseURL
	if baseURL == "" {
		baseURL = "http://" + addr.String()
	}

	var tokens httpop.TokenSource
	if s.cfg.Auth.Enabled {
		issuer, err := auth.NewTokenIssuer(auth.IssuerConfig{
			Subject:  s.cfg.Auth.Subject,
			Issuer:   s.cfg.Auth.Issuer,
			Audience: s.cfg.Auth.Audience,
			TTL:      s.cfg.Auth.TokenTTL,
		}, []byte(s.cfg.Auth.SigningKey))
		if err != nil {
			return nil, fmt.Errorf("host: token issuer: %w", err)
		}
		tokens = issuer
	}

	client, err := httpop.NewClient(httpop.Options{
		BaseURL: baseURL,
		Mode:    s.cfg.Client.Mode,
		Tokens:  tokens,
	})
	if err != nil {
		return nil, fmt.Errorf("host: client: %w", err)
	}
	s.logger.Info(context.Background(), "job client configured",
		observe.Field{Key: "base_url", Value: client.BaseURL()},
		observe.Field{Key: "mode", Value: client.Mode()},
	)

	return NewJob(JobOptions{
		StartDelay: s.cfg.Job.StartDelay,
		Pipeline:   s.pipeline,
		Operation:  client.Get(s.cfg.Job.Endpoint),
		Telemetry:  s.tel,
		Tracker:    s.tracker,
		Logger:     s.tel.Logger(),
	})
}
