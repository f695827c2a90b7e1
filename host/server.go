package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolpipe/auth"
	"github.com/jonwraymond/toolpipe/health"
	"github.com/jonwraymond/toolpipe/observe"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	// SlowDelay is how long /slow waits before answering.
	// Default: 5 seconds
	SlowDelay time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds
	ShutdownTimeout time.Duration

	// Authenticator guards /fast and /slow when set.
	Authenticator auth.Authenticator

	// Health backs /readyz and /health. Default: an empty aggregator.
	Health *health.Aggregator

	Logger observe.Logger
}

// StatusResponse is the body of /fast and /slow.
type StatusResponse struct {
	Healthy   bool   `json:"healthy"`
	Timestamp string `json:"timestamp"`
}

// Server serves the demo endpoints and health probes.
type Server struct {
	opts    ServerOptions
	handler http.Handler
	now     func() time.Time
}

// NewServer creates a server.
func NewServer(opts ServerOptions) *Server {
	if opts.SlowDelay == 0 {
		opts.SlowDelay = 5 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Health == nil {
		opts.Health = health.NewAggregator()
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}

	s := &Server{opts: opts, now: time.Now}

	guard := func(h http.Handler) http.Handler { return h }
	if opts.Authenticator != nil {
		guard = auth.Middleware(opts.Authenticator)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /fast", guard(http.HandlerFunc(s.handleFast)))
	mux.Handle("GET /slow", guard(http.HandlerFunc(s.handleSlow)))
	health.RegisterHandlers(mux, opts.Health)

	s.handler = withRequestID(s.logRequests(mux))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
// In-flight handlers observe ctx, so slow requests end promptly.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.opts.Logger.Info(ctx, "server listening", observe.Field{Key: "addr", Value: ln.Addr().String()})

	select {
	case err := <-errCh:
		return fmt.Errorf("host: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("host: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("host: serve: %w", err)
	}
	s.opts.Logger.Info(ctx, "server stopped")
	return nil
}

func (s *Server) handleFast(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w)
}

func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	timer := time.NewTimer(s.opts.SlowDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		s.writeStatus(w)
	case <-r.Context().Done():
		// Client gave up or the server is stopping.
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

func (s *Server) writeStatus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StatusResponse{
		Healthy:   true,
		Timestamp: s.now().Format(time.RFC3339Nano),
	})
}

type requestIDKey struct{}

// RequestIDFromContext returns the request ID assigned by the server.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID keeps a caller-supplied X-Request-ID or assigns one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.opts.Logger.Debug(r.Context(), "request served",
			observe.Field{Key: "method", Value: r.Method},
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "status", Value: rec.status},
			observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			observe.Field{Key: "request_id", Value: RequestIDFromContext(r.Context())},
		)
	})
}
