package httpop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolpipe/resilience"
)

// Client modes.
const (
	// ModeStandard has no client-level timeout; attempts are bounded only
	// by the pipeline.
	ModeStandard = "standard"

	// ModeShortTimeout sets http.Client.Timeout to ShortTimeout.
	ModeShortTimeout = "short-timeout"
)

// ShortTimeout is the client timeout of ModeShortTimeout.
const ShortTimeout = 500 * time.Millisecond

// Request headers set on every call.
const (
	HeaderRequestID   = "X-Request-ID"
	HeaderExecutionID = "X-Execution-ID"
)

// TokenSource supplies bearer tokens. auth.TokenIssuer implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the absolute URL requests are resolved against.
	BaseURL string

	// Mode is ModeStandard (default) or ModeShortTimeout.
	Mode string

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper

	// Tokens adds an Authorization header when set.
	Tokens TokenSource

	// MaxBodyBytes caps how much of a body is read.
	// Default: 1 MiB
	MaxBodyBytes int64
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Client issues HTTP requests as resilience operations.
type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  TokenSource
	maxBody int64
	mode    string
}

// NewClient creates a client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if opts.Mode == "" {
		opts.Mode = ModeStandard
	}
	hc := &http.Client{Transport: opts.Transport}
	switch opts.Mode {
	case ModeStandard:
	case ModeShortTimeout:
		hc.Timeout = ShortTimeout
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}

	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	return &Client{
		base:    base,
		http:    hc,
		tokens:  opts.Tokens,
		maxBody: opts.MaxBodyBytes,
		mode:    opts.Mode,
	}, nil
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Mode returns the client mode.
func (c *Client) Mode() string {
	return c.mode
}

// Get returns an operation issuing GET path. The operation may be invoked
// once per attempt.
func (c *Client) Get(path string) resilience.Operation[*Response] {
	return func(ctx context.Context) (*Response, error) {
		return c.Do(ctx, http.MethodGet, path)
	}
}

// Do performs one request and classifies its failure.
func (c *Client) Do(ctx context.Context, method, path string) (*Response, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, resilience.NewFault(resilience.FaultOther, fmt.Errorf("httpop: parse path %q: %w", path, err))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, resilience.NewFault(resilience.FaultOther, err)
	}

	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	if id := resilience.ExecutionIDFromContext(ctx); id != "" {
		req.Header.Set(HeaderExecutionID, id)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, resilience.NewFault(resilience.FaultOther, fmt.Errorf("%w: %w", ErrToken, err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, c.classify(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
		if se.Retryable() {
			return nil, resilience.TransportFault(se)
		}
		return nil, resilience.NewFault(resilience.FaultOther, se)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		RequestID:  requestID,
	}, nil
}

// classify maps a transport-level error. Errors caused by ctx are returned
// unchanged so the pipeline can tell its own timeout from cancellation.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}

	var ue *url.Error
	if c.http.Timeout > 0 && errors.As(err, &ue) && ue.Timeout() {
		return resilience.NewFault(resilience.FaultOther, fmt.Errorf("%w: %w", ErrClientTimeout, err))
	}
	return resilience.TransportFault(err)
}
