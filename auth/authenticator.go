package auth

import (
	"context"
	"net/http"
)

// Authenticator validates the credentials carried by an HTTP request.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: credential problems wrap one of the package sentinels so the
//     caller can answer 401; any other error is internal.
type Authenticator interface {
	Name() string
	Authenticate(ctx context.Context, header http.Header) (*Identity, error)
}

// AuthenticatorFunc adapts a function to an Authenticator.
type AuthenticatorFunc func(ctx context.Context, header http.Header) (*Identity, error)

// Name returns "func".
func (f AuthenticatorFunc) Name() string { return "func" }

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, header http.Header) (*Identity, error) {
	return f(ctx, header)
}
