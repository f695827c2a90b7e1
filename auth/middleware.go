package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Middleware authenticates every request and rejects failures with 401.
// The resulting Identity is available through IdentityFromContext.
func Middleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(r.Context(), r.Header)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	code := http.StatusUnauthorized
	msg := "unauthorized"
	switch {
	case errors.Is(err, ErrTokenExpired):
		msg = "token expired"
	case errors.Is(err, ErrMissingCredentials):
		msg = "missing credentials"
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrInvalidCredentials):
		msg = "invalid token"
	default:
		code = http.StatusInternalServerError
		msg = "authentication unavailable"
	}

	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
