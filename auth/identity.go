package auth

import (
	"slices"
	"time"
)

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the sub claim.
	Subject string

	// Issuer is the iss claim.
	Issuer string

	// Roles come from the configured roles claim.
	Roles []string

	// Claims contains the raw token claims.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired reports whether the identity's token has expired. Tokens without
// an expiry never expire.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}
