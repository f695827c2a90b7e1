package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const refPrefix = "secretref:"

// Resolver resolves environment variables and secret references in values.
// It is safe for concurrent use once providers are registered.
type Resolver struct {
	providers map[string]Provider
	strict    bool
	lookup    LookupFunc
}

// NewResolver creates a resolver. A strict resolver rejects empty secrets.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[string]Provider, len(providers)),
		strict:    strict,
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// WithLookup replaces the environment lookup used for ${VAR} expansion.
func (r *Resolver) WithLookup(lookup LookupFunc) *Resolver {
	r.lookup = lookup
	return r
}

// Register adds or replaces a provider under its name.
func (r *Resolver) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[p.Name()] = p
}

// Close closes every registered provider.
func (r *Resolver) Close() error {
	var errs []error
	for _, p := range r.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// ResolveValue expands the environment in value, then resolves every secret
// reference in it. References end at whitespace.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	var (
		expanded string
		err      error
	)
	if r == nil || r.lookup == nil {
		expanded, err = ExpandEnvStrict(value)
	} else {
		expanded, err = ExpandStrict(value, r.lookup)
	}
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	if strings.HasPrefix(expanded, refPrefix) {
		if _, _, ok := ParseSecretRef(expanded); !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidRef, expanded)
		}
	}
	return r.resolveInline(ctx, expanded)
}

// ResolveMap resolves each value in input, naming the failing key.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ParseSecretRef parses secretref:<provider>:<ref>.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolve(ctx context.Context, providerName, ref string) (string, error) {
	provider, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProviderNotRegistered, providerName)
	}
	v, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %s:%s", ErrEmptySecret, providerName, ref)
	}
	return v, nil
}

var inlineRefPattern = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// resolveInline replaces every embedded reference, last match first so
// earlier indexes stay valid.
func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := inlineRefPattern.FindAllStringSubmatchIndex(value, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		resolved, err := r.resolve(ctx, value[m[2]:m[3]], value[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		value = value[:m[0]] + resolved + value[m[1]:]
	}
	return value, nil
}
