package secret

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name   string
	values map[string]string
	closed bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := s.values[ref]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestParseSecretRef(t *testing.T) {
	provider, ref, ok := ParseSecretRef("secretref:file:jwt/key:v2")
	if !ok || provider != "file" || ref != "jwt/key:v2" {
		t.Errorf("ParseSecretRef() = %q %q %v", provider, ref, ok)
	}
	for _, bad := range []string{"plain", "secretref:", "secretref:env", "secretref::x", "secretref:env:"} {
		if _, _, ok := ParseSecretRef(bad); ok {
			t.Errorf("ParseSecretRef(%q) should fail", bad)
		}
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	stub := &stubProvider{name: "stub", values: map[string]string{"alpha": "one", "beta": "two", "blank": ""}}
	r := NewResolver(true, stub).WithLookup(mapLookup(map[string]string{"REF": "alpha"}))
	ctx := context.Background()

	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "secretref:stub:alpha", want: "one"},
		{in: "secretref:stub:${REF}", want: "one"},
		{in: "Bearer secretref:stub:beta", want: "Bearer two"},
		{in: "secretref:stub:alpha secretref:stub:beta", want: "one two"},
		{in: "no refs here", want: "no refs here"},
		{in: "secretref:stub:blank", wantErr: ErrEmptySecret},
		{in: "secretref:stub:missing", wantErr: ErrNotFound},
		{in: "secretref:vault:x", wantErr: ErrProviderNotRegistered},
		{in: "secretref:stub", wantErr: ErrInvalidRef},
		{in: "${UNSET}", wantErr: ErrMissingEnv},
	}
	for _, tt := range tests {
		got, err := r.ResolveValue(ctx, tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveValue(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ResolveValue(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestResolver_NonStrictAllowsEmpty(t *testing.T) {
	r := NewResolver(false, &stubProvider{name: "stub", values: map[string]string{"blank": ""}})
	got, err := r.ResolveValue(context.Background(), "secretref:stub:blank")
	if err != nil || got != "" {
		t.Errorf("ResolveValue() = %q, %v", got, err)
	}
}

func TestResolver_NilResolverExpandsOnly(t *testing.T) {
	t.Setenv("TOOLPIPE_NIL_RESOLVER", "x")
	var r *Resolver
	got, err := r.ResolveValue(context.Background(), "${TOOLPIPE_NIL_RESOLVER}:secretref:a:b")
	if err != nil || got != "x:secretref:a:b" {
		t.Errorf("ResolveValue() = %q, %v", got, err)
	}
}

func TestResolver_ResolveMap(t *testing.T) {
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"k": "v"}})

	out, err := r.ResolveMap(context.Background(), map[string]string{"a": "secretref:stub:k", "b": "lit"})
	if err != nil || out["a"] != "v" || out["b"] != "lit" {
		t.Errorf("ResolveMap() = %v, %v", out, err)
	}
	if _, err := r.ResolveMap(context.Background(), map[string]string{"bad": "secretref:stub:zz"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if out, err := r.ResolveMap(context.Background(), nil); out != nil || err != nil {
		t.Errorf("nil map: %v, %v", out, err)
	}
}

func TestResolver_Close(t *testing.T) {
	stub := &stubProvider{name: "stub"}
	r := NewResolver(true, stub, nil)
	if err := r.Close(); err != nil || !stub.closed {
		t.Errorf("Close() = %v, closed=%v", err, stub.closed)
	}
}
