package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("test-signing-key-0123456789abcdef")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func TestJWTAuthenticator_Name(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testKey))
	if a.Name() != "jwt" {
		t.Errorf("Name() = %v, want jwt", a.Name())
	}
}

func TestJWTAuthenticator_ValidToken(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Issuer: "toolpipe", Audience: "demo"}, NewStaticKeyProvider(testKey))
	now := time.Now()
	token := signToken(t, jwt.SigningMethodHS256, testKey, jwt.MapClaims{
		"sub":   "job",
		"iss":   "toolpipe",
		"aud":   "demo",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Minute).Unix(),
		"roles": []string{"caller", "admin"},
	})

	id, err := a.Authenticate(context.Background(), bearer(token))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Subject != "job" || id.Issuer != "toolpipe" {
		t.Errorf("identity = %+v", id)
	}
	if !id.HasRole("admin") || id.HasRole("root") {
		t.Errorf("roles = %v", id.Roles)
	}
	if id.ExpiresAt.IsZero() || id.IssuedAt.IsZero() || id.IsExpired() {
		t.Errorf("times: exp=%v iat=%v", id.ExpiresAt, id.IssuedAt)
	}
	if id.Claims["sub"] != "job" {
		t.Errorf("claims = %v", id.Claims)
	}
}

func TestJWTAuthenticator_Rejections(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Issuer: "toolpipe", Audience: "demo"}, NewStaticKeyProvider(testKey))
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "job",
			"iss": "toolpipe",
			"aud": "demo",
			"exp": time.Now().Add(time.Minute).Unix(),
		}
	}

	expired := valid()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongIssuer := valid()
	wrongIssuer["iss"] = "someone-else"
	wrongAudience := valid()
	wrongAudience["aud"] = "other"

	tests := []struct {
		name    string
		header  http.Header
		wantErr error
	}{
		{"no header", http.Header{}, ErrMissingCredentials},
		{"basic scheme", http.Header{"Authorization": {"Basic abc"}}, ErrMissingCredentials},
		{"garbage", bearer("not.a.jwt"), ErrTokenMalformed},
		{"expired", bearer(signToken(t, jwt.SigningMethodHS256, testKey, expired)), ErrTokenExpired},
		{"wrong key", bearer(signToken(t, jwt.SigningMethodHS256, []byte("other-key"), valid())), ErrInvalidCredentials},
		{"wrong issuer", bearer(signToken(t, jwt.SigningMethodHS256, testKey, wrongIssuer)), ErrInvalidCredentials},
		{"wrong audience", bearer(signToken(t, jwt.SigningMethodHS256, testKey, wrongAudience)), ErrInvalidCredentials},
		{"none algorithm", bearer(signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())), ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.Authenticate(context.Background(), tt.header)
			if id != nil {
				t.Errorf("expected nil identity, got %+v", id)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTAuthenticator_MissingKey(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(nil))
	token := signToken(t, jwt.SigningMethodHS256, testKey, jwt.MapClaims{"sub": "job"})

	_, err := a.Authenticate(context.Background(), bearer(token))
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestJWTAuthenticator_CustomHeaderAndRoles(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{
		HeaderName:  "X-Service-Token",
		TokenPrefix: "Token ",
		RolesClaim:  "scope",
	}, NewStaticKeyProvider(testKey))

	token := signToken(t, jwt.SigningMethodHS256, testKey, jwt.MapClaims{"sub": "svc", "scope": "read write"})
	h := http.Header{}
	h.Set("X-Service-Token", "Token "+token)

	id, err := a.Authenticate(context.Background(), h)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !id.HasRole("read") || !id.HasRole("write") {
		t.Errorf("roles = %v", id.Roles)
	}
}

func TestJWTAuthenticator_Leeway(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Leeway: time.Minute}, NewStaticKeyProvider(testKey))
	token := signToken(t, jwt.SigningMethodHS256, testKey, jwt.MapClaims{
		"sub": "job",
		"exp": time.Now().Add(-10 * time.Second).Unix(),
	})

	if _, err := a.Authenticate(context.Background(), bearer(token)); err != nil {
		t.Errorf("expected token within leeway to pass, got %v", err)
	}
}
