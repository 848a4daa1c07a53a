package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/errors"
)

func TestNewAuthenticator_DisabledWithoutSecret(t *testing.T) {
	if a := NewAuthenticator(config.AuthConfig{}); a != nil {
		t.Error("expected nil authenticator without secret")
	}
}

func TestAuthenticator_Verify(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	a := NewAuthenticator(config.AuthConfig{Secret: testSecret, Issuer: "streamscope"})
	a.now = func() time.Time { return now }

	valid, err := SignToken(testSecret, "streamscope", "ops", time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := SignToken(testSecret, "streamscope", "ops", time.Minute, now.Add(-time.Hour))
	otherIssuer, _ := SignToken(testSecret, "someone-else", "ops", time.Hour, now)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "streamscope",
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    "streamscope",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid", "Bearer " + valid, true},
		{"missing", "", false},
		{"wrong scheme", "Basic " + valid, false},
		{"empty token", "Bearer ", false},
		{"expired", "Bearer " + expired, false},
		{"issuer", "Bearer " + otherIssuer, false},
		{"no expiry", "Bearer " + noExpiry, false},
		{"algorithm", "Bearer " + hs512, false},
		{"garbage", "Bearer not.a.token", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/reset", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			err := a.Verify(r)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, errors.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}
