package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestTokenAuthenticator(t *testing.T) {
	a := &TokenAuthenticator{Token: "s3cret"}

	req := httptest.NewRequest("GET", "/v1/sessions", nil)
	if _, err := a.Authenticate(req); !errors.Is(err, ErrMissingBearer) {
		t.Fatalf("expected missing bearer, got %v", err)
	}

	req.Header.Set("Authorization", "Basic abc")
	if _, err := a.Authenticate(req); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	req.Header.Set("Authorization", "Bearer wrong")
	if _, err := a.Authenticate(req); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	req.Header.Set("Authorization", "Bearer s3cret")
	claims, err := a.Authenticate(req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if claims.Token != "s3cret" {
		t.Fatalf("expected token in claims, got %q", claims.Token)
	}
}

func TestDisabledAuthenticatorAllowsAll(t *testing.T) {
	a := &TokenAuthenticator{}
	if a.Enabled() {
		t.Fatalf("expected disabled")
	}
	if _, err := a.Authenticate(httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
