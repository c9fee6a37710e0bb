package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_ValidToken(t *testing.T) {
	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer good-token" {
			t.Errorf("expected bearer token forwarded, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"auth0|abc123","email":"user@example.com"}`))
	})

	r := NewResolver(srv.URL, 5*time.Second, false)

	id, err := r.Resolve(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.UserID != "auth0|abc123" {
		t.Errorf("expected user ID 'auth0|abc123', got %q", id.UserID)
	}
	if id.Email != "user@example.com" {
		t.Errorf("expected email 'user@example.com', got %q", id.Email)
	}
	if id.IsAdmin {
		t.Error("resolver must not grant admin; that is the gate's job")
	}
}

func TestResolve_EmptyToken(t *testing.T) {
	r := NewResolver("example.com", 5*time.Second, false)

	if _, err := r.Resolve(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolve_ProviderRejectsToken(t *testing.T) {
	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	r := NewResolver(srv.URL, 5*time.Second, false)

	if _, err := r.Resolve(context.Background(), "bad-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolve_MissingClaims(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"sub":"auth0|abc123"}`},
		{"missing sub", `{"email":"user@example.com"}`},
		{"not json", `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			r := NewResolver(srv.URL, 5*time.Second, false)

			if _, err := r.Resolve(context.Background(), "some-token"); !errors.Is(err, ErrMalformedIdentity) {
				t.Fatalf("expected ErrMalformedIdentity, got %v", err)
			}
		})
	}
}

func TestResolve_ProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // resolve against a dead server

	r := NewResolver(srv.URL, time.Second, false)

	_, err := r.Resolve(context.Background(), "some-token")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatal("a provider outage must not be reported as an invalid credential")
	}
}

func TestResolve_DevBypassEnabled(t *testing.T) {
	// No server: the sentinel must short-circuit before any network call.
	r := NewResolver("userinfo.invalid", 5*time.Second, true)

	id, err := r.Resolve(context.Background(), DevToken)
	if err != nil {
		t.Fatalf("resolve dev token: %v", err)
	}
	if id.UserID != "dev-user" || id.Email != "dev@example.com" {
		t.Errorf("unexpected dev identity: %+v", id)
	}
}

func TestResolve_DevBypassDisabled(t *testing.T) {
	// With the bypass off, the sentinel token is just another invalid
	// credential: it must reach the provider and come back 401.
	var called bool
	srv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusUnauthorized)
	})

	r := NewResolver(srv.URL, 5*time.Second, false)

	if _, err := r.Resolve(context.Background(), DevToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if !called {
		t.Error("expected sentinel token to take the provider path when bypass is off")
	}
}
