// Package identity resolves inbound bearer credentials into verified
// identities by delegating to the external identity provider.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/eralens/eralens/internal/model"
)

// Resolution errors. A provider outage is deliberately distinct from an
// invalid credential: the former is a 500, the latter a 401.
var (
	// ErrUnauthenticated indicates a missing or invalid credential.
	ErrUnauthenticated = errors.New("invalid or missing credential")
	// ErrMalformedIdentity indicates the provider accepted the credential
	// but returned unusable claims.
	ErrMalformedIdentity = errors.New("identity provider returned unusable claims")
	// ErrProviderUnavailable indicates the provider could not be reached.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Development identity, reachable only when the resolver was constructed
// with the development bypass enabled.
const (
	DevToken     = "dev-token"
	devUserID    = "dev-user"
	devUserEmail = "dev@example.com"
)

const (
	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
	maxUserinfoBodySize   = 64 * 1024
)

// Resolver verifies bearer tokens against the identity provider's
// userinfo endpoint.
type Resolver struct {
	userinfoURL string
	httpClient  *http.Client
	devBypass   bool
}

// NewResolver creates a Resolver for the given provider domain.
// devBypass is fixed at construction from a deployment-time signal
// (APP_ENV); it must never be derived from request data. When false,
// the dev sentinel token takes the normal provider path and fails.
func NewResolver(domain string, timeout time.Duration, devBypass bool) *Resolver {
	// A bare domain gets https; an explicit scheme is honored so tests
	// can point at a local server.
	base := domain
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	return &Resolver{
		userinfoURL: strings.TrimSuffix(base, "/") + "/userinfo",
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   tlsHandshakeTimeout,
				ResponseHeaderTimeout: responseHeaderTimeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		devBypass: devBypass,
	}
}

// userinfoClaims is the subset of OIDC userinfo claims the core needs.
type userinfoClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// Resolve verifies a bearer token and returns the identity it belongs to.
// It performs no side effects; account creation is the caller's concern.
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	if r.devBypass && token == DevToken {
		return &model.Identity{UserID: devUserID, Email: devUserEmail}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUserinfoBodySize))
		return nil, ErrUnauthenticated
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserinfoBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read userinfo body: %s", ErrProviderUnavailable, err)
	}

	var claims userinfoClaims
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedIdentity, err)
	}
	if claims.Sub == "" || claims.Email == "" {
		return nil, ErrMalformedIdentity
	}

	return &model.Identity{UserID: claims.Sub, Email: claims.Email}, nil
}
