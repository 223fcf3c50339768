// Package client holds the outbound HTTP clients the services use to talk to
// each other, plus the shared bearer-auth middleware built on the auth client.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/identity"
)

// AuthClient verifies bearer tokens against the auth service's /profile
// endpoint, the sole surface peers call.
type AuthClient struct {
	baseURL string
	http    *http.Client
}

// NewAuthClient builds a client with the short verification timeout the
// middleware requires.
func NewAuthClient(baseURL string, timeout time.Duration) *AuthClient {
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &AuthClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Profile resolves the bearer token to a user projection.
// 4xx from auth maps to ErrUnauthorized, transport failures to ErrUnavailable.
func (c *AuthClient) Profile(ctx context.Context, token string) (identity.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/auth/profile", nil)
	if err != nil {
		return identity.Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("%w: auth service unavailable: %s", errs.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var p identity.Profile
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return identity.Profile{}, fmt.Errorf("decode profile: %w", err)
		}
		return p, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return identity.Profile{}, fmt.Errorf("%w: Invalid or expired token", errs.ErrUnauthorized)
	default:
		return identity.Profile{}, fmt.Errorf("%w: auth service returned %d", errs.ErrUnavailable, resp.StatusCode)
	}
}
