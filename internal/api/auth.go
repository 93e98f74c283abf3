package api

import (
	"context"
	"net/http"
)

// Me is the backend's authoritative profile for the current session. ID is the
// durable backend identifier, distinct from the third-party UID.
type Me struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// ExchangeGoogleToken posts a Google ID token to establish the backend cookie
// session.
func (c *Client) ExchangeGoogleToken(ctx context.Context, idToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/google", nil, map[string]string{"idToken": idToken}, nil)
}

// FetchMe returns the backend profile for the current session.
func (c *Client) FetchMe(ctx context.Context) (Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, nil, &me); err != nil {
		return Me{}, err
	}
	return me, nil
}

// Logout invalidates the backend session. Callers treat failure as
// best-effort: local teardown proceeds regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}
