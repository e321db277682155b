package fluxpay

import (
	"context"
	"net/http"

	"github.com/fluxpay/fluxpay-cli/session"
)

// Login signs in and stores the returned pair and user.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates a user, then behaves like Login.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"fullName": fullName,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, payload map[string]string) (*AuthResponse, error) {
	r, err := newRequest(http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	r.anonymous = true

	var out AuthResponse
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}

	c.store.Authenticate(out.AccessToken, out.RefreshToken, session.View{
		UserID:   out.UserID,
		Email:    out.Email,
		FullName: out.FullName,
	})
	c.log.WithField("user_id", out.UserID).Info("signed in")
	return &out, nil
}

// Logout forgets the session locally. The backend keeps no session to end.
func (c *Client) Logout() {
	c.store.ClearTokens()
}

// Me returns the profile of the signed-in user.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	r, err := newRequest(http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var out Profile
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
