package remote

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardboxapp/cardbox/internal/errors"
)

// refreshLeeway renews the access token this long before it expires, so
// an in-flight sync pass never races the expiry.
const refreshLeeway = 30 * time.Second

// Credentials identify a user to the backend at sign-in.
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name,omitempty"`
}

// Session is the authenticated state returned by Login.
type Session struct {
	UserID       string
	Email        string
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// authResponse mirrors the backend's auth payload.
type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// Login authenticates against the backend at baseURL and returns a
// client bound to the session plus the session details. The client
// renews its access token with the refresh token as needed.
func Login(ctx context.Context, baseURL string, creds Credentials, logger *slog.Logger) (*Client, *Session, error) {
	c := NewClient(baseURL, "", logger)

	var resp authResponse
	if err := c.do(ctx, "POST", "/api/v1/auth/login", creds, &resp); err != nil {
		return nil, nil, err
	}
	sess := sessionFromResponse(&resp, time.Now())
	c.adoptSession(sess)
	return c, sess, nil
}

// Register creates an account on the backend and returns a client bound
// to the new session.
func Register(ctx context.Context, baseURL string, creds Credentials, logger *slog.Logger) (*Client, *Session, error) {
	c := NewClient(baseURL, "", logger)

	var resp authResponse
	if err := c.do(ctx, "POST", "/api/v1/auth/register", creds, &resp); err != nil {
		return nil, nil, err
	}
	sess := sessionFromResponse(&resp, time.Now())
	c.adoptSession(sess)
	return c, sess, nil
}

// Logout revokes the client's session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID == "" {
		return nil
	}
	body := struct {
		SessionID string `json:"session_id"`
	}{sessionID}
	return c.do(ctx, "POST", "/api/v1/auth/logout", body, nil)
}

func sessionFromResponse(resp *authResponse, now time.Time) *Session {
	return &Session{
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		SessionID:    resp.SessionID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
}

func (c *Client) adoptSession(sess *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = sess.AccessToken
	c.refreshToken = sess.RefreshToken
	c.sessionID = sess.SessionID
	c.expiresAt = sess.ExpiresAt
}

// currentToken returns a valid access token, renewing it through the
// refresh endpoint when the current one is about to expire. Clients
// constructed with a static token never refresh.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshToken == "" || time.Until(c.expiresAt) > refreshLeeway {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	refreshToken := c.refreshToken
	c.mu.Unlock()

	body := struct {
		RefreshToken string `json:"refresh_token"`
	}{refreshToken}
	var resp authResponse
	if err := c.doUnauthenticated(ctx, "POST", "/api/v1/auth/refresh", body, &resp); err != nil {
		return "", errors.Wrap(err, errors.CodeTokenExpired, "session renewal failed")
	}
	c.adoptSession(sessionFromResponse(&resp, time.Now()))

	if c.logger != nil {
		c.logger.Debug("access token renewed", "session", resp.SessionID)
	}
	return resp.AccessToken, nil
}
