package remote

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cardboxapp/cardbox/internal/errors"
)

const defaultTimeout = 30 * time.Second

// Client is the HTTP implementation of Store, talking to a cardboxd
// backend with a bearer token. Clients created through Login renew
// their access token automatically; clients created with NewClient use
// the given token as-is.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger

	mu           sync.Mutex
	token        string
	refreshToken string
	sessionID    string
	expiresAt    time.Time
}

// NewClient creates a client for the backend at baseURL with a static
// bearer token.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: baseURL,
		token:   token,
		logger:  logger,
	}
}

// FetchSnapshot reads the user's complete remote state.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var snapshot Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/sync/snapshot", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// UpsertCards pushes cards, keyed remotely by cloud id.
func (c *Client) UpsertCards(ctx context.Context, cards []Card) error {
	if len(cards) == 0 {
		return nil
	}
	body := struct {
		Cards []Card `json:"cards"`
	}{cards}
	return c.do(ctx, http.MethodPost, "/api/v1/sync/cards", body, nil)
}

// UpsertProgress pushes review states, keyed remotely by card cloud id.
func (c *Client) UpsertProgress(ctx context.Context, progress []Progress) error {
	if len(progress) == 0 {
		return nil
	}
	body := struct {
		Progress []Progress `json:"progress"`
	}{progress}
	return c.do(ctx, http.MethodPost, "/api/v1/sync/progress", body, nil)
}

// UpsertSettings pushes the user's study settings.
func (c *Client) UpsertSettings(ctx context.Context, settings *Settings) error {
	if settings == nil {
		return nil
	}
	body := struct {
		Settings *Settings `json:"settings"`
	}{settings}
	return c.do(ctx, http.MethodPost, "/api/v1/sync/settings", body, nil)
}

// InsertReviewLogs pushes review logs. The backend upserts on
// (user, client_event_id), so retrying a failed pass is safe.
func (c *Client) InsertReviewLogs(ctx context.Context, logs []ReviewLog) error {
	if len(logs) == 0 {
		return nil
	}
	body := struct {
		Logs []ReviewLog `json:"logs"`
	}{logs}
	return c.do(ctx, http.MethodPost, "/api/v1/sync/logs", body, nil)
}

// DeleteCards removes cards remotely by cloud id, cascading to their
// progress server-side. Review logs stay; they are history.
func (c *Client) DeleteCards(ctx context.Context, cloudIDs []string) error {
	if len(cloudIDs) == 0 {
		return nil
	}
	body := struct {
		CloudIDs []string `json:"cloud_ids"`
	}{cloudIDs}
	return c.do(ctx, http.MethodPost, "/api/v1/sync/cards/delete", body, nil)
}

// do executes one authenticated request, encoding body and decoding
// out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.currentToken(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, token, body, out)
}

// doUnauthenticated skips the token source; the refresh endpoint uses
// it to avoid renewing through itself.
func (c *Client) doUnauthenticated(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, method, path, "", body, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.logger != nil {
		c.logger.Debug("sync request", "method", method, "path", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "sync backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return errors.Unauthorized("sync session rejected")
		case resp.StatusCode >= 500:
			return errors.Unavailable(fmt.Sprintf("sync backend error: %s", bytes.TrimSpace(data)))
		default:
			return errors.Internal(fmt.Sprintf("sync request failed with %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
		}
	}

	if out == nil {
		return nil
	}
	if err := json.UnmarshalRead(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
