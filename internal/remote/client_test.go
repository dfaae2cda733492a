package remote

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardboxapp/cardbox/internal/errors"
)

func TestClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.MarshalWrite(w, &Snapshot{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", slog.New(slog.DiscardHandler))
	_, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestClient_ErrorMapping(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", slog.New(slog.DiscardHandler))

	_, err := c.FetchSnapshot(context.Background())
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	status = http.StatusInternalServerError
	_, err = c.FetchSnapshot(context.Background())
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestClient_SkipsEmptyBatches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", slog.New(slog.DiscardHandler))
	ctx := context.Background()
	require.NoError(t, c.UpsertCards(ctx, nil))
	require.NoError(t, c.UpsertProgress(ctx, nil))
	require.NoError(t, c.InsertReviewLogs(ctx, nil))
	require.NoError(t, c.DeleteCards(ctx, nil))
	require.NoError(t, c.UpsertSettings(ctx, nil))
	assert.Zero(t, calls)
}

func TestLogin_RenewsExpiringToken(t *testing.T) {
	var refreshes int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		require.NoError(t, json.UnmarshalRead(r.Body, &creds))
		assert.Equal(t, "u@example.com", creds.Email)
		// Expires immediately, forcing a renewal on the next call.
		writeAuth(w, "access-1", "refresh-1", 0)
	})
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		require.NoError(t, json.UnmarshalRead(r.Body, &body))
		assert.Equal(t, "refresh-1", body.RefreshToken)
		writeAuth(w, "access-2", "refresh-2", 900)
	})
	mux.HandleFunc("/api/v1/sync/snapshot", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-2", r.Header.Get("Authorization"))
		_ = json.MarshalWrite(w, &Snapshot{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c, sess, err := Login(ctx, srv.URL, Credentials{Email: "u@example.com", Password: "pw"}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "refresh-1", sess.RefreshToken)

	_, err = c.FetchSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshes)

	// A fresh token skips the refresh endpoint.
	_, err = c.FetchSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshes)
}

func writeAuth(w http.ResponseWriter, access, refresh string, expiresIn int) {
	resp := authResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    "sess-1",
		ExpiresIn:    expiresIn,
	}
	resp.User.ID = "user-1"
	resp.User.Email = "u@example.com"
	_ = json.MarshalWrite(w, &resp)
}

func TestSnapshotEmpty(t *testing.T) {
	s := &Snapshot{}
	assert.True(t, s.Empty())
	s.Settings = &Settings{UpdatedAt: time.Now()}
	assert.False(t, s.Empty())
}
