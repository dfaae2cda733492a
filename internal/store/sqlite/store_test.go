package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
	"github.com/cardboxapp/cardbox/internal/remote"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "cardboxd.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func createTestUser(t *testing.T, st *Store, email string) *domain.User {
	t.Helper()

	now := time.Now()
	user := &domain.User{
		ID:           "user-" + email,
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "$argon2id$fake",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.CreateUser(context.Background(), user))
	return user
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	createTestUser(t, st, "a@example.com")

	dup := &domain.User{
		ID: "user-dup", Email: "A@Example.com", PasswordHash: "x",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	err := st.CreateUser(ctx, dup)
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "Casey@Example.com")

	found, err := st.GetUserByEmail(ctx, "casey@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "Casey@Example.com", found.Email)

	_, err = st.GetUserByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAuthSessionLifecycle(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "s@example.com")
	now := time.Now()

	sess := &domain.AuthSession{
		ID:               "sess-1",
		UserID:           user.ID,
		RefreshTokenHash: "hash-one",
		DeviceName:       "laptop",
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
		LastUsedAt:       now,
	}
	require.NoError(t, st.CreateAuthSession(ctx, sess))

	found, err := st.GetAuthSessionByTokenHash(ctx, "hash-one")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.UserID)
	assert.Equal(t, "laptop", found.DeviceName)

	// Rotation swaps the hash; the old one stops resolving.
	require.NoError(t, st.RotateAuthSession(ctx, sess.ID, "hash-two", now.Add(2*time.Hour), now))
	_, err = st.GetAuthSessionByTokenHash(ctx, "hash-one")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	rotated, err := st.GetAuthSessionByTokenHash(ctx, "hash-two")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, rotated.ID)

	require.NoError(t, st.DeleteAuthSession(ctx, sess.ID))
	_, err = st.GetAuthSessionByTokenHash(ctx, "hash-two")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDeleteExpiredAuthSessions(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "e@example.com")
	now := time.Now()

	for i, expiry := range []time.Time{now.Add(-time.Hour), now.Add(time.Hour)} {
		require.NoError(t, st.CreateAuthSession(ctx, &domain.AuthSession{
			ID:               "sess-" + string(rune('a'+i)),
			UserID:           user.ID,
			RefreshTokenHash: "hash-" + string(rune('a'+i)),
			CreatedAt:        now.Add(-2 * time.Hour),
			ExpiresAt:        expiry,
			LastUsedAt:       now,
		}))
	}

	n, err := st.DeleteExpiredAuthSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = st.GetAuthSessionByTokenHash(ctx, "hash-b")
	assert.NoError(t, err)
}

func testCard(cloudID string, updatedAt time.Time) remote.Card {
	return remote.Card{
		CloudID:   cloudID,
		Front:     "front",
		Back:      "back",
		Tags:      []string{"test"},
		Source:    "manual",
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
	}
}

func TestUpsertCards_NewerWins(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "c@example.com")
	base := time.Now().Truncate(time.Millisecond)

	first := testCard("cloud-1", base)
	first.Front = "original"
	require.NoError(t, st.UpsertCards(ctx, user.ID, []remote.Card{first}))

	// A stale copy from a lagging device must not roll the row back.
	stale := testCard("cloud-1", base.Add(-time.Minute))
	stale.Front = "stale"
	require.NoError(t, st.UpsertCards(ctx, user.ID, []remote.Card{stale}))

	snap, err := st.FetchSnapshot(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "original", snap.Cards[0].Front)

	// A strictly newer copy wins.
	newer := testCard("cloud-1", base.Add(time.Minute))
	newer.Front = "edited"
	require.NoError(t, st.UpsertCards(ctx, user.ID, []remote.Card{newer}))

	snap, err = st.FetchSnapshot(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", snap.Cards[0].Front)
}

func TestUpsertCards_EqualTimestampIsNoop(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "eq@example.com")
	at := time.Now().Truncate(time.Millisecond)

	first := testCard("cloud-1", at)
	first.Front = "kept"
	require.NoError(t, st.UpsertCards(ctx, user.ID, []remote.Card{first}))

	same := testCard("cloud-1", at)
	same.Front = "discarded"
	require.NoError(t, st.UpsertCards(ctx, user.ID, []remote.Card{same}))

	snap, err := st.FetchSnapshot(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", snap.Cards[0].Front)
}

func TestUpsertProgress_RoundTrip(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "p@example.com")
	now := time.Now().Truncate(time.Millisecond)
	reviewed := now.Add(-time.Hour)

	entry := remote.Progress{
		CardCloudID:    "cloud-1",
		Box:            3,
		DueDate:        "2026-09-08",
		LastReviewedAt: &reviewed,
		UpdatedAt:      now,
	}
	require.NoError(t, st.UpsertProgress(ctx, user.ID, []remote.Progress{entry}))

	snap, err := st.FetchSnapshot(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, snap.Progress, 1)
	got := snap.Progress[0]
	assert.Equal(t, 3, got.Box)
	assert.Equal(t, "2026-09-08", got.DueDate)
	require.NotNil(t, got.LastReviewedAt)
	assert.True(t, got.LastReviewedAt.Equal(reviewed))
	assert.False(t, got.IsLearned)
	assert.Nil(t, got.LearnedAt)
}

func TestInsertReviewLogs_Idempotent(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "l@example.com")
	now := time.Now().Truncate(time.Millisecond)

	logs := []remote.ReviewLog{
		{ClientEventID: "evt-1", DeviceID: "dev-a", CardCloudID: "cloud-1", Result: "good", CreatedAt: now},
		{ClientEventID: "evt-2", DeviceID: "dev-a", CardCloudID: "cloud-1", Result: "bad", WasReversed: true, CreatedAt: now.Add(time.Second)},
	}
	require.NoError(t, st.InsertReviewLogs(ctx, user.ID, logs))

	// Re-pushing the same batch plus one new event adds only the new one.
	require.NoError(t, st.InsertReviewLogs(ctx, user.ID, append(logs,
		remote.ReviewLog{ClientEventID: "evt-3", DeviceID: "dev-b", CardCloudID: "cloud-1", Result: "good", CreatedAt: now.Add(2 * time.Second)},
	)))

	snap, err := st.FetchSnapshot(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, snap.Logs, 3)
	assert.Equal(t, "evt-1", snap.Logs[0].ClientEventID)
	assert.True(t, snap.Logs[1].WasReversed)
}

func TestUpsertSettings_LWW(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "set@example.com")
	base := time.Now().Truncate(time.Millisecond)

	first := &remote.Settings{
		Box1TargetSize:            20,
		BoxIntervalDays:           map[int]int{2: 3, 3: 7, 4: 14, 5: 30},
		LearnedReviewIntervalDays: 60,
		ReverseProbability:        0.25,
		UpdatedAt:                 base,
	}
	require.NoError(t, st.UpsertSettings(ctx, user.ID, first))

	stale := &remote.Settings{Box1TargetSize: 5, BoxIntervalDays: map[int]int{2: 1}, LearnedReviewIntervalDays: 1, ReverseProbability: 0, UpdatedAt: base.Add(-time.Minute)}
	require.NoError(t, st.UpsertSettings(ctx, user.ID, stale))

	snap, err := st.FetchSnapshot(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.Settings)
	assert.Equal(t, 20, snap.Settings.Box1TargetSize)
	assert.Equal(t, map[int]int{2: 3, 3: 7, 4: 14, 5: 30}, snap.Settings.BoxIntervalDays)

	newer := &remote.Settings{Box1TargetSize: 30, BoxIntervalDays: map[int]int{2: 4}, LearnedReviewIntervalDays: 90, ReverseProbability: 0.5, UpdatedAt: base.Add(time.Minute)}
	require.NoError(t, st.UpsertSettings(ctx, user.ID, newer))

	snap, err = st.FetchSnapshot(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.Settings.Box1TargetSize)
}

func TestDeleteCards_RemovesProgressKeepsLogs(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, st, "d@example.com")
	now := time.Now().Truncate(time.Millisecond)

	require.NoError(t, st.UpsertCards(ctx, user.ID, []remote.Card{testCard("cloud-1", now), testCard("cloud-2", now)}))
	require.NoError(t, st.UpsertProgress(ctx, user.ID, []remote.Progress{
		{CardCloudID: "cloud-1", Box: 1, UpdatedAt: now},
		{CardCloudID: "cloud-2", Box: 2, UpdatedAt: now},
	}))
	require.NoError(t, st.InsertReviewLogs(ctx, user.ID, []remote.ReviewLog{
		{ClientEventID: "evt-1", CardCloudID: "cloud-1", Result: "good", CreatedAt: now},
	}))

	require.NoError(t, st.DeleteCards(ctx, user.ID, []string{"cloud-1", "cloud-unknown"}))

	snap, err := st.FetchSnapshot(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "cloud-2", snap.Cards[0].CloudID)
	require.Len(t, snap.Progress, 1)
	assert.Equal(t, "cloud-2", snap.Progress[0].CardCloudID)
	assert.Len(t, snap.Logs, 1)
}

func TestSnapshot_IsolatedPerUser(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice@example.com")
	bob := createTestUser(t, st, "bob@example.com")
	now := time.Now().Truncate(time.Millisecond)

	require.NoError(t, st.UpsertCards(ctx, alice.ID, []remote.Card{testCard("cloud-a", now)}))
	require.NoError(t, st.UpsertCards(ctx, bob.ID, []remote.Card{testCard("cloud-b", now)}))

	snap, err := st.FetchSnapshot(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "cloud-a", snap.Cards[0].CloudID)

	empty, err := st.FetchSnapshot(ctx, "user-nobody")
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}
