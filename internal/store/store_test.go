package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/id"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "cardbox-test-*")
	require.NoError(t, err)

	s, err := Open(filepath.Join(tmpDir, "test.db"), nil)
	require.NoError(t, err)
	require.NotNil(t, s)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

func testCard(localID string) *domain.Card {
	now := time.Now()
	return &domain.Card{
		Syncable: domain.Syncable{
			ID:        localID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Front:  "bonjour",
		Back:   "hello",
		Tags:   []string{"french/greetings"},
		Source: domain.SourceManual,
	}
}

func TestCreateCard_InitializesReviewState(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	card := testCard("card-001")
	require.NoError(t, s.CreateCard(ctx, card))

	got, err := s.GetCard(ctx, "card-001")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", got.Front)

	state, err := s.GetReviewState(ctx, "card-001")
	require.NoError(t, err)
	assert.Equal(t, domain.BoxInactive, state.Box)
	assert.False(t, state.IsLearned)
}

func TestCreateCard_Duplicate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.CreateCard(ctx, testCard("card-001")))

	err := s.CreateCard(ctx, testCard("card-001"))
	assert.ErrorIs(t, err, ErrDuplicateCard)
}

func TestGetCardByCloudID(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	card := testCard("card-001")
	card.CloudID = id.Cloud()
	require.NoError(t, s.CreateCard(ctx, card))

	got, err := s.GetCardByCloudID(ctx, card.CloudID)
	require.NoError(t, err)
	assert.Equal(t, "card-001", got.ID)

	_, err = s.GetCardByCloudID(ctx, "no-such-cloud-id")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestGetCardByCloudID_TracksReassignment(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	card := testCard("card-001")
	require.NoError(t, s.CreateCard(ctx, card))

	// Cloud id is assigned on first push, after creation.
	card.CloudID = id.Cloud()
	require.NoError(t, s.PutCard(ctx, card))

	got, err := s.GetCardByCloudID(ctx, card.CloudID)
	require.NoError(t, err)
	assert.Equal(t, "card-001", got.ID)
}

func TestGetCardBySource(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	card := testCard("card-001")
	card.Source = domain.SourcePublicPack
	card.SourcePackID = "pack-fr-100"
	card.SourcePublicID = "pub-42"
	require.NoError(t, s.CreateCard(ctx, card))

	got, err := s.GetCardBySource(ctx, "pack-fr-100", "pub-42")
	require.NoError(t, err)
	assert.Equal(t, "card-001", got.ID)

	_, err = s.GetCardBySource(ctx, "pack-fr-100", "pub-43")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestDeleteCardCascade(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	card := testCard("card-001")
	card.CloudID = id.Cloud()
	require.NoError(t, s.CreateCard(ctx, card))

	log := &domain.ReviewLog{
		ID:            id.ReviewLog(),
		CardID:        "card-001",
		ClientEventID: id.Event(),
		Result:        domain.ResultGood,
		PreviousBox:   1,
		NewBox:        2,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, s.CreateReviewLog(ctx, log))

	require.NoError(t, s.DeleteCardCascade(ctx, "card-001"))

	_, err := s.GetCard(ctx, "card-001")
	assert.ErrorIs(t, err, ErrCardNotFound)
	_, err = s.GetReviewState(ctx, "card-001")
	assert.ErrorIs(t, err, ErrStateNotFound)

	logs, err := s.ListReviewLogsForCard(ctx, "card-001")
	require.NoError(t, err)
	assert.Empty(t, logs)

	// Pushed cards leave a remote delete behind.
	queue, err := s.PendingRemoteDeletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{card.CloudID}, queue)
}

func TestDeleteCardCascade_NeverPushed(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.CreateCard(ctx, testCard("card-001")))
	require.NoError(t, s.DeleteCardCascade(ctx, "card-001"))

	queue, err := s.PendingRemoteDeletes(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestDeleteCardCascade_MissingCardIsNoop(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	assert.NoError(t, s.DeleteCardCascade(context.Background(), "card-missing"))
}

func TestCreateReviewLog_DuplicateEventID(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.CreateCard(ctx, testCard("card-001")))

	eventID := id.Event()
	log := &domain.ReviewLog{
		ID:            id.ReviewLog(),
		CardID:        "card-001",
		ClientEventID: eventID,
		Result:        domain.ResultGood,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, s.CreateReviewLog(ctx, log))

	replay := &domain.ReviewLog{
		ID:            id.ReviewLog(),
		CardID:        "card-001",
		ClientEventID: eventID,
		Result:        domain.ResultGood,
		CreatedAt:     time.Now(),
	}
	err := s.CreateReviewLog(ctx, replay)
	assert.ErrorIs(t, err, ErrDuplicateEventID)

	got, err := s.GetReviewLogByEventID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, log.ID, got.ID)
}

func TestListUnsyncedReviewLogs(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.CreateCard(ctx, testCard("card-001")))

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		log := &domain.ReviewLog{
			ID:            id.ReviewLog(),
			CardID:        "card-001",
			ClientEventID: id.Event(),
			Result:        domain.ResultGood,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateReviewLog(ctx, log))
		ids = append(ids, log.ID)
	}

	unsynced, err := s.ListUnsyncedReviewLogs(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 3)
	// Oldest first.
	assert.Equal(t, ids[0], unsynced[0].ID)
	assert.Equal(t, ids[2], unsynced[2].ID)

	require.NoError(t, s.MarkReviewLogsSynced(ctx, ids[:2], time.Now()))

	unsynced, err = s.ListUnsyncedReviewLogs(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, ids[2], unsynced[0].ID)
}

func TestSettings_DefaultsWhenUnset(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	settings, err := s.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings().Box1TargetSize, settings.Box1TargetSize)
}

func TestSettings_SaveRoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	settings := domain.DefaultSettings()
	settings.Box1TargetSize = 35
	now := time.Now()
	require.NoError(t, s.SaveSettings(ctx, settings, now))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 35, got.Box1TargetSize)
	assert.WithinDuration(t, now, got.UpdatedAt, time.Second)
}

func TestWatermark(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	wm, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, wm.IsZero(), "fresh store has no watermark")

	at := time.Now().Truncate(time.Second)
	require.NoError(t, s.SetWatermark(ctx, at))

	wm, err = s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, wm.Equal(at))
}

func TestDeviceID_Stable(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	first, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRemoteDeleteQueue(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.EnqueueRemoteDelete(ctx, "cloud-a"))
	require.NoError(t, s.EnqueueRemoteDelete(ctx, "cloud-b"))
	require.NoError(t, s.EnqueueRemoteDelete(ctx, "cloud-a")) // dedup

	queue, err := s.PendingRemoteDeletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cloud-a", "cloud-b"}, queue)

	require.NoError(t, s.ClearRemoteDeletes(ctx, []string{"cloud-a"}))

	queue, err = s.PendingRemoteDeletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cloud-b"}, queue)
}

func TestBatchWriter_MaterializesPull(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	batch := s.NewBatchWriter(100)

	card := testCard("card-001")
	card.CloudID = id.Cloud()
	require.NoError(t, batch.PutCard(card))
	require.NoError(t, batch.PutReviewState(domain.NewReviewState(card.ID)))

	log := &domain.ReviewLog{
		ID:            id.ReviewLog(),
		CardID:        card.ID,
		ClientEventID: id.Event(),
		Result:        domain.ResultBad,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, batch.PutReviewLog(log))
	require.NoError(t, batch.Flush())

	got, err := s.GetCardByCloudID(ctx, card.CloudID)
	require.NoError(t, err)
	assert.Equal(t, card.ID, got.ID)

	logs, err := s.ListReviewLogsForCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	byEvent, err := s.GetReviewLogByEventID(ctx, log.ClientEventID)
	require.NoError(t, err)
	assert.Equal(t, log.ID, byEvent.ID)
}
