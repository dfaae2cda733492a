package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
	"github.com/cardboxapp/cardbox/internal/search"
	"github.com/cardboxapp/cardbox/internal/store"
	"github.com/cardboxapp/cardbox/internal/validation"
)

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) RequestSync(context.Context) {
	n.calls++
}

type fixture struct {
	store    *store.Store
	search   *search.Index
	notifier *countingNotifier
	cards    *CardService
	reviews  *ReviewService
	settings *SettingsService
	searches *SearchService
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	dir, err := os.MkdirTemp("", "cardbox-service-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	logger := slog.New(slog.DiscardHandler)

	st, err := store.Open(filepath.Join(dir, "store"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	idx, err := search.NewIndex(search.Options{
		Path:   filepath.Join(dir, "search.bleve"),
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	notifier := &countingNotifier{}
	f := &fixture{
		store:    st,
		search:   idx,
		notifier: notifier,
	}
	f.cards = NewCardService(st, idx, notifier, logger)
	f.reviews = NewReviewService(st, notifier, logger, func() float64 { return 0.99 })
	f.settings = NewSettingsService(st, validation.New(), notifier, logger)
	f.searches = NewSearchService(st, idx, logger)
	return f
}

func TestCardService_CreateCard(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	card, err := f.cards.CreateCard(ctx, CreateCardInput{
		Front: "la maison",
		Back:  "the house",
		Tags:  []string{"French/Nouns", "french/nouns"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, card.ID)
	assert.Equal(t, domain.SourceManual, card.Source)
	assert.Equal(t, []string{"french/nouns"}, card.Tags)
	assert.Equal(t, 1, f.notifier.calls)

	// The initial review state lands in the inactive pool.
	state, err := f.store.GetReviewState(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BoxInactive, state.Box)
	assert.False(t, state.IsLearned)
}

func TestCardService_CreateCard_RequiresContent(t *testing.T) {
	f := setupFixture(t)

	_, err := f.cards.CreateCard(context.Background(), CreateCardInput{Front: "only front"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, 0, f.notifier.calls)
}

func TestCardService_UpdateCard(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	card, err := f.cards.CreateCard(ctx, CreateCardInput{Front: "der Hund", Back: "the cat"})
	require.NoError(t, err)
	before := card.UpdatedAt

	back := "the dog"
	updated, err := f.cards.UpdateCard(ctx, card.ID, UpdateCardInput{Back: &back})
	require.NoError(t, err)
	assert.Equal(t, "the dog", updated.Back)
	assert.Equal(t, "der Hund", updated.Front)
	assert.False(t, updated.UpdatedAt.Before(before))
	assert.Equal(t, 2, f.notifier.calls)

	empty := ""
	_, err = f.cards.UpdateCard(ctx, card.ID, UpdateCardInput{Front: &empty})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCardService_DeleteCard(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	card, err := f.cards.CreateCard(ctx, CreateCardInput{Front: "a", Back: "b"})
	require.NoError(t, err)

	require.NoError(t, f.cards.DeleteCard(ctx, card.ID))

	_, err = f.store.GetCard(ctx, card.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = f.store.GetReviewState(ctx, card.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCardService_ImportPack(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	pack := []PackCard{
		{PublicID: "p1", Front: "uno", Back: "one", Tags: []string{"spanish"}},
		{PublicID: "p2", Front: "dos", Back: "two", Tags: []string{"spanish"}},
	}

	result, err := f.cards.ImportPack(ctx, "pack-numbers", pack)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)

	// Importing again skips everything already present.
	result, err = f.cards.ImportPack(ctx, "pack-numbers", append(pack,
		PackCard{PublicID: "p3", Front: "tres", Back: "three"}))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Skipped)

	cards, err := f.cards.ListCards(ctx)
	require.NoError(t, err)
	assert.Len(t, cards, 3)
	for _, c := range cards {
		assert.Equal(t, domain.SourcePublicPack, c.Source)
		assert.Equal(t, "pack-numbers", c.SourcePackID)
	}
}

func TestReviewService_BuildDailySession_FillsBox1(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.cards.CreateCard(ctx, CreateCardInput{
			Front: "front", Back: "back",
		})
		require.NoError(t, err)
	}

	sess, err := f.reviews.BuildDailySession(ctx)
	require.NoError(t, err)
	assert.Len(t, sess.Cards, 5)
	assert.Len(t, sess.Promoted, 5)

	// Promotions were persisted, so a second build promotes nothing new.
	sess2, err := f.reviews.BuildDailySession(ctx)
	require.NoError(t, err)
	assert.Empty(t, sess2.Promoted)
	assert.Len(t, sess2.Cards, 5)
}

func TestReviewService_SubmitReview_Good(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	card, err := f.cards.CreateCard(ctx, CreateCardInput{Front: "a", Back: "b"})
	require.NoError(t, err)
	_, err = f.reviews.BuildDailySession(ctx)
	require.NoError(t, err)

	state, err := f.reviews.SubmitReview(ctx, card.ID, domain.ResultGood, false)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Box)
	assert.NotNil(t, state.LastReviewedAt)

	logs, err := f.store.ListReviewLogsForCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ResultGood, logs[0].Result)
	assert.Equal(t, 1, logs[0].PreviousBox)
	assert.Equal(t, 2, logs[0].NewBox)
	assert.NotEmpty(t, logs[0].ClientEventID)
	assert.NotEmpty(t, logs[0].DeviceID)
	assert.Nil(t, logs[0].SyncedAt)
}

func TestReviewService_SubmitReview_BadRelapses(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	card, err := f.cards.CreateCard(ctx, CreateCardInput{Front: "a", Back: "b"})
	require.NoError(t, err)

	// Park the card in box 3 directly.
	state, err := f.store.GetReviewState(ctx, card.ID)
	require.NoError(t, err)
	state.Box = 3
	state.DueDate = domain.Today()
	require.NoError(t, f.store.PutReviewState(ctx, state))

	next, err := f.reviews.SubmitReview(ctx, card.ID, domain.ResultBad, true)
	require.NoError(t, err)
	assert.Equal(t, domain.BoxActive, next.Box)

	logs, err := f.store.ListReviewLogsForCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 3, logs[0].PreviousBox)
	assert.True(t, logs[0].WasReversed)
}

func TestReviewService_SubmitReview_RejectsUnknownResult(t *testing.T) {
	f := setupFixture(t)

	_, err := f.reviews.SubmitReview(context.Background(), "card-x", domain.ReviewResult("meh"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestReviewService_CollectionStats(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	c1, err := f.cards.CreateCard(ctx, CreateCardInput{Front: "a", Back: "b"})
	require.NoError(t, err)
	c2, err := f.cards.CreateCard(ctx, CreateCardInput{Front: "c", Back: "d"})
	require.NoError(t, err)

	st1, err := f.store.GetReviewState(ctx, c1.ID)
	require.NoError(t, err)
	st1.Box = domain.BoxActive
	require.NoError(t, f.store.PutReviewState(ctx, st1))

	st2, err := f.store.GetReviewState(ctx, c2.ID)
	require.NoError(t, err)
	st2.IsLearned = true
	learnedAt := time.Now().AddDate(0, 0, -400)
	st2.LearnedAt = &learnedAt
	require.NoError(t, f.store.PutReviewState(ctx, st2))

	stats, err := f.reviews.CollectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCards)
	assert.Equal(t, 1, stats.Learned)
	assert.Equal(t, 1, stats.PerBox[domain.BoxActive])
	// Both the active card and the long-rested learned card are due.
	assert.Equal(t, 2, stats.DueToday)
}

func TestSettingsService_Update(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	settings, err := f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings().Box1TargetSize, settings.Box1TargetSize)

	settings.Box1TargetSize = 30
	updated, err := f.settings.Update(ctx, settings)
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.IsZero())

	reloaded, err := f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, reloaded.Box1TargetSize)
}

func TestSettingsService_Update_Invalid(t *testing.T) {
	f := setupFixture(t)

	settings := domain.DefaultSettings()
	settings.ReverseProbability = 1.5
	_, err := f.settings.Update(context.Background(), settings)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestSearchService_Search(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.cards.CreateCard(ctx, CreateCardInput{
		Front: "la maison", Back: "the house", Tags: []string{"french"},
	})
	require.NoError(t, err)
	_, err = f.cards.CreateCard(ctx, CreateCardInput{
		Front: "der Hund", Back: "the dog", Tags: []string{"german"},
	})
	require.NoError(t, err)

	result, err := f.searches.Search(ctx, search.Params{Query: "house"})
	require.NoError(t, err)
	require.EqualValues(t, 1, result.Total)
	assert.Equal(t, "la maison", result.Hits[0].Front)
}

func TestSearchService_RebuildIndex(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.cards.CreateCard(ctx, CreateCardInput{Front: "a", Back: "b"})
	require.NoError(t, err)
	_, err = f.cards.CreateCard(ctx, CreateCardInput{Front: "c", Back: "d"})
	require.NoError(t, err)

	n, err := f.searches.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := f.search.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
