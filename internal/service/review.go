package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
	"github.com/cardboxapp/cardbox/internal/id"
	"github.com/cardboxapp/cardbox/internal/leitner"
	"github.com/cardboxapp/cardbox/internal/session"
	"github.com/cardboxapp/cardbox/internal/store"
)

// ReviewService builds daily sessions and records answers.
type ReviewService struct {
	store    *store.Store
	notifier SyncNotifier
	logger   *slog.Logger
	rng      leitner.RNG
	now      func() time.Time
}

// NewReviewService creates a new review service. rng may be nil, in which
// case the default source is used.
func NewReviewService(st *store.Store, notifier SyncNotifier, logger *slog.Logger, rng leitner.RNG) *ReviewService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if rng == nil {
		rng = leitner.DefaultRNG
	}
	return &ReviewService{
		store:    st,
		notifier: notifier,
		logger:   logger,
		rng:      rng,
		now:      time.Now,
	}
}

// SetNotifier swaps the sync notifier, e.g. after sign-in.
func (s *ReviewService) SetNotifier(notifier SyncNotifier) {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	s.notifier = notifier
}

// BuildDailySession assembles today's review queue. The box-1 fill may
// promote cards out of the inactive pool; those promotions are persisted
// before the session is returned so a crash mid-session cannot lose them.
func (s *ReviewService) BuildDailySession(ctx context.Context) (*session.Session, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	states, err := s.store.ListReviewStates(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	today := domain.DateOf(s.now())
	sess := session.Build(cards, states, today, settings, s.rng)

	if len(sess.Promoted) > 0 {
		if err := s.store.PutReviewStates(ctx, sess.Promoted); err != nil {
			return nil, err
		}
		s.logger.Info("promoted cards into active rotation", "count", len(sess.Promoted))
		s.notifier.RequestSync(ctx)
	}

	s.logger.Debug("built daily session",
		"cards", len(sess.Cards),
		"box1", len(sess.Box1),
		"due", len(sess.Due))
	return sess, nil
}

// SubmitReview records one answer: the card's state advances per the
// box rules and a review log entry is written for the sync history.
func (s *ReviewService) SubmitReview(ctx context.Context, cardID string, result domain.ReviewResult, wasReversed bool) (*domain.ReviewState, error) {
	if result != domain.ResultGood && result != domain.ResultBad {
		return nil, errors.Validation("result must be good or bad")
	}

	state, err := s.store.GetReviewState(ctx, cardID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	deviceID, err := s.store.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next, log := leitner.ApplyReviewResult(state, result, domain.DateOf(now), settings, leitner.ReviewContext{
		Now:           now,
		WasReversed:   wasReversed,
		LogID:         id.ReviewLog(),
		ClientEventID: id.Event(),
		DeviceID:      deviceID,
	})

	if err := s.store.PutReviewState(ctx, next); err != nil {
		return nil, err
	}
	if err := s.store.CreateReviewLog(ctx, log); err != nil {
		return nil, err
	}

	s.logger.Debug("recorded review",
		"card_id", cardID,
		"result", result,
		"box", next.Box,
		"learned", next.IsLearned)
	s.notifier.RequestSync(ctx)
	return next, nil
}

// Stats summarizes the collection's review progress.
type Stats struct {
	TotalCards int         `json:"total_cards"`
	Learned    int         `json:"learned"`
	PerBox     map[int]int `json:"per_box"`
	DueToday   int         `json:"due_today"`
}

// CollectionStats counts cards per box and how many are due today.
func (s *ReviewService) CollectionStats(ctx context.Context) (*Stats, error) {
	states, err := s.store.ListReviewStates(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	today := domain.DateOf(s.now())
	stats := &Stats{PerBox: make(map[int]int)}
	for _, st := range states {
		stats.TotalCards++
		if st.IsLearned {
			stats.Learned++
			if leitner.LearnedDue(st, today, settings) {
				stats.DueToday++
			}
			continue
		}
		stats.PerBox[st.Box]++
		switch {
		case st.Box == domain.BoxActive:
			stats.DueToday++
		case st.Box > domain.BoxActive && st.DueDate.OnOrBefore(today):
			stats.DueToday++
		}
	}
	return stats, nil
}
