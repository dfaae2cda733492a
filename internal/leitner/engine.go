// Package leitner implements the box-scheduling algorithm: which cards
// enter the daily rotation, and how a review outcome moves a card between
// boxes. Everything here is pure; callers persist the results.
package leitner

import (
	"math/rand/v2"
	"time"

	"github.com/cardboxapp/cardbox/internal/domain"
)

// RNG is an injected source of randomness returning floats in [0,1).
// Injected rather than global so box fills and shuffles are deterministic
// under test.
type RNG func() float64

// DefaultRNG is the production randomness source.
var DefaultRNG RNG = rand.Float64

// LearnedDue reports whether a learned card's rest interval has elapsed
// and it should resurface for a confirmation review.
func LearnedDue(state *domain.ReviewState, today domain.Date, settings *domain.Settings) bool {
	if !state.IsLearned || state.LearnedAt == nil {
		return false
	}
	resurface := domain.DateOf(*state.LearnedAt).AddDays(settings.LearnedReviewIntervalDays)
	return resurface.OnOrBefore(today)
}

// Shuffle permutes items in place with a Fisher–Yates pass driven by rng.
func Shuffle[T any](items []T, rng RNG) {
	for i := len(items) - 1; i > 0; i-- {
		j := int(rng() * float64(i+1))
		if j > i {
			j = i
		}
		items[i], items[j] = items[j], items[i]
	}
}

// AutoFillBox1 tops up the active rotation (box 1) to target from the
// inactive pool (box 0). Candidates are chosen at random without
// replacement; ties are broken by the shuffle alone, never by creation
// order. If the pool is smaller than the deficit, everything in it is
// promoted; a partial fill is not an error.
//
// Promoted states are mutated in place (box 1, due today, not learned)
// and returned so the caller can persist exactly the changed rows.
// Calling again the same day with no new cards promotes nothing.
func AutoFillBox1(states []*domain.ReviewState, today domain.Date, target int, rng RNG) []*domain.ReviewState {
	active := 0
	var pool []*domain.ReviewState
	for _, st := range states {
		switch st.Box {
		case domain.BoxActive:
			active++
		case domain.BoxInactive:
			pool = append(pool, st)
		}
	}

	missing := target - active
	if missing <= 0 || len(pool) == 0 {
		return nil
	}
	if missing > len(pool) {
		missing = len(pool)
	}

	Shuffle(pool, rng)

	promoted := pool[:missing]
	now := time.Now()
	for _, st := range promoted {
		st.Box = domain.BoxActive
		st.DueDate = today
		st.IsLearned = false
		st.LearnedAt = nil
		st.UpdatedAt = now
	}
	return promoted
}

// ReviewContext carries the per-presentation facts a transition needs but
// cannot compute itself: the clock, whether the card was shown reversed,
// and the identifiers the resulting log must carry for idempotent sync.
type ReviewContext struct {
	Now           time.Time
	WasReversed   bool
	LogID         string
	ClientEventID string
	DeviceID      string
}

// ApplyReviewResult advances a card's review state for one answer and
// emits the matching log entry. The input state is not modified; the
// caller persists both returned values.
//
// Transitions:
//
//	good, box < max        → next box, due after that box's interval
//	good, box == max       → learned, no due date
//	good, already learned  → re-confirmed learned
//	bad, any               → back to box 1, due tomorrow
func ApplyReviewResult(state *domain.ReviewState, result domain.ReviewResult, today domain.Date, settings *domain.Settings, rc ReviewContext) (*domain.ReviewState, *domain.ReviewLog) {
	next := *state
	next.LastReviewedAt = &rc.Now
	next.UpdatedAt = rc.Now

	switch {
	case result == domain.ResultBad:
		next.Box = domain.BoxActive
		next.DueDate = today.AddDays(1)
		next.IsLearned = false
		next.LearnedAt = nil

	case state.IsLearned:
		// Re-confirmed: box unchanged, stays out of the schedule.
		next.DueDate = ""
		next.LearnedAt = &rc.Now

	case state.Box >= domain.MaxBox:
		next.Box = domain.MaxBox
		next.DueDate = ""
		next.IsLearned = true
		next.LearnedAt = &rc.Now

	default:
		next.Box = state.Box + 1
		next.DueDate = today.AddDays(settings.IntervalForBox(next.Box))
	}

	log := &domain.ReviewLog{
		ID:               rc.LogID,
		CardID:           state.CardID,
		ClientEventID:    rc.ClientEventID,
		DeviceID:         rc.DeviceID,
		Result:           result,
		PreviousBox:      state.Box,
		NewBox:           next.Box,
		WasLearnedBefore: state.IsLearned,
		WasReversed:      rc.WasReversed,
		CreatedAt:        rc.Now,
	}
	return &next, log
}
