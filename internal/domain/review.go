package domain

import "time"

// Box numbers. Box 0 is the inactive pool, box 1 the active daily
// rotation, boxes 2..MaxBox the spaced-interval rotation. A good answer
// at MaxBox marks the card learned.
const (
	BoxInactive = 0
	BoxActive   = 1
	MaxBox      = 5
)

// ReviewResult is the user's verdict on a presented card.
type ReviewResult string

const (
	ResultGood ReviewResult = "good"
	ResultBad  ReviewResult = "bad"
)

// ReviewState tracks a card's position in the Leitner schedule.
// Exactly one exists per card, keyed by the card's local ID.
//
// Invariant: IsLearned implies DueDate is unset; LearnedAt is set only
// while IsLearned is true.
type ReviewState struct {
	CardID         string     `json:"card_id"`
	Box            int        `json:"box"`
	DueDate        Date       `json:"due_date,omitempty"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	IsLearned      bool       `json:"is_learned"`
	LearnedAt      *time.Time `json:"learned_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewReviewState returns the initial state for a freshly created card:
// inactive pool, no due date, not learned.
func NewReviewState(cardID string) *ReviewState {
	return &ReviewState{
		CardID:    cardID,
		Box:       BoxInactive,
		UpdatedAt: time.Now(),
	}
}

// ReviewLog is the immutable record of a single review action.
// Logs are append-only; they are never mutated and only removed by
// cascade when their card is deleted.
type ReviewLog struct {
	ID     string `json:"id"`
	CardID string `json:"card_id"`

	// ClientEventID + user is unique remotely; remote inserts are
	// idempotent on this key so retried syncs stay at-most-once.
	ClientEventID string `json:"client_event_id"`
	DeviceID      string `json:"device_id"`

	Result           ReviewResult `json:"result"`
	PreviousBox      int          `json:"previous_box"`
	NewBox           int          `json:"new_box"`
	WasLearnedBefore bool         `json:"was_learned_before"`
	WasReversed      bool         `json:"was_reversed"`

	CreatedAt time.Time `json:"created_at"`
	// SyncedAt is set once the log has been inserted remotely.
	SyncedAt *time.Time `json:"synced_at,omitempty"`
}
