package domain

import "time"

// Settings holds the per-user Leitner configuration. A single record
// exists per user/device; UpdatedAt drives last-write-wins merging
// during sync.
type Settings struct {
	// Box1TargetSize is the daily target for the active rotation.
	Box1TargetSize int `json:"box1_target_size" validate:"gte=1,lte=500"`

	// BoxIntervalDays maps boxes 2..MaxBox-1 to their review interval.
	// Promotion into box N schedules the card BoxIntervalDays[N] days out.
	BoxIntervalDays map[int]int `json:"box_interval_days"`

	// LearnedReviewIntervalDays is how long a learned card rests before it
	// resurfaces in the session.
	LearnedReviewIntervalDays int `json:"learned_review_interval_days" validate:"gte=1,lte=3650"`

	// ReverseProbability is the chance (0..1) that a presentation swaps
	// front and back.
	ReverseProbability float64 `json:"reverse_probability" validate:"gte=0,lte=1"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSettings returns the configuration used until the user changes
// anything, and the fallback when persisted settings fail to parse.
func DefaultSettings() *Settings {
	return &Settings{
		Box1TargetSize: 20,
		BoxIntervalDays: map[int]int{
			2: 3,
			3: 7,
			4: 14,
			5: 30,
		},
		LearnedReviewIntervalDays: 60,
		ReverseProbability:        0.25,
	}
}

// IntervalForBox returns the review interval for a box, falling back to
// the default table when the user's mapping is missing an entry.
func (s *Settings) IntervalForBox(box int) int {
	if d, ok := s.BoxIntervalDays[box]; ok && d > 0 {
		return d
	}
	if d, ok := DefaultSettings().BoxIntervalDays[box]; ok {
		return d
	}
	return 1
}
