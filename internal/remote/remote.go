// Package remote defines the wire contract between a device and the
// sync backend, plus the HTTP client implementing it. Everything on the
// wire is keyed by cloud id; local ids never leave the device.
package remote

import (
	"context"
	"time"
)

// Card is the wire form of a card.
type Card struct {
	CloudID        string    `json:"cloud_id"`
	Front          string    `json:"front"`
	Back           string    `json:"back"`
	Hint           string    `json:"hint,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Source         string    `json:"source"`
	SourcePackID   string    `json:"source_pack_id,omitempty"`
	SourcePublicID string    `json:"source_public_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Progress is the wire form of a card's review state.
type Progress struct {
	CardCloudID    string     `json:"card_cloud_id"`
	Box            int        `json:"box"`
	DueDate        string     `json:"due_date,omitempty"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	IsLearned      bool       `json:"is_learned"`
	LearnedAt      *time.Time `json:"learned_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ReviewLog is the wire form of one review event. Only the outcome and
// timestamp survive the trip; box positions are device-local detail.
type ReviewLog struct {
	ClientEventID string    `json:"client_event_id"`
	DeviceID      string    `json:"device_id"`
	CardCloudID   string    `json:"card_cloud_id"`
	Result        string    `json:"result"`
	WasReversed   bool      `json:"was_reversed"`
	CreatedAt     time.Time `json:"created_at"`
}

// Settings is the wire form of the per-user study settings.
type Settings struct {
	Box1TargetSize            int         `json:"box1_target_size"`
	BoxIntervalDays           map[int]int `json:"box_interval_days"`
	LearnedReviewIntervalDays int         `json:"learned_review_interval_days"`
	ReverseProbability        float64     `json:"reverse_probability"`
	UpdatedAt                 time.Time   `json:"updated_at"`
}

// Snapshot is a full read of one user's remote state.
type Snapshot struct {
	Cards    []Card      `json:"cards"`
	Progress []Progress  `json:"progress"`
	Logs     []ReviewLog `json:"review_logs"`
	Settings *Settings   `json:"settings,omitempty"`
}

// Empty reports whether the remote holds nothing for this user.
func (s *Snapshot) Empty() bool {
	return len(s.Cards) == 0 && len(s.Progress) == 0 && len(s.Logs) == 0 && s.Settings == nil
}

// Store is the backend contract the sync engine reconciles against.
// All operations act on the authenticated user's data; upserts are
// idempotent via their cloud-id / client-event-id conflict keys.
type Store interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
	UpsertCards(ctx context.Context, cards []Card) error
	UpsertProgress(ctx context.Context, progress []Progress) error
	UpsertSettings(ctx context.Context, settings *Settings) error
	InsertReviewLogs(ctx context.Context, logs []ReviewLog) error
	DeleteCards(ctx context.Context, cloudIDs []string) error
}
