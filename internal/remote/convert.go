package remote

import (
	"time"

	"github.com/cardboxapp/cardbox/internal/domain"
)

// CardToWire converts a local card to its wire form. The card must
// already carry a cloud id.
func CardToWire(c *domain.Card) Card {
	return Card{
		CloudID:        c.CloudID,
		Front:          c.Front,
		Back:           c.Back,
		Hint:           c.Hint,
		Tags:           c.Tags,
		Source:         string(c.Source),
		SourcePackID:   c.SourcePackID,
		SourcePublicID: c.SourcePublicID,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// CardFromWire materializes a remote card locally under the given local
// id. The cloud id travels with it.
func CardFromWire(w Card, localID string) *domain.Card {
	return &domain.Card{
		Syncable: domain.Syncable{
			ID:        localID,
			CreatedAt: w.CreatedAt,
			UpdatedAt: w.UpdatedAt,
		},
		CloudID:        w.CloudID,
		Front:          w.Front,
		Back:           w.Back,
		Hint:           w.Hint,
		Tags:           domain.NormalizeTags(w.Tags),
		Source:         domain.CardSource(w.Source),
		SourcePackID:   w.SourcePackID,
		SourcePublicID: w.SourcePublicID,
	}
}

// ApplyCard overwrites a local card's content with the remote copy,
// keeping local identity fields intact.
func ApplyCard(c *domain.Card, w Card) {
	c.Front = w.Front
	c.Back = w.Back
	c.Hint = w.Hint
	c.Tags = domain.NormalizeTags(w.Tags)
	c.Source = domain.CardSource(w.Source)
	c.SourcePackID = w.SourcePackID
	c.SourcePublicID = w.SourcePublicID
	c.UpdatedAt = w.UpdatedAt
}

// ProgressToWire converts a review state to its wire form.
func ProgressToWire(s *domain.ReviewState, cloudID string) Progress {
	return Progress{
		CardCloudID:    cloudID,
		Box:            s.Box,
		DueDate:        string(s.DueDate),
		LastReviewedAt: s.LastReviewedAt,
		IsLearned:      s.IsLearned,
		LearnedAt:      s.LearnedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// ApplyProgress overwrites a local review state with the remote copy.
func ApplyProgress(s *domain.ReviewState, w Progress) {
	s.Box = w.Box
	s.DueDate = domain.Date(w.DueDate)
	s.LastReviewedAt = w.LastReviewedAt
	s.IsLearned = w.IsLearned
	s.LearnedAt = w.LearnedAt
	s.UpdatedAt = w.UpdatedAt
}

// LogToWire converts a review log to its wire form.
func LogToWire(l *domain.ReviewLog, cloudID string) ReviewLog {
	return ReviewLog{
		ClientEventID: l.ClientEventID,
		DeviceID:      l.DeviceID,
		CardCloudID:   cloudID,
		Result:        string(l.Result),
		WasReversed:   l.WasReversed,
		CreatedAt:     l.CreatedAt,
	}
}

// LogFromWire materializes a remote-only log locally. Box positions are
// device-local and not carried on the wire, so they stay zeroed; only
// the outcome and timestamp survive a merge across devices.
func LogFromWire(w ReviewLog, localID, localCardID string, syncedAt time.Time) *domain.ReviewLog {
	return &domain.ReviewLog{
		ID:            localID,
		CardID:        localCardID,
		ClientEventID: w.ClientEventID,
		DeviceID:      w.DeviceID,
		Result:        domain.ReviewResult(w.Result),
		WasReversed:   w.WasReversed,
		CreatedAt:     w.CreatedAt,
		SyncedAt:      &syncedAt,
	}
}

// SettingsToWire converts study settings to their wire form.
func SettingsToWire(s *domain.Settings) *Settings {
	return &Settings{
		Box1TargetSize:            s.Box1TargetSize,
		BoxIntervalDays:           s.BoxIntervalDays,
		LearnedReviewIntervalDays: s.LearnedReviewIntervalDays,
		ReverseProbability:        s.ReverseProbability,
		UpdatedAt:                 s.UpdatedAt,
	}
}

// SettingsFromWire converts remote settings to the domain form.
func SettingsFromWire(w *Settings) *domain.Settings {
	return &domain.Settings{
		Box1TargetSize:            w.Box1TargetSize,
		BoxIntervalDays:           w.BoxIntervalDays,
		LearnedReviewIntervalDays: w.LearnedReviewIntervalDays,
		ReverseProbability:        w.ReverseProbability,
		UpdatedAt:                 w.UpdatedAt,
	}
}
