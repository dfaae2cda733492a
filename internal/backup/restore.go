package backup

import (
	"context"
	"fmt"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
	"github.com/cardboxapp/cardbox/internal/store"
)

// RestoreResult reports what a restore changed.
type RestoreResult struct {
	CardsRestored  int `json:"cards_restored"`
	CardsSkipped   int `json:"cards_skipped"`
	StatesRestored int `json:"states_restored"`
	LogsRestored   int `json:"logs_restored"`
	LogsSkipped    int `json:"logs_skipped"`
}

// Restore merges the archive at path into the local store. Archived
// records only replace local ones carrying an older updated_at, so
// restoring an old archive never rolls back newer edits. Review logs
// dedup on their client event id.
func (s *Service) Restore(ctx context.Context, path string) (*RestoreResult, error) {
	archive, err := readArchive(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}

	for _, card := range archive.Cards {
		restored, err := s.restoreCard(ctx, card)
		if err != nil {
			return nil, fmt.Errorf("restore card %s: %w", card.ID, err)
		}
		if restored {
			result.CardsRestored++
		} else {
			result.CardsSkipped++
		}
	}

	for _, state := range archive.States {
		restored, err := s.restoreState(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("restore state %s: %w", state.CardID, err)
		}
		if restored {
			result.StatesRestored++
		}
	}

	for _, log := range archive.Logs {
		err := s.store.CreateReviewLog(ctx, log)
		switch {
		case err == nil:
			result.LogsRestored++
		case errors.Is(err, store.ErrDuplicateEventID):
			result.LogsSkipped++
		default:
			return nil, fmt.Errorf("restore log %s: %w", log.ID, err)
		}
	}

	if archive.Settings != nil {
		if err := s.restoreSettings(ctx, archive.Settings); err != nil {
			return nil, fmt.Errorf("restore settings: %w", err)
		}
	}

	s.logger.Info("restore complete",
		"path", path,
		"cards_restored", result.CardsRestored,
		"cards_skipped", result.CardsSkipped,
		"logs_restored", result.LogsRestored,
	)
	return result, nil
}

func (s *Service) restoreCard(ctx context.Context, card *domain.Card) (bool, error) {
	existing, err := s.store.GetCard(ctx, card.ID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return false, err
	}
	if existing != nil && !card.UpdatedAt.After(existing.UpdatedAt) {
		return false, nil
	}
	return true, s.store.PutCard(ctx, card)
}

func (s *Service) restoreState(ctx context.Context, state *domain.ReviewState) (bool, error) {
	existing, err := s.store.GetReviewState(ctx, state.CardID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return false, err
	}
	if existing != nil && !state.UpdatedAt.After(existing.UpdatedAt) {
		return false, nil
	}
	return true, s.store.PutReviewState(ctx, state)
}

func (s *Service) restoreSettings(ctx context.Context, settings *domain.Settings) error {
	existing, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if existing != nil && !settings.UpdatedAt.After(existing.UpdatedAt) {
		return nil
	}
	return s.store.PutSettings(ctx, settings)
}
