package store

import (
	"context"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
)

// GetReviewState retrieves the review state for a card. Review states are
// keyed by card id; every card has exactly one.
func (s *Store) GetReviewState(ctx context.Context, cardID string) (*domain.ReviewState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state, err := s.states.get(cardID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, ErrStateNotFound
	}
	return state, err
}

// PutReviewState upserts a review state.
func (s *Store) PutReviewState(ctx context.Context, state *domain.ReviewState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.states.put(state.CardID, state)
}

// PutReviewStates upserts a batch of review states in one transaction.
// Used when auto-fill promotes several cards at once.
func (s *Store) PutReviewStates(ctx context.Context, states []*domain.ReviewState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		for _, state := range states {
			if err := s.states.putTxn(txn, state.CardID, state); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListReviewStates returns every review state on this device.
func (s *Store) ListReviewStates(ctx context.Context) ([]*domain.ReviewState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.states.list()
}

// CreateReviewLog appends a review log. The client event id makes the
// append idempotent: replaying the same event is a no-op rather than a
// duplicate row.
func (s *Store) CreateReviewLog(ctx context.Context, log *domain.ReviewLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		if log.ClientEventID != "" {
			existing, err := s.logByEventIDTxn(txn, log.ClientEventID)
			if err != nil && !errors.Is(err, errors.ErrNotFound) {
				return err
			}
			if existing != nil {
				return ErrDuplicateEventID
			}
		}
		return s.logs.putTxn(txn, log.ID, log)
	})
}

// PutReviewLog upserts a review log without the duplicate-event check.
// Used when materializing remote history, where the event id is already
// the dedup key.
func (s *Store) PutReviewLog(ctx context.Context, log *domain.ReviewLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.logs.put(log.ID, log)
}

// GetReviewLogByEventID looks up a log by its client event id.
func (s *Store) GetReviewLogByEventID(ctx context.Context, eventID string) (*domain.ReviewLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var log *domain.ReviewLog
	err := s.view(func(txn *badger.Txn) error {
		var err error
		log, err = s.logByEventIDTxn(txn, eventID)
		return err
	})
	if errors.Is(err, errors.ErrNotFound) {
		return nil, ErrLogNotFound
	}
	return log, err
}

func (s *Store) logByEventIDTxn(txn *badger.Txn, eventID string) (*domain.ReviewLog, error) {
	id, err := s.logs.idByUniqueIndexTxn(txn, "event", eventID)
	if err != nil {
		return nil, err
	}
	return s.logs.getTxn(txn, id)
}

// ListReviewLogsForCard returns all logs for a card, oldest first.
func (s *Store) ListReviewLogsForCard(ctx context.Context, cardID string) ([]*domain.ReviewLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var logs []*domain.ReviewLog
	err := s.view(func(txn *badger.Txn) error {
		ids, err := s.logs.idsByMultiIndexTxn(txn, "card", cardID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			log, err := s.logs.getTxn(txn, id)
			if err != nil {
				return err
			}
			logs = append(logs, log)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortLogsByCreatedAt(logs)
	return logs, nil
}

// ListReviewLogs returns every review log on this device, oldest first.
func (s *Store) ListReviewLogs(ctx context.Context) ([]*domain.ReviewLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logs, err := s.logs.list()
	if err != nil {
		return nil, err
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})
	return logs, nil
}

// ListUnsyncedReviewLogs returns logs that have not yet been pushed,
// oldest first.
func (s *Store) ListUnsyncedReviewLogs(ctx context.Context) ([]*domain.ReviewLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := s.logs.list()
	if err != nil {
		return nil, err
	}
	var unsynced []*domain.ReviewLog
	for _, log := range all {
		if log.SyncedAt == nil {
			unsynced = append(unsynced, log)
		}
	}
	sortLogsByCreatedAt(unsynced)
	return unsynced, nil
}

// MarkReviewLogsSynced stamps the given logs as pushed.
func (s *Store) MarkReviewLogsSynced(ctx context.Context, ids []string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		for _, id := range ids {
			log, err := s.logs.getTxn(txn, id)
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			log.SyncedAt = &at
			if err := s.logs.putTxn(txn, id, log); err != nil {
				return err
			}
		}
		return nil
	})
}

func sortLogsByCreatedAt(logs []*domain.ReviewLog) {
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})
}
