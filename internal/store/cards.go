package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
)

// CreateCard stores a card together with its initial review state in one
// transaction. Card and state are born and die together.
func (s *Store) CreateCard(ctx context.Context, card *domain.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := s.cards.getTxn(txn, card.ID); err == nil {
			return ErrDuplicateCard
		} else if !errors.Is(err, errors.ErrNotFound) {
			return err
		}

		if err := s.cards.putTxn(txn, card.ID, card); err != nil {
			return err
		}
		state := domain.NewReviewState(card.ID)
		return s.states.putTxn(txn, card.ID, state)
	})
}

// GetCard retrieves a card by local id.
func (s *Store) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	card, err := s.cards.get(id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	return card, err
}

// GetCardByCloudID retrieves a card by its cross-device identifier.
func (s *Store) GetCardByCloudID(ctx context.Context, cloudID string) (*domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	card, err := s.cards.getByIndex("cloud", cloudID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	return card, err
}

// GetCardBySource retrieves a pack-imported card by its pack + public id,
// used to dedup repeated imports of the same pack.
func (s *Store) GetCardBySource(ctx context.Context, packID, publicID string) (*domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	card, err := s.cards.getByIndex("source", packID+"/"+publicID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	return card, err
}

// PutCard upserts a card. Used both for local edits and for applying
// remote-wins merge results.
func (s *Store) PutCard(ctx context.Context, card *domain.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.cards.put(card.ID, card)
}

// ListCards returns every card on this device.
func (s *Store) ListCards(ctx context.Context) ([]*domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.cards.list()
}

// DeleteCardCascade removes a card, its review state and all of its
// review logs in one transaction, and, when the card has been pushed,
// enqueues its cloud id for remote deletion. Deletion is never inferred
// by the sync engine; this is the only path that destroys data.
func (s *Store) DeleteCardCascade(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		card, err := s.cards.getTxn(txn, id)
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		logIDs, err := s.logs.idsByMultiIndexTxn(txn, "card", id)
		if err != nil {
			return fmt.Errorf("list logs for card %s: %w", id, err)
		}
		for _, logID := range logIDs {
			if err := s.logs.deleteTxn(txn, logID); err != nil {
				return err
			}
		}
		if err := s.states.deleteTxn(txn, id); err != nil {
			return err
		}
		if err := s.cards.deleteTxn(txn, id); err != nil {
			return err
		}

		if card.CloudID != "" {
			if err := s.enqueueRemoteDeleteTxn(txn, card.CloudID); err != nil {
				return err
			}
		}
		return nil
	})
}
