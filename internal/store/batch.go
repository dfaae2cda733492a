package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/cardboxapp/cardbox/internal/domain"
)

// BatchWriter provides efficient bulk write operations using BadgerDB's
// WriteBatch. The initial pull after sign-in materializes a whole account
// through here instead of one transaction per record.
type BatchWriter struct {
	store     *Store
	batch     *badger.WriteBatch
	maxSize   int
	count     int
	autoFlush bool
}

// NewBatchWriter creates a new batch writer that will auto-flush when maxSize is reached
func (s *Store) NewBatchWriter(maxSize int) *BatchWriter {
	return &BatchWriter{
		store:     s,
		batch:     s.db.NewWriteBatch(),
		maxSize:   maxSize,
		autoFlush: true,
	}
}

// PutCard adds a card plus its index keys to the batch.
func (b *BatchWriter) PutCard(card *domain.Card) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	if err := b.batch.Set([]byte(cardPrefix+card.ID), data); err != nil {
		return fmt.Errorf("batch set card: %w", err)
	}

	if card.CloudID != "" {
		key := b.store.cards.uniqueIndexKey("cloud", card.CloudID)
		if err := b.batch.Set(key, []byte(card.ID)); err != nil {
			return fmt.Errorf("batch set cloud index: %w", err)
		}
	}
	if card.SourcePackID != "" && card.SourcePublicID != "" {
		key := b.store.cards.uniqueIndexKey("source", card.SourcePackID+"/"+card.SourcePublicID)
		if err := b.batch.Set(key, []byte(card.ID)); err != nil {
			return fmt.Errorf("batch set source index: %w", err)
		}
	}
	return b.bump()
}

// PutReviewState adds a review state to the batch.
func (b *BatchWriter) PutReviewState(state *domain.ReviewState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal review state: %w", err)
	}
	if err := b.batch.Set([]byte(statePrefix+state.CardID), data); err != nil {
		return fmt.Errorf("batch set review state: %w", err)
	}
	return b.bump()
}

// PutReviewLog adds a review log plus its index keys to the batch.
func (b *BatchWriter) PutReviewLog(log *domain.ReviewLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal review log: %w", err)
	}
	if err := b.batch.Set([]byte(logPrefix+log.ID), data); err != nil {
		return fmt.Errorf("batch set review log: %w", err)
	}

	if log.ClientEventID != "" {
		key := b.store.logs.uniqueIndexKey("event", log.ClientEventID)
		if err := b.batch.Set(key, []byte(log.ID)); err != nil {
			return fmt.Errorf("batch set event index: %w", err)
		}
	}
	key := b.store.logs.multiIndexKey("card", log.CardID, log.ID)
	if err := b.batch.Set(key, []byte(log.ID)); err != nil {
		return fmt.Errorf("batch set card index: %w", err)
	}
	return b.bump()
}

func (b *BatchWriter) bump() error {
	b.count++
	if b.autoFlush && b.count >= b.maxSize {
		if err := b.Flush(); err != nil {
			return fmt.Errorf("auto flush: %w", err)
		}
	}
	return nil
}

// Flush commits all pending writes in the batch
func (b *BatchWriter) Flush() error {
	if b.count == 0 {
		return nil // Nothing to flush
	}

	if err := b.batch.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}

	if b.store.logger != nil {
		b.store.logger.LogAttrs(context.Background(), slog.LevelInfo, "batch flushed",
			slog.Int("count", b.count),
		)
	}

	b.count = 0
	b.batch = b.store.db.NewWriteBatch()

	return nil
}

// Cancel discards all pending writes in the batch
func (b *BatchWriter) Cancel() {
	b.batch.Cancel()
	b.count = 0
}

// Count returns the number of operations in the current batch
func (b *BatchWriter) Count() int {
	return b.count
}
