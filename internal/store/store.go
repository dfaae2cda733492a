// Package store implements the durable local store for cards, review
// states, review logs and settings, backed by BadgerDB. It is the only
// component that touches disk on the client; the leitner and sync engines
// operate through it.
package store

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
)

// Key prefixes. Index keys live under "<prefix>idx:<name>:".
const (
	cardPrefix  = "card:"
	statePrefix = "state:"
	logPrefix   = "log:"

	settingsKey    = "settings"
	watermarkKey   = "sync:watermark"
	deviceIDKey    = "device:id"
	deleteQueueKey = "sync:deletequeue"
)

// Sentinel errors.
var (
	ErrCardNotFound     = errors.NotFound("card not found")
	ErrStateNotFound    = errors.NotFound("review state not found")
	ErrLogNotFound      = errors.NotFound("review log not found")
	ErrDuplicateCard    = errors.AlreadyExists("card already exists")
	ErrDuplicateEventID = errors.AlreadyExists("review log event already recorded")
)

// Store wraps a Badger database instance holding one device's data.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	cards  *entity[domain.Card]
	states *entity[domain.ReviewState]
	logs   *entity[domain.ReviewLog]
}

// Open opens (or creates) the store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil      // Badger's own logging is too chatty
	opts.SyncWrites = true // review history must survive a crash
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.cards = newEntity[domain.Card](db, cardPrefix).
		withIndex("cloud", func(c *domain.Card) string { return c.CloudID }).
		withIndex("source", func(c *domain.Card) string {
			if c.SourcePackID == "" || c.SourcePublicID == "" {
				return ""
			}
			return c.SourcePackID + "/" + c.SourcePublicID
		})
	s.states = newEntity[domain.ReviewState](db, statePrefix)
	s.logs = newEntity[domain.ReviewLog](db, logPrefix).
		withIndex("event", func(l *domain.ReviewLog) string { return l.ClientEventID }).
		withMultiIndex("card", func(l *domain.ReviewLog) string { return l.CardID })

	if logger != nil {
		logger.Info("local store opened", "path", path)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing local store")
	}
	return s.db.Close()
}

// update runs fn inside a read-write transaction. Multi-entity writes
// that must be atomic (cascade deletes, merge applications) go through
// here.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	return s.db.Update(fn)
}

// view runs fn inside a read-only transaction.
func (s *Store) view(fn func(txn *badger.Txn) error) error {
	return s.db.View(fn)
}
