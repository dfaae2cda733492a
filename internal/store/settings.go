package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
)

// GetSettings loads the study settings, falling back to defaults when none
// have been saved yet or when the stored blob fails to parse. Settings are
// never a reason to refuse to study.
func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var settings *domain.Settings
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(settingsKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var parsed domain.Settings
			if err := json.Unmarshal(val, &parsed); err != nil {
				if s.logger != nil {
					s.logger.Warn("stored settings unreadable, using defaults", "error", err)
				}
				return nil
			}
			settings = &parsed
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if settings == nil {
		settings = domain.DefaultSettings()
	}
	return settings, nil
}

// SaveSettings persists the study settings with an updated timestamp so
// the sync engine can merge them last-write-wins.
func (s *Store) SaveSettings(ctx context.Context, settings *domain.Settings, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	settings.UpdatedAt = now

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(settingsKey), data)
	})
}

// PutSettings persists settings as-is, preserving their timestamp. Used
// when a remote-wins merge applies the remote copy.
func (s *Store) PutSettings(ctx context.Context, settings *domain.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(settingsKey), data)
	})
}
