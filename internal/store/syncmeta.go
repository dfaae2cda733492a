package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cardboxapp/cardbox/internal/errors"
	"github.com/cardboxapp/cardbox/internal/id"
)

// Watermark returns the time of the last fully successful sync, or the
// zero time when this device has never synced.
func (s *Store) Watermark(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	var watermark time.Time
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(watermarkKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return watermark.UnmarshalText(val)
		})
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("load sync watermark: %w", err)
	}
	return watermark, nil
}

// SetWatermark records the time of a fully successful sync. Callers must
// only advance it after push and pull both completed.
func (s *Store) SetWatermark(ctx context.Context, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := at.MarshalText()
	if err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(watermarkKey), data)
	})
}

// DeviceID returns this device's stable identifier, generating and
// persisting one on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var deviceID string
	err := s.update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(deviceIDKey))
		if err == nil {
			return item.Value(func(val []byte) error {
				deviceID = string(val)
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		deviceID = id.Device()
		return txn.Set([]byte(deviceIDKey), []byte(deviceID))
	})
	if err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	return deviceID, nil
}

// EnqueueRemoteDelete records a cloud id whose remote copy must be
// deleted on the next sync. The queue survives restarts so a deletion is
// never lost between the local delete and the next push.
func (s *Store) EnqueueRemoteDelete(ctx context.Context, cloudID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return s.enqueueRemoteDeleteTxn(txn, cloudID)
	})
}

// PendingRemoteDeletes returns the queued cloud ids awaiting remote
// deletion.
func (s *Store) PendingRemoteDeletes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var queue []string
	err := s.view(func(txn *badger.Txn) error {
		var err error
		queue, err = s.deleteQueueTxn(txn)
		return err
	})
	return queue, err
}

// ClearRemoteDeletes removes the given cloud ids from the delete queue
// after the remote confirmed their deletion.
func (s *Store) ClearRemoteDeletes(ctx context.Context, cloudIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(cloudIDs) == 0 {
		return nil
	}
	done := make(map[string]bool, len(cloudIDs))
	for _, cid := range cloudIDs {
		done[cid] = true
	}

	return s.update(func(txn *badger.Txn) error {
		queue, err := s.deleteQueueTxn(txn)
		if err != nil {
			return err
		}
		remaining := queue[:0]
		for _, cid := range queue {
			if !done[cid] {
				remaining = append(remaining, cid)
			}
		}
		return s.saveDeleteQueueTxn(txn, remaining)
	})
}

func (s *Store) enqueueRemoteDeleteTxn(txn *badger.Txn, cloudID string) error {
	queue, err := s.deleteQueueTxn(txn)
	if err != nil {
		return err
	}
	for _, cid := range queue {
		if cid == cloudID {
			return nil
		}
	}
	return s.saveDeleteQueueTxn(txn, append(queue, cloudID))
}

func (s *Store) deleteQueueTxn(txn *badger.Txn) ([]string, error) {
	item, err := txn.Get([]byte(deleteQueueKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var queue []string
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &queue)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal delete queue: %w", err)
	}
	return queue, nil
}

func (s *Store) saveDeleteQueueTxn(txn *badger.Txn, queue []string) error {
	if len(queue) == 0 {
		err := txn.Delete([]byte(deleteQueueKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	data, err := json.Marshal(queue)
	if err != nil {
		return err
	}
	return txn.Set([]byte(deleteQueueKey), data)
}
