package store

import (
	"encoding/json/v2"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/cardboxapp/cardbox/internal/errors"
)

// entity provides prefix-keyed CRUD for one record type, with optional
// secondary indexes. Unique indexes map one value to one record id
// ("card:idx:cloud:<cloudID>" → id); multi indexes append the record id
// to the key ("log:idx:card:<cardID>:<logID>" → id) so many records can
// share a value.
type entity[T any] struct {
	db     *badger.DB
	prefix string
	unique []index[T]
	multi  []index[T]
}

type index[T any] struct {
	name  string
	keyFn func(*T) string // empty string means "not indexed"
}

func newEntity[T any](db *badger.DB, prefix string) *entity[T] {
	return &entity[T]{db: db, prefix: prefix}
}

func (e *entity[T]) withIndex(name string, keyFn func(*T) string) *entity[T] {
	e.unique = append(e.unique, index[T]{name: name, keyFn: keyFn})
	return e
}

func (e *entity[T]) withMultiIndex(name string, keyFn func(*T) string) *entity[T] {
	e.multi = append(e.multi, index[T]{name: name, keyFn: keyFn})
	return e
}

func (e *entity[T]) key(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *entity[T]) uniqueIndexKey(name, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value)
}

func (e *entity[T]) multiIndexKey(name, value, id string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value + ":" + id)
}

// getTxn loads a record inside an existing transaction.
func (e *entity[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(e.key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s%s: %w", e.prefix, id, err)
	}
	var rec T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal %s%s: %w", e.prefix, id, err)
	}
	return &rec, nil
}

// putTxn upserts a record inside an existing transaction, maintaining
// index keys. Old index entries are removed when their value changed.
func (e *entity[T]) putTxn(txn *badger.Txn, id string, rec *T) error {
	old, err := e.getTxn(txn, id)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s%s: %w", e.prefix, id, err)
	}
	if err := txn.Set(e.key(id), data); err != nil {
		return fmt.Errorf("set %s%s: %w", e.prefix, id, err)
	}

	for _, idx := range e.unique {
		newVal := idx.keyFn(rec)
		if old != nil {
			if oldVal := idx.keyFn(old); oldVal != "" && oldVal != newVal {
				if err := txn.Delete(e.uniqueIndexKey(idx.name, oldVal)); err != nil {
					return fmt.Errorf("delete stale %s index: %w", idx.name, err)
				}
			}
		}
		if newVal != "" {
			if err := txn.Set(e.uniqueIndexKey(idx.name, newVal), []byte(id)); err != nil {
				return fmt.Errorf("set %s index: %w", idx.name, err)
			}
		}
	}

	for _, idx := range e.multi {
		newVal := idx.keyFn(rec)
		if old != nil {
			if oldVal := idx.keyFn(old); oldVal != "" && oldVal != newVal {
				if err := txn.Delete(e.multiIndexKey(idx.name, oldVal, id)); err != nil {
					return fmt.Errorf("delete stale %s index: %w", idx.name, err)
				}
			}
		}
		if newVal != "" {
			if err := txn.Set(e.multiIndexKey(idx.name, newVal, id), []byte(id)); err != nil {
				return fmt.Errorf("set %s index: %w", idx.name, err)
			}
		}
	}

	return nil
}

// deleteTxn removes a record and its index keys. Idempotent.
func (e *entity[T]) deleteTxn(txn *badger.Txn, id string) error {
	rec, err := e.getTxn(txn, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, idx := range e.unique {
		if val := idx.keyFn(rec); val != "" {
			if err := txn.Delete(e.uniqueIndexKey(idx.name, val)); err != nil {
				return fmt.Errorf("delete %s index: %w", idx.name, err)
			}
		}
	}
	for _, idx := range e.multi {
		if val := idx.keyFn(rec); val != "" {
			if err := txn.Delete(e.multiIndexKey(idx.name, val, id)); err != nil {
				return fmt.Errorf("delete %s index: %w", idx.name, err)
			}
		}
	}
	if err := txn.Delete(e.key(id)); err != nil {
		return fmt.Errorf("delete %s%s: %w", e.prefix, id, err)
	}
	return nil
}

// get loads a record by id in its own transaction.
func (e *entity[T]) get(id string) (*T, error) {
	var rec *T
	err := e.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = e.getTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// idByUniqueIndexTxn resolves a unique index value to a record id.
func (e *entity[T]) idByUniqueIndexTxn(txn *badger.Txn, name, value string) (string, error) {
	item, err := txn.Get(e.uniqueIndexKey(name, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", errors.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	var id string
	if err := item.Value(func(val []byte) error {
		id = string(val)
		return nil
	}); err != nil {
		return "", err
	}
	return id, nil
}

// getByIndex resolves a unique index value to its record.
func (e *entity[T]) getByIndex(name, value string) (*T, error) {
	var rec *T
	err := e.db.View(func(txn *badger.Txn) error {
		id, err := e.idByUniqueIndexTxn(txn, name, value)
		if err != nil {
			return err
		}
		rec, err = e.getTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// put upserts a record in its own transaction.
func (e *entity[T]) put(id string, rec *T) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return e.putTxn(txn, id, rec)
	})
}

// list returns all records under the entity prefix, skipping index keys.
func (e *entity[T]) list() ([]*T, error) {
	var out []*T
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(e.prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(e.prefix)); it.ValidForPrefix([]byte(e.prefix)); it.Next() {
			key := string(it.Item().Key())
			if strings.HasPrefix(key[len(e.prefix):], "idx:") {
				continue
			}
			var rec T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("unmarshal %s: %w", key, err)
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// idsByMultiIndexTxn collects record ids sharing a multi-index value.
func (e *entity[T]) idsByMultiIndexTxn(txn *badger.Txn, name, value string) ([]string, error) {
	prefix := []byte(e.prefix + "idx:" + name + ":" + value + ":")

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := string(it.Item().Key())
		ids = append(ids, key[len(prefix):])
	}
	return ids, nil
}
