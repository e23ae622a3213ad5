// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrExists   = errors.New("entity already exists")
)

// maxTxnRetries bounds optimistic-transaction retries on write conflicts.
const maxTxnRetries = 10

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// BadgerStore provides generic storage operations
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), fmt.Sprintf("%s:", s.prefix))
}

// update runs fn inside a read-write transaction, retrying when the
// optimistic commit loses a race. Concurrent writers touching the same
// key serialize through this: the loser re-reads and re-applies.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = s.db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
	return fmt.Errorf("transaction conflict persisted after %d retries: %w", maxTxnRetries, err)
}

func (s *BadgerStore) Create(entity Entity) error {
	if entity.GetID() == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	return s.update(func(txn *badger.Txn) error {
		// Check if key already exists
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrExists, entity.GetID())
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		return txn.Set(key, data)
	})
}

// GetOrCreate stores entity unless a row with its ID already exists, in
// which case the stored row is unmarshaled back into entity. The check
// and the write share one transaction, so two concurrent callers with
// the same ID converge on a single row: the loser of the commit race
// retries, finds the winner's row, and returns it.
func (s *BadgerStore) GetOrCreate(entity Entity) (created bool, err error) {
	if entity.GetID() == "" {
		return false, fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return false, fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	err = s.update(func(txn *badger.Txn) error {
		created = false
		item, err := txn.Get(key)
		if err == nil {
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, entity)
			})
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		created = true
		return txn.Set(key, data)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *BadgerStore) Get(id string, entity Entity) error {
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, entity)
		})
	})

	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func (s *BadgerStore) Update(entity Entity) error {
	if entity.GetID() == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	return s.update(func(txn *badger.Txn) error {
		// Check if exists
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, entity.GetID())
		} else if err != nil {
			return err
		}

		return txn.Set(key, data)
	})
}

// Mutate loads the row for id into entity, applies fn to it, and writes
// the result back, all in one retried transaction. This is the
// read-modify-write primitive for rows hit by concurrent writers, such
// as a repository's live file set.
func (s *BadgerStore) Mutate(id string, entity Entity, fn func() error) error {
	key := s.makeKey(id)
	return s.update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}

		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, entity)
		}); err != nil {
			return err
		}

		if err := fn(); err != nil {
			return err
		}

		data, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("marshaling entity: %w", err)
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) Delete(id string) error {
	key := s.makeKey(id)

	return s.update(func(txn *badger.Txn) error {
		// Check if exists
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// Keys returns the IDs of every row under this store's prefix, without
// reading values.
func (s *BadgerStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, s.stripPrefix(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

func (s *BadgerStore) List(results interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		var values []json.RawMessage

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				values = append(values, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}

		// Marshal collected values into final result
		data, err := json.Marshal(values)
		if err != nil {
			return err
		}

		return json.Unmarshal(data, results)
	})

	if err != nil {
		return fmt.Errorf("listing entities: %w", err)
	}
	return nil
}
