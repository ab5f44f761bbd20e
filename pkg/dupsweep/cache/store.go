package cache

import (
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a cache entry doesn't exist.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger for digest cache operations.
// It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a store at the given directory. A store written
// with a different CacheVersion is emptied.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.checkVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) checkVersion() error {
	var stored uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				stored = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return err
	case stored == CacheVersion:
		return nil
	default:
		if err := s.db.DropAll(); err != nil {
			return err
		}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(versionKey, binary.BigEndian.AppendUint64(nil, CacheVersion))
	})
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves the entry cached for path under algorithm.
func (s *Store) Get(algorithm, path string) (*Entry, error) {
	key := MakeKey(algorithm, path)
	var entry Entry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(entry.Decode)
	})

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores an entry, replacing any previous one for the same key.
func (s *Store) Put(algorithm, path string, entry *Entry) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(algorithm, path), value)
	})
}

// Delete removes a cached entry.
func (s *Store) Delete(algorithm, path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(MakeKey(algorithm, path))
	})
}

// DeletePrefix removes every entry of an algorithm.
func (s *Store) DeletePrefix(algorithm string) error {
	return s.db.DropPrefix(MakeKeyPrefix(algorithm))
}

// DeleteAll removes every entry and rewrites the version marker.
func (s *Store) DeleteAll() error {
	if err := s.db.DropAll(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(versionKey, binary.BigEndian.AppendUint64(nil, CacheVersion))
	})
}

// PutBatch stores multiple entries in a single write batch.
func (s *Store) PutBatch(algorithm string, entries map[string]*Entry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for path, entry := range entries {
		value, err := entry.Encode()
		if err != nil {
			return err
		}
		if err := wb.Set(MakeKey(algorithm, path), value); err != nil {
			return err
		}
	}

	return wb.Flush()
}

// Count returns the number of entries per algorithm.
func (s *Store) Count() (map[string]int, error) {
	counts := make(map[string]int)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if string(key) == string(versionKey) {
				continue
			}
			algorithm, _ := ParseKey(key)
			counts[algorithm]++
		}
		return nil
	})

	return counts, err
}

// Size returns the on-disk size of the LSM tree and value log in bytes.
func (s *Store) Size() (lsm, vlog int64) {
	return s.db.Size()
}
