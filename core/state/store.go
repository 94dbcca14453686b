package state

import (
	"errors"
	"sync"

	"mintgate/storage"
)

// Store adapts a storage.Database to the KV surface used by the manager and
// exposes the atomic batch flush that staged overlays commit through.
type Store struct {
	db       storage.Database
	commitMu sync.Mutex
}

// NewStore wraps the provided database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Get reads a key, translating the backend's not-found error into the
// (nil, false, nil) form engines expect.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Put writes a key directly. Genesis initialisation uses this; transactional
// paths go through Stage/Commit instead.
func (s *Store) Put(key, value []byte) error {
	return s.db.Put(key, value)
}

// ApplyBatch flushes a staged overlay's writes atomically.
func (s *Store) ApplyBatch(entries []storage.BatchEntry) error {
	return s.db.ApplyBatch(entries)
}

// CommitLock serializes staged commit validation against this store. Only
// the validate-and-flush window holds it; operations build their overlays
// without it.
func (s *Store) CommitLock() sync.Locker {
	return &s.commitMu
}
