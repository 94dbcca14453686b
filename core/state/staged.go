package state

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"mintgate/storage"
)

// ErrCommitConflict reports that another commit changed a key this staged
// view read. The operation must be re-run from scratch against fresh state.
var ErrCommitConflict = errors.New("state: commit conflict")

// Committer is a KV that can additionally absorb a batch of writes
// atomically and serialize commit validation. *Store satisfies it.
type Committer interface {
	KV
	ApplyBatch(entries []storage.BatchEntry) error
	CommitLock() sync.Locker
}

// overlay buffers writes on top of a parent KV and records every parent
// read with the observed value. Reads see buffered writes first, then fall
// through to the parent. Nothing reaches the parent until the overlay is
// flushed.
type observation struct {
	present bool
	value   []byte
}

type overlay struct {
	parent KV
	writes map[string][]byte
	order  []string
	reads  map[string]observation
}

func (o *overlay) Get(key []byte) ([]byte, bool, error) {
	if value, ok := o.writes[string(key)]; ok {
		return append([]byte(nil), value...), true, nil
	}
	value, ok, err := o.parent.Get(key)
	if err != nil {
		return nil, false, err
	}
	k := string(key)
	if _, seen := o.reads[k]; !seen {
		o.reads[k] = observation{present: ok, value: append([]byte(nil), value...)}
	}
	return value, ok, nil
}

func (o *overlay) Put(key, value []byte) error {
	k := string(key)
	if _, seen := o.writes[k]; !seen {
		o.order = append(o.order, k)
	}
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

// Staged is a state manager whose mutations are buffered until Commit. It is
// the unit of work for every externally invocable operation: run all steps
// against the staged manager, then commit once everything validated, or walk
// away and nothing happened. Commit re-checks every key the view read, so
// two staged operations over disjoint records never contend while operations
// whose reads overlap a concurrent write fail with ErrCommitConflict and
// re-run.
type Staged struct {
	*Manager
	base      Committer
	ov        *overlay
	committed bool
}

// Stage opens a staged view over the committed state.
func Stage(base Committer) *Staged {
	ov := &overlay{
		parent: base,
		writes: make(map[string][]byte),
		reads:  make(map[string]observation),
	}
	return &Staged{Manager: NewManager(ov), base: base, ov: ov}
}

// Commit validates the view's read set and flushes every buffered write to
// the underlying store in one atomic batch. A staged view commits at most
// once.
func (s *Staged) Commit() error {
	if s.committed {
		return fmt.Errorf("state: staged view already committed")
	}
	lock := s.base.CommitLock()
	lock.Lock()
	defer lock.Unlock()

	for key, observed := range s.ov.reads {
		current, ok, err := s.base.Get([]byte(key))
		if err != nil {
			return err
		}
		if ok != observed.present || (ok && !bytes.Equal(current, observed.value)) {
			return ErrCommitConflict
		}
	}

	entries := make([]storage.BatchEntry, 0, len(s.ov.order))
	for _, key := range s.ov.order {
		entries = append(entries, storage.BatchEntry{
			Key:   []byte(key),
			Value: s.ov.writes[key],
		})
	}
	if err := s.base.ApplyBatch(entries); err != nil {
		return err
	}
	s.committed = true
	return nil
}

// Dirty reports how many distinct keys the staged view has written. Useful
// for tests asserting that failed operations staged nothing durable.
func (s *Staged) Dirty() int {
	return len(s.ov.writes)
}
