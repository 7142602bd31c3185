package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"balaka-tickets/internal/status"
)

// maxCommitRetries bounds the optimistic-concurrency retry loop before a
// transaction is reported as aborted.
const maxCommitRetries = 16

type record struct {
	data    []byte
	version uint64
}

type docKey struct {
	collection string
	id         string
}

// MemoryStore is an in-process Store with optimistic concurrency control:
// every document carries a version stamp, transactions record the versions
// they read and commit only if none moved underneath them. Used as the test
// vehicle for the inventory and engagement invariants, and as a standalone
// backend where no embedded app is running.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[docKey]record

	watchMu  sync.Mutex
	watchers map[string][]chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[docKey]record),
		watchers: make(map[string][]chan struct{}),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, v any) error {
	s.mu.Lock()
	rec, ok := s.docs[docKey{collection, id}]
	s.mu.Unlock()
	if !ok {
		return status.ErrNotFound
	}
	return json.Unmarshal(rec.data, v)
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Document
	for k, rec := range s.docs {
		if k.collection != collection {
			continue
		}
		data := make([]byte, len(rec.data))
		copy(data, rec.data)
		out = append(out, Document{ID: k.id, Data: data})
	}
	return out, nil
}

func (s *MemoryStore) ListBy(ctx context.Context, collection string, filter map[string]any) ([]Document, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := docs[:0]
	for _, doc := range docs {
		var fields map[string]any
		if err := json.Unmarshal(doc.Data, &fields); err != nil {
			continue
		}
		match := true
		for k, want := range filter {
			if fmt.Sprint(fields[k]) != fmt.Sprint(want) {
				match = false
				break
			}
		}
		if match {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memoryTxn{
			store:  s,
			reads:  make(map[docKey]uint64),
			writes: make(map[docKey][]byte),
		}

		if err := fn(tx); err != nil {
			return err
		}

		if s.tryCommit(tx) {
			s.notify(tx)
			return nil
		}
	}
	return status.ErrTransactionAborted
}

// tryCommit verifies that every version the transaction read is still
// current, then applies the staged writes. Single compare-and-swap section.
func (s *MemoryStore) tryCommit(tx *memoryTxn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, readVersion := range tx.reads {
		current, ok := s.docs[k]
		switch {
		case !ok && readVersion != 0:
			return false
		case ok && current.version != readVersion:
			return false
		}
	}

	for k, data := range tx.writes {
		s.docs[k] = record{data: data, version: s.docs[k].version + 1}
	}
	return true
}

func (s *MemoryStore) Watch(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.watchMu.Lock()
	s.watchers[collection] = append(s.watchers[collection], ch)
	s.watchMu.Unlock()

	cancel := func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		subs := s.watchers[collection]
		for i, c := range subs {
			if c == ch {
				s.watchers[collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

func (s *MemoryStore) notify(tx *memoryTxn) {
	touched := make(map[string]bool)
	for k := range tx.writes {
		touched[k.collection] = true
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for collection := range touched {
		for _, ch := range s.watchers[collection] {
			select {
			case ch <- struct{}{}:
			default: // subscriber already has a pending signal
			}
		}
	}
}

type memoryTxn struct {
	store  *MemoryStore
	reads  map[docKey]uint64
	writes map[docKey][]byte
}

func (t *memoryTxn) Get(collection, id string, v any) error {
	k := docKey{collection, id}

	if staged, ok := t.writes[k]; ok {
		return json.Unmarshal(staged, v)
	}

	t.store.mu.Lock()
	rec, ok := t.store.docs[k]
	t.store.mu.Unlock()

	if !ok {
		// Version 0 pins "did not exist" so a concurrent create still
		// conflicts this transaction.
		t.reads[k] = 0
		return status.ErrNotFound
	}

	if _, seen := t.reads[k]; !seen {
		t.reads[k] = rec.version
	}
	return json.Unmarshal(rec.data, v)
}

func (t *memoryTxn) Set(collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	k := docKey{collection, id}
	t.writes[k] = data

	// A blind write still needs a version pin, otherwise two overlapping
	// blind writers would both commit without conflict.
	if _, seen := t.reads[k]; !seen {
		t.store.mu.Lock()
		if rec, ok := t.store.docs[k]; ok {
			t.reads[k] = rec.version
		} else {
			t.reads[k] = 0
		}
		t.store.mu.Unlock()
	}
	return nil
}
