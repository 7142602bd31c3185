package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"balaka-tickets/internal/status"
)

// AppStore adapts a PocketBase app to the Store interface. The embedded
// database serializes writers, so unlike MemoryStore there is no optimistic
// retry loop here; RunInTransaction gives commit-or-abort directly.
type AppStore struct {
	app core.App

	watchMu  sync.Mutex
	watchers map[string][]chan struct{}
	hooked   map[string]bool
}

func NewAppStore(app core.App) *AppStore {
	return &AppStore{
		app:      app,
		watchers: make(map[string][]chan struct{}),
		hooked:   make(map[string]bool),
	}
}

func (s *AppStore) Get(ctx context.Context, collection, id string, v any) error {
	rec, err := s.app.FindRecordById(collection, id)
	if err != nil {
		return status.ErrNotFound
	}
	return decodeRecord(rec, v)
}

func (s *AppStore) List(ctx context.Context, collection string) ([]Document, error) {
	recs, err := s.app.FindAllRecords(collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	out := make([]Document, 0, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, Document{ID: rec.Id, Data: data})
	}
	return out, nil
}

// ListBy pushes an equality filter down to the database.
func (s *AppStore) ListBy(ctx context.Context, collection string, filter map[string]any) ([]Document, error) {
	recs, err := s.app.FindAllRecords(collection, dbx.HashExp(filter))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	out := make([]Document, 0, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, Document{ID: rec.Id, Data: data})
	}
	return out, nil
}

func (s *AppStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&appTxn{app: txApp})
	})
}

func (s *AppStore) Watch(collection string) (<-chan struct{}, func()) {
	s.ensureHooks(collection)

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

// ensureHooks binds record hooks once per collection so committed writes,
// including ones made outside this adapter, wake subscribers.
func (s *AppStore) ensureHooks(collection string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.hooked[collection] {
		return
	}
	s.hooked[collection] = true

	notify := func(e *core.RecordEvent) error {
		s.notifyCollection(collection)
		return e.Next()
	}
	s.app.OnRecordAfterCreateSuccess(collection).BindFunc(notify)
	s.app.OnRecordAfterUpdateSuccess(collection).BindFunc(notify)
	s.app.OnRecordAfterDeleteSuccess(collection).BindFunc(notify)
}

func (s *AppStore) notifyCollection(collection string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type appTxn struct {
	app core.App
}

func (t *appTxn) Get(collection, id string, v any) error {
	rec, err := t.app.FindRecordById(collection, id)
	if err != nil {
		return status.ErrNotFound
	}
	return decodeRecord(rec, v)
}

func (t *appTxn) Set(collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	rec, err := t.app.FindRecordById(collection, id)
	if err != nil {
		col, err := t.app.FindCollectionByNameOrId(collection)
		if err != nil {
			return status.ErrNotFound
		}
		rec = core.NewRecord(col)
		rec.Set("id", id)
	}
	delete(fields, "id")
	rec.Load(fields)

	if err := t.app.Save(rec); err != nil {
		return fmt.Errorf("save %s/%s: %w", collection, id, err)
	}
	return nil
}

func decodeRecord(rec *core.Record, v any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
