package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balaka-tickets/internal/status"
)

type counterDoc struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	var doc counterDoc
	err := store.Get(context.Background(), "counters", "nope", &doc)

	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestMemoryStore_TransactionRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.RunTransaction(ctx, func(tx Txn) error {
		return tx.Set("counters", "c1", counterDoc{ID: "c1", Value: 7})
	})
	require.NoError(t, err)

	var doc counterDoc
	require.NoError(t, store.Get(ctx, "counters", "c1", &doc))
	assert.Equal(t, 7, doc.Value)
}

func TestMemoryStore_TransactionReadsOwnWrites(t *testing.T) {
	store := NewMemoryStore()

	err := store.RunTransaction(context.Background(), func(tx Txn) error {
		if err := tx.Set("counters", "c1", counterDoc{ID: "c1", Value: 1}); err != nil {
			return err
		}
		var doc counterDoc
		if err := tx.Get("counters", "c1", &doc); err != nil {
			return err
		}
		doc.Value++
		return tx.Set("counters", "c1", doc)
	})
	require.NoError(t, err)

	var doc counterDoc
	require.NoError(t, store.Get(context.Background(), "counters", "c1", &doc))
	assert.Equal(t, 2, doc.Value)
}

func TestMemoryStore_FnErrorAbortsWithoutWrite(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("boom")

	err := store.RunTransaction(context.Background(), func(tx Txn) error {
		if err := tx.Set("counters", "c1", counterDoc{ID: "c1", Value: 1}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var doc counterDoc
	err = store.Get(context.Background(), "counters", "c1", &doc)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

// Read-modify-write from many goroutines must never lose an increment; the
// version check forces losers to retry on a fresh snapshot.
func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.RunTransaction(ctx, func(tx Txn) error {
		return tx.Set("counters", "c1", counterDoc{ID: "c1"})
	}))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunTransaction(ctx, func(tx Txn) error {
				var doc counterDoc
				if err := tx.Get("counters", "c1", &doc); err != nil {
					return err
				}
				doc.Value++
				return tx.Set("counters", "c1", doc)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var doc counterDoc
	require.NoError(t, store.Get(ctx, "counters", "c1", &doc))
	assert.Equal(t, workers, doc.Value)
}

func TestMemoryStore_ConcurrentCreateConflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var created int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.RunTransaction(ctx, func(tx Txn) error {
				var doc counterDoc
				if err := tx.Get("counters", "once", &doc); err == nil {
					return nil // someone else created it
				} else if !errors.Is(err, status.ErrNotFound) {
					return err
				}
				return tx.Set("counters", "once", counterDoc{ID: "once", Value: n})
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, created)

	var doc counterDoc
	require.NoError(t, store.Get(ctx, "counters", "once", &doc))
}

func TestMemoryStore_ListBy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	type owned struct {
		ID    string `json:"id"`
		Owner string `json:"owner"`
	}
	require.NoError(t, store.RunTransaction(ctx, func(tx Txn) error {
		if err := tx.Set("things", "a", owned{ID: "a", Owner: "u1"}); err != nil {
			return err
		}
		if err := tx.Set("things", "b", owned{ID: "b", Owner: "u2"}); err != nil {
			return err
		}
		return tx.Set("things", "c", owned{ID: "c", Owner: "u1"})
	}))

	docs, err := store.ListBy(ctx, "things", map[string]any{"owner": "u1"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = store.ListBy(ctx, "things", map[string]any{"owner": "nobody"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_WatchSignalsOnCommit(t *testing.T) {
	store := NewMemoryStore()
	ch, cancel := store.Watch("counters")
	defer cancel()

	require.NoError(t, store.RunTransaction(context.Background(), func(tx Txn) error {
		return tx.Set("counters", "c1", counterDoc{ID: "c1", Value: 1})
	}))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected watch signal after commit")
	}
}

func TestMemoryStore_WatchIgnoresOtherCollections(t *testing.T) {
	store := NewMemoryStore()
	ch, cancel := store.Watch("counters")
	defer cancel()

	require.NoError(t, store.RunTransaction(context.Background(), func(tx Txn) error {
		return tx.Set("other", "x", counterDoc{ID: "x"})
	}))

	select {
	case <-ch:
		t.Fatal("unexpected signal for untouched collection")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.RunTransaction(ctx, func(tx Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
