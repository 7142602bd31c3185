package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balaka-tickets/internal/ledger"
	"balaka-tickets/internal/status"
	"balaka-tickets/models"
)

func TestToggleLike_RoundTrip(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := NewEngagementService(store)
	seedEvent(t, store, chiwembeFestival(10, 0))

	// First toggle likes.
	state, err := svc.ToggleLike(context.Background(), "evt-chiwembe", "u1")
	require.NoError(t, err)
	assert.True(t, state.Liked)
	assert.Equal(t, 1, state.Likes)

	var event models.Event
	require.NoError(t, store.Get(context.Background(), ledger.CollectionEvents, "evt-chiwembe", &event))
	assert.True(t, event.Liked("u1"))

	var user models.User
	require.NoError(t, store.Get(context.Background(), ledger.CollectionUsers, "u1", &user))
	assert.True(t, user.HasLiked("evt-chiwembe"))

	// Second toggle removes every trace of the like.
	state, err = svc.ToggleLike(context.Background(), "evt-chiwembe", "u1")
	require.NoError(t, err)
	assert.False(t, state.Liked)
	assert.Equal(t, 0, state.Likes)

	require.NoError(t, store.Get(context.Background(), ledger.CollectionEvents, "evt-chiwembe", &event))
	assert.False(t, event.Liked("u1"))
	assert.Empty(t, event.LikedBy)
	assert.Equal(t, 0, event.Likes)

	require.NoError(t, store.Get(context.Background(), ledger.CollectionUsers, "u1", &user))
	assert.False(t, user.HasLiked("evt-chiwembe"))
}

func TestToggleLike_UnknownEvent(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := NewEngagementService(store)

	_, err := svc.ToggleLike(context.Background(), "evt-missing", "u1")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

// Many users toggling the same event at once: the counter must equal the
// set size and every user's mirror must agree with the event's set.
func TestToggleLike_ConcurrentUsers(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := NewEngagementService(store)
	seedEvent(t, store, chiwembeFestival(10, 0))

	const users = 20

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.ToggleLike(context.Background(), "evt-chiwembe", fmt.Sprintf("user-%d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var event models.Event
	require.NoError(t, store.Get(context.Background(), ledger.CollectionEvents, "evt-chiwembe", &event))
	assert.Equal(t, users, event.Likes)
	assert.Len(t, event.LikedBy, users)

	for i := 0; i < users; i++ {
		userID := fmt.Sprintf("user-%d", i)
		var user models.User
		require.NoError(t, store.Get(context.Background(), ledger.CollectionUsers, userID, &user))
		assert.True(t, user.HasLiked("evt-chiwembe"))
		assert.True(t, event.Liked(userID))
	}
}

// One user racing toggles against itself: whatever interleaving wins, the
// event set, its counter and the user mirror end up mutually consistent.
func TestToggleLike_ConcurrentSameUserStaysConsistent(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := NewEngagementService(store)
	seedEvent(t, store, chiwembeFestival(10, 0))

	const toggles = 8

	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ToggleLike(context.Background(), "evt-chiwembe", "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var event models.Event
	require.NoError(t, store.Get(context.Background(), ledger.CollectionEvents, "evt-chiwembe", &event))
	var user models.User
	require.NoError(t, store.Get(context.Background(), ledger.CollectionUsers, "u1", &user))

	assert.Equal(t, len(event.LikedBy), event.Likes)
	assert.Equal(t, event.Liked("u1"), user.HasLiked("evt-chiwembe"))
}
