package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balaka-tickets/internal/ledger"
	"balaka-tickets/models"
)

func recv[T any](t *testing.T, ch <-chan []T) []T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

func TestListTicketTypes_LiveAvailability(t *testing.T) {
	store := ledger.NewMemoryStore()
	inventory := NewInventoryService(store, testQRKey)
	feed := NewFeedService(store, nil, nil)
	seedEvent(t, store, chiwembeFestival(10, 0))

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	ch, cancel, err := feed.ListTicketTypes(ctx, "evt-chiwembe")
	require.NoError(t, err)
	defer cancel()

	// Initial snapshot arrives without any write.
	views := recv(t, ch)
	require.Len(t, views, 2)
	assert.Equal(t, "tt-vip", views[0].ID)
	assert.Equal(t, 10, views[0].Available)

	// A committed sale pushes a fresh snapshot with the reduced remainder.
	_, err = inventory.ReserveAndSell(context.Background(), "evt-chiwembe", "tt-vip", 3, "u1", "attempt-1")
	require.NoError(t, err)

	views = recv(t, ch)
	assert.Equal(t, 3, views[0].Sold)
	assert.Equal(t, 7, views[0].Available)
}

func TestListTicketTypes_UnknownEvent(t *testing.T) {
	store := ledger.NewMemoryStore()
	feed := NewFeedService(store, nil, nil)

	_, _, err := feed.ListTicketTypes(context.Background(), "evt-missing")
	assert.Error(t, err)
}

func TestListTicketTypes_PublishesAvailability(t *testing.T) {
	store := ledger.NewMemoryStore()
	pub := &recorderPublisher{}
	feed := NewFeedService(store, nil, pub)
	seedEvent(t, store, chiwembeFestival(10, 0))

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	ch, cancel, err := feed.ListTicketTypes(ctx, "evt-chiwembe")
	require.NoError(t, err)
	defer cancel()

	recv(t, ch)

	pushed := pub.byType("availability")
	require.NotEmpty(t, pushed)
	assert.Equal(t, EventChannel("evt-chiwembe"), pushed[0]["channel"])
}

func TestListTicketTypes_CancelStopsStream(t *testing.T) {
	store := ledger.NewMemoryStore()
	feed := NewFeedService(store, nil, nil)
	seedEvent(t, store, chiwembeFestival(10, 0))

	ch, cancel, err := feed.ListTicketTypes(context.Background(), "evt-chiwembe")
	require.NoError(t, err)

	recv(t, ch)
	cancel()
	cancel() // safe to call twice

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestMyTickets_EffectiveStatusAndOrder(t *testing.T) {
	store := ledger.NewMemoryStore()
	inventory := NewInventoryService(store, testQRKey)
	feed := NewFeedService(store, nil, nil)

	// One live event and one that has already ended.
	seedEvent(t, store, chiwembeFestival(10, 0))
	endedEnd := time.Now().Add(-time.Hour)
	ended := models.Event{
		ID:        "evt-ended",
		Title:     "Nsanama Trade Fair",
		StartTime: time.Now().Add(-26 * time.Hour),
		EndTime:   &endedEnd,
		Ticketed:  true,
		TicketTypes: []models.TicketType{
			{ID: "tt-gate", Name: "Gate", Quantity: 50},
		},
	}
	seedEvent(t, store, ended)

	_, err := inventory.ReserveAndSell(context.Background(), "evt-ended", "tt-gate", 1, "u1", "attempt-old")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct created_at ordering
	_, err = inventory.ReserveAndSell(context.Background(), "evt-chiwembe", "tt-vip", 1, "u1", "attempt-new")
	require.NoError(t, err)
	_, err = inventory.ReserveAndSell(context.Background(), "evt-chiwembe", "tt-vip", 1, "someone-else", "attempt-other")
	require.NoError(t, err)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	ch, cancel, err := feed.MyTickets(ctx, "u1")
	require.NoError(t, err)
	defer cancel()

	views := recv(t, ch)
	require.Len(t, views, 2)

	// Newest first; the other user's ticket never appears.
	assert.Equal(t, "attempt-new-1", views[0].ID)
	assert.Equal(t, models.TicketActive, views[0].EffectiveStatus)
	assert.Equal(t, "attempt-old-1", views[1].ID)
	assert.Equal(t, models.TicketExpired, views[1].EffectiveStatus)
	// The stored status is untouched; expiry is derived at read time.
	assert.Equal(t, models.TicketActive, views[1].Status)

	// The redemption hash stays server-side.
	assert.Empty(t, views[0].SecretHash)
}

func TestEvents_FilterAndPhase(t *testing.T) {
	store := ledger.NewMemoryStore()
	feed := NewFeedService(store, nil, nil)

	now := time.Now()
	liveEnd := now.Add(2 * time.Hour)
	seedEvent(t, store, models.Event{
		ID:        "evt-live",
		Title:     "Market Day",
		Category:  "trade",
		StartTime: now.Add(-time.Hour),
		EndTime:   &liveEnd,
	})
	seedEvent(t, store, models.Event{
		ID:        "evt-next-week",
		Title:     "District Derby",
		Category:  "sports",
		StartTime: now.Add(7 * 24 * time.Hour),
	})

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	// Unfiltered: both, ordered by start time.
	ch, cancel, err := feed.Events(ctx, "", false)
	require.NoError(t, err)
	views := recv(t, ch)
	cancel()
	require.Len(t, views, 2)
	assert.Equal(t, "evt-live", views[0].ID)
	assert.Equal(t, models.PhaseLive, views[0].Phase)
	assert.Equal(t, models.PhaseUpcoming, views[1].Phase)
	assert.Greater(t, views[1].CountdownHours, 0)

	// Category filter.
	ch, cancel, err = feed.Events(ctx, "sports", false)
	require.NoError(t, err)
	views = recv(t, ch)
	cancel()
	require.Len(t, views, 1)
	assert.Equal(t, "evt-next-week", views[0].ID)

	// Today filter keeps the already-live event that started today and
	// drops next week's.
	ch, cancel, err = feed.Events(ctx, "", true)
	require.NoError(t, err)
	views = recv(t, ch)
	cancel()
	if now.Hour() >= 1 { // started-an-hour-ago is only "today" after 01:00
		require.Len(t, views, 1)
		assert.Equal(t, "evt-live", views[0].ID)
		assert.True(t, views[0].Today)
	}
}

func TestEvents_RepushOnChange(t *testing.T) {
	store := ledger.NewMemoryStore()
	engagement := NewEngagementService(store)
	feed := NewFeedService(store, nil, nil)
	seedEvent(t, store, chiwembeFestival(10, 0))

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	ch, cancel, err := feed.Events(ctx, "", false)
	require.NoError(t, err)
	defer cancel()

	views := recv(t, ch)
	require.Len(t, views, 1)
	assert.Equal(t, 0, views[0].Likes)

	_, err = engagement.ToggleLike(context.Background(), "evt-chiwembe", "u1")
	require.NoError(t, err)

	views = recv(t, ch)
	assert.Equal(t, 1, views[0].Likes)
	assert.True(t, views[0].Liked("u1"))
}
