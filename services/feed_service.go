package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"balaka-tickets/internal/ledger"
	"balaka-tickets/models"
	"balaka-tickets/monitoring"
)

// FeedService serves the read side: live snapshots of ticket availability,
// a user's tickets and the event feed. It never mutates the ledger; every
// snapshot is recomputed from a fresh read when the watched collection
// signals a change.
type FeedService struct {
	store     ledger.Store
	Redis     *redis.Client
	publisher Publisher
}

func NewFeedService(store ledger.Store, redisClient *redis.Client, publisher Publisher) *FeedService {
	return &FeedService{
		store:     store,
		Redis:     redisClient,
		publisher: publisher,
	}
}

// TicketTypeView is the availability projection handed to presentation.
type TicketTypeView struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Sold      int             `json:"sold"`
	Available int             `json:"available"`
}

// EventView is one entry of the event feed with its derived temporal state.
type EventView struct {
	models.Event

	Phase          models.EventPhase `json:"phase"`
	Today          bool              `json:"today"`
	CountdownHours int               `json:"countdown_hours"`
	CountdownMins  int               `json:"countdown_mins"`
}

// TicketView is a ticket with its read-time effective status.
type TicketView struct {
	models.Ticket

	EffectiveStatus string `json:"effective_status"`
}

// ListTicketTypes pushes the availability snapshot for an event, re-pushed
// after every committed change to the events collection. The returned
// cancel func must be called to release the subscription.
func (s *FeedService) ListTicketTypes(ctx context.Context, eventID string) (<-chan []TicketTypeView, func(), error) {
	snapshot := func() ([]TicketTypeView, error) {
		var event models.Event
		if err := s.store.Get(ctx, ledger.CollectionEvents, eventID, &event); err != nil {
			return nil, err
		}

		views := make([]TicketTypeView, len(event.TicketTypes))
		for i, tt := range event.TicketTypes {
			views[i] = TicketTypeView{
				ID:        tt.ID,
				Name:      tt.Name,
				Price:     tt.Price,
				Quantity:  tt.Quantity,
				Sold:      tt.Sold,
				Available: tt.Available(),
			}
		}

		s.cacheSnapshot(ctx, "tickettypes:"+eventID, views)
		return views, nil
	}

	return subscribe(ctx, s.store, ledger.CollectionEvents, snapshot, func(views []TicketTypeView) {
		if s.publisher != nil {
			s.publisher.Publish(EventChannel(eventID), map[string]any{
				"type":         "availability",
				"event_id":     eventID,
				"ticket_types": views,
			})
		}
	})
}

// MyTickets pushes the caller's tickets with read-time effective statuses.
// Expiry is derived here against the event clock, never written back.
func (s *FeedService) MyTickets(ctx context.Context, userID string) (<-chan []TicketView, func(), error) {
	snapshot := func() ([]TicketView, error) {
		docs, err := s.store.ListBy(ctx, ledger.CollectionTickets, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}

		now := time.Now()
		endTimes := make(map[string]*time.Time)

		var views []TicketView
		for _, doc := range docs {
			var ticket models.Ticket
			if err := json.Unmarshal(doc.Data, &ticket); err != nil {
				slog.Warn("feed: skipping corrupt ticket", "id", doc.ID, "error", err)
				continue
			}
			// Never hand the redemption hash to the read side.
			ticket.SecretHash = ""

			end, ok := endTimes[ticket.EventID]
			if !ok {
				var event models.Event
				if err := s.store.Get(ctx, ledger.CollectionEvents, ticket.EventID, &event); err == nil {
					end = event.EndTime
				}
				endTimes[ticket.EventID] = end
			}

			views = append(views, TicketView{
				Ticket:          ticket,
				EffectiveStatus: ticket.EffectiveStatus(end, now),
			})
		}

		sort.Slice(views, func(i, j int) bool {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		})
		return views, nil
	}

	return subscribe(ctx, s.store, ledger.CollectionTickets, snapshot, nil)
}

// Events pushes the event feed with phase classification. category filters
// when non-empty; todayOnly applies the independent same-day predicate.
func (s *FeedService) Events(ctx context.Context, category string, todayOnly bool) (<-chan []EventView, func(), error) {
	snapshot := func() ([]EventView, error) {
		docs, err := s.store.List(ctx, ledger.CollectionEvents)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		var views []EventView
		for _, doc := range docs {
			var event models.Event
			if err := json.Unmarshal(doc.Data, &event); err != nil {
				slog.Warn("feed: skipping corrupt event", "id", doc.ID, "error", err)
				continue
			}
			if category != "" && event.Category != category {
				continue
			}
			if todayOnly && !event.IsToday(now) {
				continue
			}

			hours, mins := event.Countdown(now)
			views = append(views, EventView{
				Event:          event,
				Phase:          event.Phase(now),
				Today:          event.IsToday(now),
				CountdownHours: hours,
				CountdownMins:  mins,
			})
		}

		sort.Slice(views, func(i, j int) bool {
			return views[i].StartTime.Before(views[j].StartTime)
		})
		return views, nil
	}

	return subscribe(ctx, s.store, ledger.CollectionEvents, snapshot, nil)
}

// cacheSnapshot keeps the latest snapshot in Redis for cheap cold reads by
// clients that connect before their live query delivers.
func (s *FeedService) cacheSnapshot(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, data, 5*time.Minute).Err(); err != nil {
		slog.Warn("feed: cache write failed", "key", key, "error", err)
	}
}

// subscribe runs the generic live-query loop: push one snapshot now, then
// one after every change signal, until ctx ends or cancel is called.
func subscribe[T any](ctx context.Context, store ledger.Store, collection string, snapshot func() ([]T, error), onPush func([]T)) (<-chan []T, func(), error) {
	first, err := snapshot()
	if err != nil {
		return nil, nil, err
	}

	changes, cancelWatch := store.Watch(collection)
	out := make(chan []T, 1)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelWatch()
			close(done)
		})
	}

	monitoring.TrackSubscription(1)
	go func() {
		defer monitoring.TrackSubscription(-1)
		defer close(out)

		push := func(views []T) bool {
			select {
			case out <- views:
			case <-ctx.Done():
				return false
			case <-done:
				return false
			}
			if onPush != nil {
				onPush(views)
			}
			return true
		}

		if !push(first) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-changes:
				views, err := snapshot()
				if err != nil {
					slog.Warn("feed: snapshot refresh failed", "collection", collection, "error", err)
					continue
				}
				if !push(views) {
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
