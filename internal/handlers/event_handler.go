package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"balaka-tickets/services"
)

type EventHandler struct {
	app        *pocketbase.PocketBase
	feed       *services.FeedService
	engagement *services.EngagementService
}

func NewEventHandler(app *pocketbase.PocketBase, feed *services.FeedService, engagement *services.EngagementService) *EventHandler {
	return &EventHandler{
		app:        app,
		feed:       feed,
		engagement: engagement,
	}
}

// ListEvents returns the event feed with phase classification. Query params:
// category filters by category, today=true applies the same-day filter.
func (h *EventHandler) ListEvents(e *core.RequestEvent) error {
	category := e.Request.URL.Query().Get("category")
	todayOnly := e.Request.URL.Query().Get("today") == "true"

	views, err := firstSnapshot(h.feed.Events(e.Request.Context(), category, todayOnly))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, views)
}

// GetTicketTypes returns the availability snapshot for one event. App
// clients keep a live query open instead; this endpoint serves cold loads
// and non-app consumers.
func (h *EventHandler) GetTicketTypes(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	views, err := firstSnapshot(h.feed.ListTicketTypes(e.Request.Context(), eventID))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, views)
}

// ToggleLike flips the caller's like on an event and returns the outcome.
func (h *EventHandler) ToggleLike(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	state, err := h.engagement.ToggleLike(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, state)
}

// firstSnapshot adapts a live query to a one-shot read: take the initial
// snapshot, then drop the subscription.
func firstSnapshot[T any](ch <-chan []T, cancel func(), err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer cancel()
	views, ok := <-ch
	if !ok {
		return nil, nil
	}
	if views == nil {
		views = []T{}
	}
	return views, nil
}
