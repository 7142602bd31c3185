package handlers

import (
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"balaka-tickets/security"
	"balaka-tickets/services"
)

type TicketHandler struct {
	app       *pocketbase.PocketBase
	feed      *services.FeedService
	inventory *services.InventoryService
	limiter   *security.RateLimiter
}

func NewTicketHandler(app *pocketbase.PocketBase, feed *services.FeedService, inventory *services.InventoryService, limiter *security.RateLimiter) *TicketHandler {
	return &TicketHandler{
		app:       app,
		feed:      feed,
		inventory: inventory,
		limiter:   limiter,
	}
}

// MyTickets returns the caller's tickets, newest first, with read-time
// effective statuses.
func (h *TicketHandler) MyTickets(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	views, err := firstSnapshot(h.feed.MyTickets(e.Request.Context(), e.Auth.Id))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, views)
}

// RedeemTicket is the gate scan. The body carries either the raw scanned
// qr_payload or an explicit ticket_id/secret pair.
func (h *TicketHandler) RedeemTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	if !h.limiter.AllowRedeem(e.Request.Context(), e.Auth.Id) {
		return apis.NewApiError(429, "Too many scans, slow down", nil)
	}

	var body struct {
		QRPayload string `json:"qr_payload"`
		Secret    string `json:"secret"`
	}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticketID := e.Request.PathValue("ticketId")
	secret := body.Secret
	if body.QRPayload != "" {
		parts := strings.SplitN(body.QRPayload, ".", 3)
		if len(parts) != 3 {
			return apis.NewBadRequestError("Malformed QR payload", nil)
		}
		ticketID, secret = parts[0], parts[1]
	}
	if ticketID == "" || secret == "" {
		return apis.NewBadRequestError("ticket id and secret are required", nil)
	}

	ticket, err := h.inventory.RedeemTicket(e.Request.Context(), ticketID, secret)
	if err != nil {
		return apiError(err)
	}

	ticket.SecretHash = ""
	return e.JSON(http.StatusOK, ticket)
}
