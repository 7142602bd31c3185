package handlers

import (
	"context"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"balaka-tickets/models"
	"balaka-tickets/security"
	"balaka-tickets/services"
)

type PurchaseHandler struct {
	app       *pocketbase.PocketBase
	purchases *services.PurchaseService
	limiter   *security.RateLimiter
}

func NewPurchaseHandler(app *pocketbase.PocketBase, purchases *services.PurchaseService, limiter *security.RateLimiter) *PurchaseHandler {
	return &PurchaseHandler{
		app:       app,
		purchases: purchases,
		limiter:   limiter,
	}
}

// StartPurchase kicks off one purchase attempt. The response carries the
// attempt id and the authoritative total; progress past that streams over
// the buyer's realtime channel and is also readable via GetPurchase.
func (h *PurchaseHandler) StartPurchase(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var body struct {
		TicketTypeID  string          `json:"ticket_type_id"`
		Quantity      int             `json:"quantity"`
		PayerPhone    string          `json:"payer_phone"`
		ExpectedTotal decimal.Decimal `json:"expected_total"`
		AttemptID     string          `json:"attempt_id"`
	}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	eventID := e.Request.PathValue("eventId")
	if eventID == "" || body.TicketTypeID == "" || body.Quantity < 1 {
		return apis.NewBadRequestError("ticket_type_id and quantity are required", nil)
	}

	if !h.limiter.AllowPurchase(e.Request.Context(), e.Auth.Id) {
		return apis.NewApiError(429, "Too many purchase attempts, slow down", nil)
	}

	req := models.PurchaseRequest{
		AttemptID:     body.AttemptID,
		EventID:       eventID,
		TicketTypeID:  body.TicketTypeID,
		Quantity:      body.Quantity,
		UserID:        e.Auth.Id,
		PayerPhone:    body.PayerPhone,
		ExpectedTotal: body.ExpectedTotal,
	}

	// The state machine outlives this request: confirmation polling runs
	// for up to a minute while the buyer approves on their phone.
	states, err := h.purchases.Purchase(context.Background(), req)
	if err != nil {
		return apis.NewBadRequestError("Invalid purchase request", err)
	}

	// The first emission settles synchronous rejections (unknown event,
	// price mismatch) before we hand back 202.
	first, ok := <-states
	if !ok {
		return apis.NewInternalServerError("Purchase could not be started", nil)
	}
	if first.Stage == models.StageFailed {
		switch first.Reason {
		case models.ReasonNotFound:
			return apis.NewNotFoundError("Event or ticket type not found", nil)
		case models.ReasonPriceMismatch:
			return apis.NewApiError(409, "Price changed, refresh and retry", nil)
		default:
			return apis.NewBadRequestError("Purchase rejected: "+first.Reason, nil)
		}
	}

	go func() {
		for range states {
			// drain; progress is delivered via the realtime channel
		}
	}()

	return e.JSON(http.StatusAccepted, map[string]any{
		"attempt_id": first.AttemptID,
		"stage":      string(first.Stage),
		"total":      first.Total,
		"currency":   services.Currency,
	})
}

// GetPurchase returns the stored state of one purchase attempt.
func (h *PurchaseHandler) GetPurchase(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	attemptID := e.Request.PathValue("attemptId")
	session, err := h.purchases.GetSession(e.Request.Context(), attemptID)
	if err != nil {
		return apiError(err)
	}
	if session["user_id"] != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	return e.JSON(http.StatusOK, session)
}
