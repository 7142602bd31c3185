package handlers

import (
	"errors"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/tools/router"

	"balaka-tickets/internal/status"
)

// apiError maps domain sentinels to HTTP errors so every handler reports
// the same taxonomy.
func apiError(err error) *router.ApiError {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", err)
	case errors.Is(err, status.ErrInsufficientInventory):
		return apis.NewApiError(409, "Sold out", err)
	case errors.Is(err, status.ErrPriceMismatch):
		return apis.NewApiError(409, "Price changed, refresh and retry", err)
	case errors.Is(err, status.ErrAlreadyCommitted):
		return apis.NewApiError(409, "Purchase already completed", err)
	case errors.Is(err, status.ErrTicketAlreadyUsed):
		return apis.NewApiError(409, "Ticket already used", err)
	case errors.Is(err, status.ErrTicketExpired):
		return apis.NewApiError(410, "Ticket expired", err)
	case errors.Is(err, status.ErrBadTicketSecret):
		return apis.NewForbiddenError("Invalid ticket", err)
	case errors.Is(err, status.ErrCheckoutRequestFailed):
		return apis.NewApiError(502, "Payment gateway unavailable", err)
	default:
		return apis.NewInternalServerError("Internal error", err)
	}
}
