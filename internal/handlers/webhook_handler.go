package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"balaka-tickets/internal/gateway"
	"balaka-tickets/services"
)

// webhookCodec is what a gateway must additionally implement for its
// webhook deliveries to be accepted over HTTP.
type webhookCodec interface {
	VerifyWebhookSignature(body []byte, signature string) bool
	ParseWebhook(body []byte) (*gateway.TransactionStatus, error)
}

type WebhookHandler struct {
	app       *pocketbase.PocketBase
	purchases *services.PurchaseService
	gw        gateway.Gateway
}

func NewWebhookHandler(app *pocketbase.PocketBase, purchases *services.PurchaseService, gw gateway.Gateway) *WebhookHandler {
	return &WebhookHandler{
		app:       app,
		purchases: purchases,
		gw:        gw,
	}
}

// PaymentWebhook receives out-of-band confirmations from the gateway. It is
// the reconciliation path for payments that settle after the poll bound;
// racing the poll loop is safe because the commit is idempotent.
func (h *WebhookHandler) PaymentWebhook(e *core.RequestEvent) error {
	codec, ok := h.gw.(webhookCodec)
	if !ok {
		return apis.NewNotFoundError("Webhooks not supported for this gateway", nil)
	}

	body, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("Unreadable body", err)
	}

	if !codec.VerifyWebhookSignature(body, e.Request.Header.Get("Signature")) {
		slog.Warn("webhook: bad signature", "remote", e.Request.RemoteAddr)
		return apis.NewForbiddenError("Invalid signature", nil)
	}

	tx, err := codec.ParseWebhook(body)
	if err != nil {
		return apis.NewBadRequestError("Malformed webhook", err)
	}

	if err := h.purchases.HandleConfirmation(e.Request.Context(), tx); err != nil {
		slog.Error("webhook: confirmation failed", "payment_id", tx.PaymentID, "error", err)
		// 500 asks the gateway to redeliver; the idempotent commit makes
		// redelivery safe.
		return apis.NewInternalServerError("Confirmation not applied", err)
	}

	return e.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
