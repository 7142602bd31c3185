package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseStage is one step of the purchase state machine.
type PurchaseStage string

const (
	StageQuoting              PurchaseStage = "quoting"
	StageAwaitingCheckout     PurchaseStage = "awaiting_checkout"
	StageAwaitingConfirmation PurchaseStage = "awaiting_confirmation"
	StageCommitting           PurchaseStage = "committing"
	StageCompleted            PurchaseStage = "completed"
	StageFailed               PurchaseStage = "failed"
)

// Failure reasons carried by a terminal StageFailed state. Everything except
// ReasonSoldOutAfterPayment is retryable by the buyer; sold_out_after_payment
// means money changed hands and the request must go to support.
const (
	ReasonCheckoutFailed      = "checkout_failed"
	ReasonPaymentFailed       = "payment_failed"
	ReasonTimeout             = "timeout"
	ReasonSoldOutAfterPayment = "sold_out_after_payment"
	ReasonPriceMismatch       = "price_mismatch"
	ReasonNotFound            = "not_found"
)

// NetworkUnknown is the payment network placeholder until the gateway
// confirms which mobile-money channel actually paid.
const NetworkUnknown = "UNKNOWN"

// PurchaseRequest is the transient value object driving one purchase
// attempt. AttemptID doubles as the idempotency token: a poll hit and a late
// webhook confirmation for the same attempt commit inventory exactly once.
type PurchaseRequest struct {
	AttemptID     string          `json:"attempt_id"`
	EventID       string          `json:"event_id"`
	TicketTypeID  string          `json:"ticket_type_id"`
	Quantity      int             `json:"quantity"`
	UserID        string          `json:"user_id"`
	PayerPhone    string          `json:"payer_phone"`
	Network       string          `json:"network"`
	ExpectedTotal decimal.Decimal `json:"expected_total"`
}

// ItemID is the composite id the gateway sees, eventId_ticketTypeId.
func (r PurchaseRequest) ItemID() string {
	return fmt.Sprintf("%s_%s", r.EventID, r.TicketTypeID)
}

// PurchaseState is one emission of the purchase state machine. Total is
// authoritative (re-priced from the ledger, not the client).
type PurchaseState struct {
	AttemptID   string          `json:"attempt_id"`
	Stage       PurchaseStage   `json:"stage"`
	Reason      string          `json:"reason,omitempty"`
	Total       decimal.Decimal `json:"total"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	TicketIDs   []string        `json:"ticket_ids,omitempty"`
	At          time.Time       `json:"at"`
}

// Terminal reports whether no further states will follow.
func (s PurchaseState) Terminal() bool {
	return s.Stage == StageCompleted || s.Stage == StageFailed
}

// Retryable reports whether the buyer may safely start a fresh attempt.
func (s PurchaseState) Retryable() bool {
	return s.Stage == StageFailed && s.Reason != ReasonSoldOutAfterPayment
}

// LikeState is the outcome of one like toggle.
type LikeState struct {
	EventID string `json:"event_id"`
	Liked   bool   `json:"liked"`
	Likes   int    `json:"likes"`
}
