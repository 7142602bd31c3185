// Package gateway abstracts the third-party payment collaborator behind a
// narrow interface so the purchase orchestrator never sees provider details.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider identifies a payment gateway implementation.
type Provider string

const (
	ProviderPayChangu Provider = "paychangu"
	ProviderDPO       Provider = "dpo"
)

// PaymentStatus is the orchestrator-facing status taxonomy.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
)

// CheckoutRequest asks for an external hosted checkout. AttemptID is our
// idempotency token and becomes the gateway's transaction reference.
type CheckoutRequest struct {
	AttemptID   string          `json:"attempt_id"`
	ItemID      string          `json:"item_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PayerPhone  string          `json:"payer_phone"`
	Description string          `json:"description,omitempty"`
}

// CheckoutHandle is what the buyer is handed off to.
type CheckoutHandle struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
}

// TransactionStatus is one observation of a charge.
type TransactionStatus struct {
	PaymentID string          `json:"payment_id"`
	Status    PaymentStatus   `json:"status"`
	Network   string          `json:"network"` // confirmed mobile-money channel
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp int64           `json:"timestamp"`
}

// Gateway is the common interface for payment providers.
type Gateway interface {
	// GetProvider returns the gateway provider type.
	GetProvider() Provider

	// RequestCheckout obtains an external checkout handle. May fail
	// synchronously; nothing is mutated on failure.
	RequestCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutHandle, error)

	// CheckTransaction polls the status of a charge by attempt id.
	CheckTransaction(ctx context.Context, attemptID string) (*TransactionStatus, error)

	// SetConfirmationChannel sets the channel late (out-of-band)
	// confirmations are delivered on.
	SetConfirmationChannel(ch chan *TransactionStatus)

	// Close gracefully closes any connections.
	Close(ctx context.Context) error
}
