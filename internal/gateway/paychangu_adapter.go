package gateway

import (
	"context"
	"fmt"

	"balaka-tickets/internal/gateway/paychangu"
)

// PayChanguAdapter wraps the PayChangu client to conform to Gateway.
type PayChanguAdapter struct {
	client *paychangu.PayChangu

	// relay bridges provider transactions onto the orchestrator's channel.
	relay chan *paychangu.Transaction
}

func NewPayChanguAdapter(ctx context.Context, cfg *paychangu.Config) (*PayChanguAdapter, error) {
	client, err := paychangu.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PayChangu client: %w", err)
	}

	return &PayChanguAdapter{client: client}, nil
}

func (a *PayChanguAdapter) GetProvider() Provider {
	return ProviderPayChangu
}

func (a *PayChanguAdapter) RequestCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutHandle, error) {
	form := &paychangu.CheckoutForm{
		TxRef:       req.AttemptID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Phone:       req.PayerPhone,
		ItemID:      req.ItemID,
		Description: req.Description,
	}

	checkoutURL, err := a.client.RequestCheckout(ctx, form)
	if err != nil {
		return nil, err
	}

	return &CheckoutHandle{
		PaymentID:   req.AttemptID,
		CheckoutURL: checkoutURL,
	}, nil
}

func (a *PayChanguAdapter) CheckTransaction(ctx context.Context, attemptID string) (*TransactionStatus, error) {
	tx, err := a.client.CheckTransaction(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return fromTransaction(tx), nil
}

func (a *PayChanguAdapter) SetConfirmationChannel(ch chan *TransactionStatus) {
	a.relay = make(chan *paychangu.Transaction, 1)
	a.client.SetTranChannel(a.relay)

	go func() {
		for tx := range a.relay {
			ch <- fromTransaction(tx)
		}
	}()
}

// VerifyWebhookSignature checks a webhook delivery against the shared secret.
func (a *PayChanguAdapter) VerifyWebhookSignature(body []byte, signature string) bool {
	return a.client.VerifyWebhookSignature(body, signature)
}

// ParseWebhook decodes a verified webhook body into the orchestrator's
// transaction shape.
func (a *PayChanguAdapter) ParseWebhook(body []byte) (*TransactionStatus, error) {
	tx, err := paychangu.ParseWebhook(body)
	if err != nil {
		return nil, err
	}
	return fromTransaction(tx), nil
}

func (a *PayChanguAdapter) Close(ctx context.Context) error {
	// client.Close waits for the relay sender to stop; only then is the
	// relay channel safe to close.
	err := a.client.Close(ctx)
	if a.relay != nil {
		close(a.relay)
	}
	return err
}

func fromTransaction(tx *paychangu.Transaction) *TransactionStatus {
	status := StatusPending
	switch tx.Status {
	case paychangu.StatusSuccess:
		status = StatusSuccess
	case paychangu.StatusFailed:
		status = StatusFailed
	}

	return &TransactionStatus{
		PaymentID: tx.TxRef,
		Status:    status,
		Network:   tx.Network,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Timestamp: tx.PaidAt.Unix(),
	}
}
