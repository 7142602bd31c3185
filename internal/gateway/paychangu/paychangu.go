// Package paychangu talks to the PayChangu mobile-money gateway used across
// Malawi (Airtel Money, TNM Mpamba, card rails behind one checkout page).
package paychangu

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"
)

// Checkout statuses as reported by the verify endpoint.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type (
	// CheckoutForm is one hosted-checkout request. TxRef doubles as the
	// purchase-attempt idempotency token on our side.
	CheckoutForm struct {
		TxRef       string          `json:"tx_ref"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Phone       string          `json:"phone"`
		ItemID      string          `json:"item_id"`
		Description string          `json:"description"`
	}

	// Transaction is a settled or in-flight charge as PayChangu sees it.
	Transaction struct {
		TxRef    string          `json:"tx_ref"`
		Status   string          `json:"status"`
		Network  string          `json:"network"` // airtel_money, tnm_mpamba, card
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
		PaidAt   time.Time       `json:"paid_at"`
	}

	PayChangu struct {
		callbackURL   string
		webhookSecret string

		pnChannel string

		client *Client
		sub    *subscribe
	}
)

// New builds the gateway client and, when relay keys are configured,
// subscribes to the webhook-relay PubNub channel.
func New(ctx context.Context, cfg *Config) (*PayChangu, error) {
	p := &PayChangu{
		callbackURL:   cfg.CallbackURL,
		webhookSecret: cfg.WebhookSecret,
		pnChannel:     cfg.PNChannel,
		client:        newClient(cfg),
	}

	if cfg.PNSubKey != "" {
		pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PNUUID))
		pnCfg.SubscribeKey = cfg.PNSubKey
		pnCfg.SecretKey = cfg.PNSubSecret

		sub, err := p.newSubscription(ctx, pnCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to PayChangu relay channel: %v", err)
		}
		p.sub = sub
	}

	return p, nil
}

// RequestCheckout asks PayChangu for a hosted checkout page.
func (p *PayChangu) RequestCheckout(ctx context.Context, f *CheckoutForm) (string, error) {
	body := map[string]any{
		"tx_ref":       f.TxRef,
		"amount":       f.Amount,
		"currency":     f.Currency,
		"callback_url": p.callbackURL,
		"customization": map[string]any{
			"title":       f.Description,
			"description": f.ItemID,
		},
		"meta": map[string]any{
			"phone":   f.Phone,
			"item_id": f.ItemID,
		},
	}

	var reply struct {
		Status string `json:"status"`
		Data   struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"data"`
	}
	if err := p.client.do(ctx, "POST", "/payment", body, &reply); err != nil {
		return "", err
	}
	if reply.Status != "success" {
		return "", fmt.Errorf("paychangu: checkout rejected: %s", reply.Status)
	}
	return reply.Data.CheckoutURL, nil
}

// CheckTransaction polls the verify endpoint for a tx_ref.
func (p *PayChangu) CheckTransaction(ctx context.Context, txRef string) (*Transaction, error) {
	var reply struct {
		Status string `json:"status"`
		Data   struct {
			TxRef    string          `json:"tx_ref"`
			Status   string          `json:"status"`
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
			AuthType string          `json:"authorization_type"`
		} `json:"data"`
	}
	if err := p.client.do(ctx, "GET", "/verify-payment/"+txRef, nil, &reply); err != nil {
		return nil, err
	}

	return &Transaction{
		TxRef:    reply.Data.TxRef,
		Status:   normalizeStatus(reply.Data.Status),
		Network:  reply.Data.AuthType,
		Amount:   reply.Data.Amount,
		Currency: reply.Data.Currency,
	}, nil
}

// VerifyWebhookSignature checks the Signature header of a webhook delivery.
func (p *PayChangu) VerifyWebhookSignature(body []byte, signature string) bool {
	expected := hmacHex(body, []byte(p.webhookSecret))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ParseWebhook decodes a webhook delivery body into a Transaction with a
// normalized status. Callers must verify the signature first.
func ParseWebhook(body []byte) (*Transaction, error) {
	var tran Transaction
	if err := json.Unmarshal(body, &tran); err != nil {
		return nil, fmt.Errorf("paychangu: decode webhook: %w", err)
	}
	if tran.TxRef == "" {
		return nil, fmt.Errorf("paychangu: webhook without tx_ref")
	}
	tran.Status = normalizeStatus(tran.Status)
	return &tran, nil
}

// SetTranChannel sets the channel late confirmations are relayed on.
func (p *PayChangu) SetTranChannel(ch chan *Transaction) {
	if p.sub != nil {
		p.sub.ch = ch
	}
}

// Close unsubscribes and waits for the relay goroutine to stop, so a caller
// may close the transaction channel afterwards without racing a send.
func (p *PayChangu) Close(ctx context.Context) error {
	if p.sub != nil {
		p.sub.pn.Unsubscribe().Channels([]string{p.pnChannel}).Execute()
		p.sub.pn.Destroy()
		close(p.sub.done)
		<-p.sub.stopped
	}
	return nil
}

func normalizeStatus(s string) string {
	switch strings.ToLower(s) {
	case "success", "successful", "completed":
		return StatusSuccess
	case "failed", "cancelled", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *Transaction

	done    chan struct{}
	stopped chan struct{}
}

func (p *PayChangu) newSubscription(ctx context.Context, pnCfg *pubnub.Config) (*subscribe, error) {
	sub := &subscribe{
		pn:      pubnub.NewPubNub(pnCfg),
		lis:     pubnub.NewListener(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go sub.processSubscription(ctx)

	sub.pn.AddListener(sub.lis)
	sub.pn.Subscribe().Channels([]string{p.pnChannel}).Execute()

	return sub, nil
}

func (s *subscribe) processSubscription(ctx context.Context) {
	defer close(s.stopped)

	for {
		select {
		case st := <-s.lis.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to paychangu relay")
			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to paychangu relay")
			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from paychangu relay")
			default:
				log.Printf("paychangu relay status: %v", st.Category)
			}

		case message := <-s.lis.Message:
			raw, ok := message.Message.(string)
			if !ok {
				data, err := json.Marshal(message.Message)
				if err != nil {
					log.Printf("paychangu relay: bad message: %v", err)
					continue
				}
				raw = string(data)
			}

			var tran Transaction
			if err := json.Unmarshal([]byte(raw), &tran); err != nil {
				log.Printf("paychangu relay: decode: %v", err)
				continue
			}
			tran.Status = normalizeStatus(tran.Status)

			if s.ch != nil {
				select {
				case s.ch <- &tran:
				case <-s.done:
					return
				}
			}

		case <-s.done:
			return

		case <-ctx.Done():
			log.Println("close paychangu relay subscribe")
			return
		}
	}
}
