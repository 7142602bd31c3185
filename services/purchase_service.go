package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"balaka-tickets/internal/gateway"
	"balaka-tickets/internal/ledger"
	"balaka-tickets/internal/status"
	"balaka-tickets/models"
	"balaka-tickets/monitoring"
	"balaka-tickets/utils"
)

// Currency is the only settlement currency the district platform sells in.
const Currency = "MWK"

// PurchaseService sequences quote → checkout → confirmation → commit.
// Inventory is only decremented in the commit step, after the gateway
// confirms payment, so an abandoned checkout never holds stock. The commit
// is keyed by the attempt id: the poll loop and a late webhook racing each
// other still decrement exactly once.
type PurchaseService struct {
	store     ledger.Store
	Redis     *redis.Client
	inventory *InventoryService
	gw        gateway.Gateway
	breaker   *utils.CircuitBreaker
	publisher Publisher

	pollInterval    time.Duration
	maxPollAttempts int
	sessionTTL      time.Duration
}

func NewPurchaseService(store ledger.Store, redisClient *redis.Client, inventory *InventoryService, gw gateway.Gateway, publisher Publisher, pollInterval time.Duration, maxPollAttempts int, sessionTTL time.Duration) *PurchaseService {
	return &PurchaseService{
		store:           store,
		Redis:           redisClient,
		inventory:       inventory,
		gw:              gw,
		breaker:         utils.NewCircuitBreaker("payment-gateway"),
		publisher:       publisher,
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
		sessionTTL:      sessionTTL,
	}
}

// Purchase starts one purchase attempt and returns the channel its state
// machine emits on. The channel closes after a terminal state.
func (s *PurchaseService) Purchase(ctx context.Context, req models.PurchaseRequest) (<-chan models.PurchaseState, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("purchase: quantity must be at least 1, got %d", req.Quantity)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("purchase: missing user id")
	}
	if req.AttemptID == "" {
		id, err := utils.GenerateAttemptID()
		if err != nil {
			return nil, err
		}
		req.AttemptID = id
	}
	if req.Network == "" {
		req.Network = models.NetworkUnknown
	}

	ch := make(chan models.PurchaseState, 8)
	go s.run(ctx, req, ch)
	return ch, nil
}

func (s *PurchaseService) run(ctx context.Context, req models.PurchaseRequest, ch chan models.PurchaseState) {
	defer close(ch)
	started := time.Now()

	// Quoting: the ledger price is authoritative, the client total is only
	// checked, never trusted.
	total, err := s.quote(ctx, req)
	if err != nil {
		s.fail(ctx, req, ch, total, reasonFor(err))
		return
	}
	s.emit(ctx, req, ch, models.PurchaseState{
		AttemptID: req.AttemptID,
		Stage:     models.StageQuoting,
		Total:     total,
	})

	if err := s.saveSession(ctx, req, total); err != nil {
		slog.Error("purchase: save session", "attempt", req.AttemptID, "error", err)
	}

	// AwaitingCheckout
	s.emit(ctx, req, ch, models.PurchaseState{
		AttemptID: req.AttemptID,
		Stage:     models.StageAwaitingCheckout,
		Total:     total,
	})

	handle, err := s.requestCheckout(ctx, req, total)
	if err != nil {
		s.fail(ctx, req, ch, total, models.ReasonCheckoutFailed)
		return
	}

	// AwaitingConfirmation: bounded poll, then give up. A payment that
	// settles after the bound is reconciled through HandleConfirmation.
	s.emit(ctx, req, ch, models.PurchaseState{
		AttemptID:   req.AttemptID,
		Stage:       models.StageAwaitingConfirmation,
		Total:       total,
		CheckoutURL: handle.CheckoutURL,
	})

	outcome := s.awaitConfirmation(ctx, req.AttemptID)
	switch outcome {
	case gateway.StatusSuccess:
		// fall through to commit
	case gateway.StatusFailed:
		monitoring.TrackConfirmationLatency("failed", time.Since(started))
		s.fail(ctx, req, ch, total, models.ReasonPaymentFailed)
		return
	default:
		monitoring.TrackConfirmationLatency("timeout", time.Since(started))
		s.fail(ctx, req, ch, total, models.ReasonTimeout)
		return
	}
	monitoring.TrackConfirmationLatency("success", time.Since(started))

	// Committing
	s.emit(ctx, req, ch, models.PurchaseState{
		AttemptID: req.AttemptID,
		Stage:     models.StageCommitting,
		Total:     total,
	})

	ticketIDs, err := s.Commit(ctx, req)
	switch {
	case err == nil:
		monitoring.TrackPurchaseOutcome(req.EventID, "completed")
	case errors.Is(err, status.ErrAlreadyCommitted):
		// A webhook confirmation won the commit race: the attempt is
		// completed, not failed, and Commit already handed back the
		// derivable ticket ids. The winner recorded the outcome.
	case errors.Is(err, status.ErrInsufficientInventory):
		// Money has changed hands; this must reach support, never a
		// silent retry.
		s.fail(ctx, req, ch, total, models.ReasonSoldOutAfterPayment)
		return
	default:
		s.fail(ctx, req, ch, total, reasonFor(err))
		return
	}

	s.setSessionStatus(ctx, req.AttemptID, string(models.StageCompleted), "")
	s.emit(ctx, req, ch, models.PurchaseState{
		AttemptID: req.AttemptID,
		Stage:     models.StageCompleted,
		Total:     total,
		TicketIDs: ticketIDs,
	})
}

func (s *PurchaseService) quote(ctx context.Context, req models.PurchaseRequest) (decimal.Decimal, error) {
	var event models.Event
	if err := s.store.Get(ctx, ledger.CollectionEvents, req.EventID, &event); err != nil {
		return decimal.Zero, err
	}
	tt, ok := event.TicketType(req.TicketTypeID)
	if !ok {
		return decimal.Zero, status.ErrNotFound
	}

	total := tt.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
	if !req.ExpectedTotal.IsZero() && !req.ExpectedTotal.Equal(total) {
		return total, status.ErrPriceMismatch
	}
	return total, nil
}

func (s *PurchaseService) requestCheckout(ctx context.Context, req models.PurchaseRequest, total decimal.Decimal) (*gateway.CheckoutHandle, error) {
	var handle *gateway.CheckoutHandle
	err := s.breaker.Execute(ctx, func() error {
		var err error
		handle, err = s.gw.RequestCheckout(ctx, &gateway.CheckoutRequest{
			AttemptID:   req.AttemptID,
			ItemID:      req.ItemID(),
			Amount:      total,
			Currency:    Currency,
			PayerPhone:  req.PayerPhone,
			Description: fmt.Sprintf("%d ticket(s)", req.Quantity),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrCheckoutRequestFailed, err)
	}
	return handle, nil
}

// awaitConfirmation polls the gateway at the configured interval up to the
// configured bound. It returns StatusPending when the bound is exhausted;
// no further poll is issued after that, and none after a terminal status.
func (s *PurchaseService) awaitConfirmation(ctx context.Context, attemptID string) gateway.PaymentStatus {
	for attempt := 0; attempt < s.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return gateway.StatusPending
		case <-time.After(s.pollInterval):
		}

		var tx *gateway.TransactionStatus
		err := s.breaker.Execute(ctx, func() error {
			var err error
			tx, err = s.gw.CheckTransaction(ctx, attemptID)
			return err
		})
		if err != nil {
			slog.Warn("purchase: status poll failed", "attempt_id", attemptID, "error", err)
			continue
		}

		switch tx.Status {
		case gateway.StatusSuccess:
			if tx.Network != "" {
				s.setSessionNetwork(ctx, attemptID, tx.Network)
			}
			return gateway.StatusSuccess
		case gateway.StatusFailed:
			return gateway.StatusFailed
		}
	}
	return gateway.StatusPending
}

// Commit performs the inventory decrement exactly once per attempt. The
// Redis claim is the first gate; the ledger-level attempt probe inside
// ReserveAndSell is the backstop if the claim expired.
func (s *PurchaseService) Commit(ctx context.Context, req models.PurchaseRequest) ([]string, error) {
	claimKey := commitClaimKey(req.AttemptID)
	claimed, err := s.Redis.SetNX(ctx, claimKey, "1", 24*time.Hour).Result()
	if err != nil {
		return nil, fmt.Errorf("purchase: claim commit: %w", err)
	}

	if !claimed {
		// Another confirmation path already committed this attempt; the
		// ticket ids are derivable from the attempt id.
		return ticketIDsFor(req.AttemptID, req.Quantity), status.ErrAlreadyCommitted
	}

	tickets, err := s.inventory.ReserveAndSell(ctx, req.EventID, req.TicketTypeID, req.Quantity, req.UserID, req.AttemptID)
	if err != nil {
		if errors.Is(err, status.ErrAlreadyCommitted) {
			return ticketIDsFor(req.AttemptID, req.Quantity), err
		}
		// Leave the attempt re-committable: a sold-out-after-payment case
		// is reconciled manually and may retry after a quantity bump.
		s.Redis.Del(ctx, claimKey)
		return nil, err
	}

	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids, nil
}

// HandleConfirmation is the entry point for out-of-band confirmations (the
// webhook endpoint and the gateway relay channel). It is idempotent against
// the poll loop committing first.
func (s *PurchaseService) HandleConfirmation(ctx context.Context, tx *gateway.TransactionStatus) error {
	if tx.Status != gateway.StatusSuccess {
		return nil
	}

	req, err := s.loadSession(ctx, tx.PaymentID)
	if err != nil {
		return err
	}
	if tx.Network != "" {
		s.setSessionNetwork(ctx, tx.PaymentID, tx.Network)
	}

	ticketIDs, err := s.Commit(ctx, *req)
	if errors.Is(err, status.ErrAlreadyCommitted) {
		return nil
	}
	if err != nil {
		if errors.Is(err, status.ErrInsufficientInventory) {
			s.setSessionStatus(ctx, tx.PaymentID, string(models.StageFailed), models.ReasonSoldOutAfterPayment)
			monitoring.TrackPurchaseOutcome(req.EventID, models.ReasonSoldOutAfterPayment)
		}
		return err
	}

	s.setSessionStatus(ctx, tx.PaymentID, string(models.StageCompleted), "")
	monitoring.TrackPurchaseOutcome(req.EventID, "completed")

	if s.publisher != nil {
		s.publisher.Publish(UserChannel(req.UserID), map[string]any{
			"type":       "purchase_completed",
			"attempt_id": req.AttemptID,
			"ticket_ids": ticketIDs,
		})
	}
	return nil
}

// GetSession returns the stored purchase session for a status endpoint.
func (s *PurchaseService) GetSession(ctx context.Context, attemptID string) (map[string]string, error) {
	data, err := s.Redis.HGetAll(ctx, sessionKey(attemptID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, status.ErrNotFound
	}
	return data, nil
}

func (s *PurchaseService) loadSession(ctx context.Context, attemptID string) (*models.PurchaseRequest, error) {
	data, err := s.GetSession(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	qty, err := strconv.Atoi(data["quantity"])
	if err != nil {
		return nil, fmt.Errorf("purchase: corrupt session %s: %w", attemptID, err)
	}

	return &models.PurchaseRequest{
		AttemptID:    attemptID,
		EventID:      data["event_id"],
		TicketTypeID: data["ticket_type_id"],
		Quantity:     qty,
		UserID:       data["user_id"],
		PayerPhone:   data["payer_phone"],
		Network:      data["network"],
	}, nil
}

// saveSession writes the session hash field by field in a fixed order.
func (s *PurchaseService) saveSession(ctx context.Context, req models.PurchaseRequest, total decimal.Decimal) error {
	key := sessionKey(req.AttemptID)

	fields := []struct {
		name  string
		value any
	}{
		{"attempt_id", req.AttemptID},
		{"user_id", req.UserID},
		{"event_id", req.EventID},
		{"ticket_type_id", req.TicketTypeID},
		{"quantity", req.Quantity},
		{"total", total.String()},
		{"network", req.Network},
		{"payer_phone", req.PayerPhone},
		{"status", string(models.StageQuoting)},
		{"created_at", time.Now().Unix()},
	}
	for _, f := range fields {
		if err := s.Redis.HSet(ctx, key, f.name, f.value).Err(); err != nil {
			return err
		}
	}

	return s.Redis.Expire(ctx, key, s.sessionTTL).Err()
}

func (s *PurchaseService) setSessionStatus(ctx context.Context, attemptID, stage, reason string) {
	key := sessionKey(attemptID)
	if err := s.Redis.HSet(ctx, key, "status", stage).Err(); err != nil {
		slog.Warn("purchase: session status update failed", "attempt_id", attemptID, "error", err)
		return
	}
	if reason != "" {
		if err := s.Redis.HSet(ctx, key, "reason", reason).Err(); err != nil {
			slog.Warn("purchase: session reason update failed", "attempt_id", attemptID, "error", err)
		}
	}
}

func (s *PurchaseService) setSessionNetwork(ctx context.Context, attemptID, network string) {
	if err := s.Redis.HSet(ctx, sessionKey(attemptID), "network", network).Err(); err != nil {
		slog.Warn("purchase: session network update failed", "attempt_id", attemptID, "error", err)
	}
}

func (s *PurchaseService) fail(ctx context.Context, req models.PurchaseRequest, ch chan models.PurchaseState, total decimal.Decimal, reason string) {
	s.setSessionStatus(ctx, req.AttemptID, string(models.StageFailed), reason)
	monitoring.TrackPurchaseOutcome(req.EventID, reason)
	s.emit(ctx, req, ch, models.PurchaseState{
		AttemptID: req.AttemptID,
		Stage:     models.StageFailed,
		Reason:    reason,
		Total:     total,
	})
}

func (s *PurchaseService) emit(ctx context.Context, req models.PurchaseRequest, ch chan models.PurchaseState, state models.PurchaseState) {
	state.At = time.Now()

	select {
	case ch <- state:
	case <-ctx.Done():
	}

	if s.publisher != nil {
		s.publisher.Publish(UserChannel(req.UserID), map[string]any{
			"type":       "purchase_state",
			"attempt_id": state.AttemptID,
			"stage":      string(state.Stage),
			"reason":     state.Reason,
		})
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return models.ReasonNotFound
	case errors.Is(err, status.ErrPriceMismatch):
		return models.ReasonPriceMismatch
	case errors.Is(err, status.ErrInsufficientInventory):
		return models.ReasonSoldOutAfterPayment
	case errors.Is(err, status.ErrCheckoutRequestFailed):
		return models.ReasonCheckoutFailed
	default:
		return models.ReasonPaymentFailed
	}
}

func ticketIDsFor(attemptID string, qty int) []string {
	ids := make([]string, qty)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", attemptID, i+1)
	}
	return ids
}

func sessionKey(attemptID string) string {
	return fmt.Sprintf("purchase:%s", attemptID)
}

func commitClaimKey(attemptID string) string {
	return fmt.Sprintf("purchase:commit:%s", attemptID)
}
