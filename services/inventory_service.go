package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"balaka-tickets/internal/ledger"
	"balaka-tickets/internal/status"
	"balaka-tickets/models"
	"balaka-tickets/monitoring"
	"balaka-tickets/utils"
)

// InventoryService owns the "sold never exceeds quantity" invariant. Every
// mutation of a sold counter goes through one ledger transaction; the store
// retries conflicting commits, this service adds no locking of its own.
type InventoryService struct {
	store ledger.Store
	qrKey []byte
}

func NewInventoryService(store ledger.Store, qrSigningKey string) *InventoryService {
	return &InventoryService{
		store: store,
		qrKey: []byte(qrSigningKey),
	}
}

// ReserveAndSell atomically checks availability, bumps the sold counter and
// creates one ticket per unit. attemptID keys the write: a replayed commit
// for the same attempt finds its own tickets and returns ErrAlreadyCommitted
// instead of double-selling.
func (s *InventoryService) ReserveAndSell(ctx context.Context, eventID, ticketTypeID string, qty int, userID, attemptID string) ([]models.Ticket, error) {
	if qty < 1 {
		return nil, fmt.Errorf("inventory: quantity must be at least 1, got %d", qty)
	}

	// Ticket identities, secrets and hashes are prepared outside the
	// transaction so a conflict retry re-stages identical writes instead of
	// re-running bcrypt.
	prepared, err := s.prepareTickets(eventID, ticketTypeID, qty, userID, attemptID)
	if err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(tx ledger.Txn) error {
		var probe models.Ticket
		if err := tx.Get(ledger.CollectionTickets, prepared[0].ID, &probe); err == nil {
			return status.ErrAlreadyCommitted
		}

		var event models.Event
		if err := tx.Get(ledger.CollectionEvents, eventID, &event); err != nil {
			return err
		}

		tt, ok := event.TicketType(ticketTypeID)
		if !ok {
			return status.ErrNotFound
		}

		if tt.Available() < qty {
			return status.ErrInsufficientInventory
		}
		tt.Sold += qty

		for i := range prepared {
			prepared[i].EventName = event.Title
			prepared[i].TicketTypeName = tt.Name
			if err := tx.Set(ledger.CollectionTickets, prepared[i].ID, prepared[i]); err != nil {
				return err
			}
		}

		return tx.Set(ledger.CollectionEvents, eventID, event)
	})

	if err != nil {
		if errors.Is(err, status.ErrTransactionAborted) {
			monitoring.TrackInventoryConflict(eventID)
		}
		return nil, err
	}

	monitoring.TrackTicketsSold(eventID, ticketTypeID, qty)
	return prepared, nil
}

func (s *InventoryService) prepareTickets(eventID, ticketTypeID string, qty int, userID, attemptID string) ([]models.Ticket, error) {
	now := time.Now()

	tickets := make([]models.Ticket, qty)
	for i := range tickets {
		id := fmt.Sprintf("%s-%d", attemptID, i+1)

		secret, err := utils.GenerateCode(8)
		if err != nil {
			return nil, err
		}
		hash, err := utils.HashTicketSecret(secret)
		if err != nil {
			return nil, err
		}

		tickets[i] = models.Ticket{
			ID:           id,
			UserID:       userID,
			EventID:      eventID,
			TicketTypeID: ticketTypeID,
			AttemptID:    attemptID,
			QRPayload:    utils.SignQRPayload(id, secret, s.qrKey),
			SecretHash:   hash,
			Status:       models.TicketActive,
			CreatedAt:    now,
		}
	}
	return tickets, nil
}

// RedeemTicket flips a ticket active → used at the gate. The presented
// secret comes from the scanned QR payload and is checked against the
// stored bcrypt hash; an ended event rejects the scan outright.
func (s *InventoryService) RedeemTicket(ctx context.Context, ticketID, secret string) (*models.Ticket, error) {
	var redeemed models.Ticket

	err := s.store.RunTransaction(ctx, func(tx ledger.Txn) error {
		var ticket models.Ticket
		if err := tx.Get(ledger.CollectionTickets, ticketID, &ticket); err != nil {
			return err
		}

		if ticket.Status == models.TicketUsed {
			return status.ErrTicketAlreadyUsed
		}

		var event models.Event
		if err := tx.Get(ledger.CollectionEvents, ticket.EventID, &event); err != nil {
			return err
		}
		if event.EndTime != nil && event.EndTime.Before(time.Now()) {
			return status.ErrTicketExpired
		}

		if !utils.CompareTicketSecret(ticket.SecretHash, secret) {
			return status.ErrBadTicketSecret
		}

		now := time.Now()
		ticket.Status = models.TicketUsed
		ticket.RedeemedAt = &now
		redeemed = ticket

		return tx.Set(ledger.CollectionTickets, ticketID, ticket)
	})
	if err != nil {
		return nil, err
	}
	return &redeemed, nil
}

// Availability reads the current availability for one ticket type outside
// any transaction. Callers wanting a guarantee must go through
// ReserveAndSell; this is a display value.
func (s *InventoryService) Availability(ctx context.Context, eventID, ticketTypeID string) (int, error) {
	var event models.Event
	if err := s.store.Get(ctx, ledger.CollectionEvents, eventID, &event); err != nil {
		return 0, err
	}
	tt, ok := event.TicketType(ticketTypeID)
	if !ok {
		return 0, status.ErrNotFound
	}
	return tt.Available(), nil
}
