package models

import (
	"time"
)

const (
	TicketActive  = "active"
	TicketUsed    = "used"
	TicketExpired = "expired"
)

// Ticket is a purchase receipt for a single unit. One record is created per
// unit bought so every ticket carries its own scannable payload.
type Ticket struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	EventID        string     `json:"event_id"`
	EventName      string     `json:"event_name"`
	TicketTypeID   string     `json:"ticket_type_id"`
	TicketTypeName string     `json:"ticket_type_name"`
	AttemptID      string     `json:"attempt_id"`
	QRPayload      string     `json:"qr_payload"`
	SecretHash     string     `json:"secret_hash,omitempty"`
	Status         string     `json:"status"` // active, used, expired
	CreatedAt      time.Time  `json:"created_at"`
	RedeemedAt     *time.Time `json:"redeemed_at,omitempty"`
}

// EffectiveStatus derives the user-visible status at read time. Expiry is
// never written back: once the event has ended an unredeemed ticket reads as
// expired, a redeemed one stays used.
func (t Ticket) EffectiveStatus(eventEnd *time.Time, now time.Time) string {
	if t.Status == TicketUsed {
		return TicketUsed
	}
	if eventEnd != nil && eventEnd.Before(now) {
		return TicketExpired
	}
	return t.Status
}
