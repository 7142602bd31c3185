package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventPhase is the temporal classification of an event against a clock.
type EventPhase string

const (
	PhaseLive     EventPhase = "live"
	PhaseUpcoming EventPhase = "upcoming"
	PhaseEnded    EventPhase = "ended"
)

type Event struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Venue        string       `json:"venue"`
	ContactPhone string       `json:"contact_phone"`
	PosterRef    string       `json:"poster_ref"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      *time.Time   `json:"end_time,omitempty"`
	Category     string       `json:"category"`
	Recurrence   string       `json:"recurrence"` // none, daily, weekly, monthly
	MultiDay     bool         `json:"multi_day"`
	OrganizerIDs []string     `json:"organizer_ids"`
	Ticketed     bool         `json:"ticketed"`
	TicketTypes  []TicketType `json:"ticket_types"`
	Likes        int          `json:"likes"`
	LikedBy      []string     `json:"liked_by"`
}

// TicketType is a priced, quantity-limited class of ticket within an event.
// Quantity is fixed at creation; Sold only ever grows, and only inside a
// ledger transaction (see services.InventoryService).
type TicketType struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Sold     int             `json:"sold"`
}

// Available returns the purchasable remainder, clamped at zero.
func (t TicketType) Available() int {
	if t.Sold >= t.Quantity {
		return 0
	}
	return t.Quantity - t.Sold
}

// TicketType returns the embedded ticket type with the given id, or false.
func (e *Event) TicketType(id string) (*TicketType, bool) {
	for i := range e.TicketTypes {
		if e.TicketTypes[i].ID == id {
			return &e.TicketTypes[i], true
		}
	}
	return nil, false
}

// Phase classifies the event against now. Events without an end time stay
// live once started.
func (e *Event) Phase(now time.Time) EventPhase {
	if e.EndTime != nil && e.EndTime.Before(now) {
		return PhaseEnded
	}
	if e.StartTime.After(now) {
		return PhaseUpcoming
	}
	return PhaseLive
}

// IsToday reports whether the event starts within now's calendar day. It is
// an independent filter, not part of the phase classification: a live event
// that started this morning and an upcoming one tonight both match.
func (e *Event) IsToday(now time.Time) bool {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !e.StartTime.Before(midnight) && e.StartTime.Before(midnight.Add(24*time.Hour))
}

// Countdown returns whole hours and the leftover minutes until start.
// Both are zero once the event has started.
func (e *Event) Countdown(now time.Time) (hours, minutes int) {
	until := e.StartTime.Sub(now)
	if until <= 0 {
		return 0, 0
	}
	hours = int(until / time.Hour)
	minutes = int(until/time.Minute) % 60
	return hours, minutes
}

// Liked reports whether userID is in the likedBy set.
func (e *Event) Liked(userID string) bool {
	for _, id := range e.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}
