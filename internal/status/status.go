package status

import "errors"

var (
	// ErrNotFound is returned when an event, ticket type, ticket or user
	// document does not exist in the ledger.
	ErrNotFound = errors.New("ledger: document not found")

	// ErrInsufficientInventory is returned by ReserveAndSell when the
	// requested quantity exceeds the remaining availability. Before payment
	// it is recoverable; during commit it maps to sold_out_after_payment.
	ErrInsufficientInventory = errors.New("inventory: insufficient inventory")

	// ErrTransactionAborted is returned when the ledger gave up retrying a
	// conflicting transaction. Safe to retry a bounded number of times.
	ErrTransactionAborted = errors.New("ledger: transaction aborted")

	ErrCheckoutRequestFailed = errors.New("payment: checkout request failed")
	ErrPaymentFailed         = errors.New("payment: payment failed")
	ErrPaymentTimeout        = errors.New("payment: confirmation timed out")

	// ErrPriceMismatch is returned when the client-supplied total disagrees
	// with the ledger price at quote time.
	ErrPriceMismatch = errors.New("purchase: price mismatch")

	// ErrAlreadyCommitted is returned when a second confirmation arrives for
	// an attempt whose inventory decrement already happened.
	ErrAlreadyCommitted = errors.New("purchase: attempt already committed")

	ErrTicketAlreadyUsed = errors.New("ticket: already redeemed")
	ErrTicketExpired     = errors.New("ticket: event has ended")
	ErrBadTicketSecret   = errors.New("ticket: secret does not match")
)
