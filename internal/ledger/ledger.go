// Package ledger is the narrow seam to the transactional document store.
// All shared mutable state (sold counters, like sets) is only ever touched
// through RunTransaction; nothing in the services layer holds locks.
package ledger

import (
	"context"
)

const (
	CollectionEvents  = "events"
	CollectionUsers   = "users"
	CollectionTickets = "tickets"
)

// Txn is the view of the store inside a transaction. Reads observe a
// consistent snapshot; writes stage until commit.
type Txn interface {
	// Get decodes the document into v, or returns status.ErrNotFound.
	Get(collection, id string, v any) error

	// Set stages a full-document write, creating the document if missing.
	Set(collection, id string, v any) error
}

// Document is a raw listing entry.
type Document struct {
	ID   string
	Data []byte
}

// Store is the ledger collaborator. RunTransaction must guarantee atomic
// commit-or-abort; implementations retry conflicting commits transparently
// and return status.ErrTransactionAborted only once retries are exhausted.
type Store interface {
	Get(ctx context.Context, collection, id string, v any) error
	List(ctx context.Context, collection string) ([]Document, error)

	// ListBy lists the documents whose top-level fields equal every value
	// in filter. Backends push the filter into the database where they can.
	ListBy(ctx context.Context, collection string, filter map[string]any) ([]Document, error)

	RunTransaction(ctx context.Context, fn func(tx Txn) error) error

	// Watch returns a channel that receives a signal after every committed
	// change to the collection, plus a cancel func. Signals are coalesced;
	// subscribers re-read the collection on each one.
	Watch(collection string) (<-chan struct{}, func())
}
