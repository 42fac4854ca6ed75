package types

import (
	"context"
	"errors"
)

// Beginner opens store transactions. The multirow core receives a Beginner
// explicitly instead of reaching for an ambient connection.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Store is a transactional record store.
type Store interface {
	Beginner

	// Close releases the store's resources. Close is idempotent.
	Close() error
}

// Tx is a single store transaction. After Commit or Rollback the Tx must not
// be used again.
type Tx interface {
	// Find loads the record of the named type with the given primary key.
	// Returns ErrNotFound if no such record exists.
	Find(ctx context.Context, typeName, id string) (Record, error)

	// Children returns the records of rel.Target whose rel.ForeignKey field
	// holds parent's primary key, in primary key order.
	Children(ctx context.Context, parent Record, rel Relation) ([]Record, error)

	// Save validates rec and inserts it (new records get a generated
	// primary key) or updates it. A record that fails validation is not
	// written and the returned error wraps ErrValidation.
	Save(ctx context.Context, rec Record) error

	// Delete removes rec. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, rec Record) error

	// Commit makes the transaction's mutations durable.
	Commit() error

	// Rollback discards the transaction's mutations.
	Rollback() error
}

// Store and record errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrValidation    = errors.New("record failed validation")
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrUnknownType   = errors.New("unknown record type")
	ErrInvalidSchema = errors.New("invalid schema")
	ErrStoreClosed   = errors.New("store is closed")
	ErrTxDone        = errors.New("transaction already finished")
	ErrTxAborted     = errors.New("transaction aborted")
)
