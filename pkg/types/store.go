package types

import (
	"context"
	"errors"
	"time"
)

// Reader is a read-only view of persisted accounts.
type Reader interface {
	// Get returns a copy of the account at addr.
	// Returns ErrAccountNotFound if no account exists there.
	Get(addr Identity) (*Account, error)

	// Accounts returns copies of every account ordered by address.
	Accounts() ([]*Account, error)
}

// Tx is a read-write view inside one Store.Update call. Writes become
// visible to other callers only when the enclosing Update returns nil.
type Tx interface {
	Reader

	// Put creates or replaces the account at acct.Address.
	Put(acct *Account) error

	// Delete removes the account at addr.
	// Returns ErrAccountNotFound if no account exists there.
	Delete(addr Identity) error
}

// Store is the backend-agnostic account store the host executes against.
// Callers attach to a backend, run serialized all-or-nothing updates, and
// detach when done.
type Store interface {
	// Attach connects the store to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	// After Detach, Update and View return ErrDetached.
	Detach() error

	// Update runs fn inside one transaction. If fn returns an error every
	// write it made is discarded and the error is returned unchanged.
	// Concurrent Update calls are serialized.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(r Reader) error) error
}

// Invocation statuses recorded in a Journal.
const (
	InvocationCommitted = "committed"
	InvocationAborted   = "aborted"
)

// Invocation is the journal entry for one host invocation.
type Invocation struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Signers []Identity `json:"signers"`
	Status  string     `json:"status"`
	Error   string     `json:"error,omitempty"`
	At      time.Time  `json:"at"`
}

// Journal is implemented by stores that keep a history of invocations.
// Entries are recorded after the invocation's transaction has committed or
// rolled back, so aborted invocations are kept too.
type Journal interface {
	Record(ctx context.Context, inv Invocation) error
	Invocations(ctx context.Context, limit int) ([]Invocation, error)
}

// Store lifecycle errors.
var (
	ErrDetached        = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrAccountNotFound = errors.New("account not found")
)
