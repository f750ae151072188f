// Package sqlite implements the SQLite account store for hookvault.
//
// Accounts live in one table keyed by address. Every Store.Update runs in a
// single SQLite transaction, so a failed invocation leaves no trace in the
// accounts table. The invocations table keeps a journal of every host
// invocation, committed or aborted.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// DatabaseFile is the file name created under Config.DataDir.
const DatabaseFile = "hookvault.db"

// Backend implements types.Store and types.Journal on SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens (or creates) the database under config.DataDir and applies
// the schema. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// One connection keeps every transaction serialized.
	db.SetMaxOpenConns(1)

	for _, stmt := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach closes the database. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		if err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}

// Path returns the database file path, or "" when detached.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return ""
	}
	dataDir := b.config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, DatabaseFile)
}

// Update runs fn inside BEGIN/COMMIT. Any error from fn rolls back.
func (b *Backend) Update(ctx context.Context, fn func(tx types.Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrDetached
	}

	sqlTx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&accountTx{ctx: ctx, q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn inside a transaction that is always rolled back.
func (b *Backend) View(ctx context.Context, fn func(r types.Reader) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrDetached
	}

	sqlTx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	return fn(&accountTx{ctx: ctx, q: sqlTx, readOnly: true})
}

// querier is satisfied by *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// accountTx adapts a SQL transaction to types.Tx.
type accountTx struct {
	ctx      context.Context
	q        querier
	readOnly bool
}

var errReadOnly = errors.New("write in read-only view")

func (tx *accountTx) Get(addr types.Identity) (*types.Account, error) {
	var owner, data []byte
	err := tx.q.QueryRowContext(tx.ctx, selectAccount, addr[:]).Scan(&owner, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	ownerID, err := types.IdentityFromBytes(owner)
	if err != nil {
		return nil, fmt.Errorf("scan account owner: %w", err)
	}
	return &types.Account{Address: addr, Owner: ownerID, Data: data}, nil
}

func (tx *accountTx) Accounts() ([]*types.Account, error) {
	rows, err := tx.q.QueryContext(tx.ctx, selectAccounts)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []*types.Account
	for rows.Next() {
		var addr, owner, data []byte
		if err := rows.Scan(&addr, &owner, &data); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		acct := &types.Account{Data: data}
		if acct.Address, err = types.IdentityFromBytes(addr); err != nil {
			return nil, fmt.Errorf("scan account address: %w", err)
		}
		if acct.Owner, err = types.IdentityFromBytes(owner); err != nil {
			return nil, fmt.Errorf("scan account owner: %w", err)
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (tx *accountTx) Put(acct *types.Account) error {
	if tx.readOnly {
		return errReadOnly
	}
	data := acct.Data
	if data == nil {
		data = []byte{}
	}
	_, err := tx.q.ExecContext(tx.ctx, upsertAccount,
		acct.Address[:], acct.Owner[:], data, nowString())
	if err != nil {
		return fmt.Errorf("write account: %w", err)
	}
	return nil
}

func (tx *accountTx) Delete(addr types.Identity) error {
	if tx.readOnly {
		return errReadOnly
	}
	res, err := tx.q.ExecContext(tx.ctx, deleteAccount, addr[:])
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return types.ErrAccountNotFound
	}
	return nil
}
