// Package store provides the in-memory account store and the snapshot
// format shared by every backend.
package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// journalCapacity bounds how many invocations the memory store remembers.
const journalCapacity = 1024

// Memory is a types.Store held entirely in process memory. Update clones
// the committed state, runs the callback against the clone, and swaps the
// clone in only when the callback succeeds.
type Memory struct {
	mu       sync.RWMutex
	attached bool
	accounts map[types.Identity]*types.Account
	journal  []types.Invocation
}

// NewMemory returns a detached memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Attach implements types.Store. The memory store ignores DataDir.
func (m *Memory) Attach(config types.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	m.accounts = make(map[types.Identity]*types.Account)
	m.journal = nil
	m.attached = true
	return nil
}

// Detach implements types.Store. State is dropped.
func (m *Memory) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attached = false
	m.accounts = nil
	m.journal = nil
	return nil
}

// Update implements types.Store.
func (m *Memory) Update(ctx context.Context, fn func(tx types.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.attached {
		return types.ErrDetached
	}
	tx := &memTx{accounts: cloneAccounts(m.accounts)}
	if err := fn(tx); err != nil {
		return err
	}
	m.accounts = tx.accounts
	return nil
}

// View implements types.Store.
func (m *Memory) View(ctx context.Context, fn func(r types.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.attached {
		return types.ErrDetached
	}
	return fn(&memTx{accounts: m.accounts})
}

// Record implements types.Journal. The oldest entries are evicted once the
// journal is full.
func (m *Memory) Record(_ context.Context, inv types.Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.attached {
		return types.ErrDetached
	}
	if len(m.journal) >= journalCapacity {
		m.journal = append(m.journal[:0], m.journal[1:]...)
	}
	m.journal = append(m.journal, inv)
	return nil
}

// Invocations implements types.Journal, newest first. limit <= 0 returns
// every entry.
func (m *Memory) Invocations(_ context.Context, limit int) ([]types.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.attached {
		return nil, types.ErrDetached
	}
	n := len(m.journal)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.Invocation, 0, n)
	for i := len(m.journal) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.journal[i])
	}
	return out, nil
}

type memTx struct {
	accounts map[types.Identity]*types.Account
}

func (tx *memTx) Get(addr types.Identity) (*types.Account, error) {
	acct, ok := tx.accounts[addr]
	if !ok {
		return nil, types.ErrAccountNotFound
	}
	return acct.Clone(), nil
}

func (tx *memTx) Accounts() ([]*types.Account, error) {
	out := make([]*types.Account, 0, len(tx.accounts))
	for _, acct := range tx.accounts {
		out = append(out, acct.Clone())
	}
	SortAccounts(out)
	return out, nil
}

func (tx *memTx) Put(acct *types.Account) error {
	tx.accounts[acct.Address] = acct.Clone()
	return nil
}

func (tx *memTx) Delete(addr types.Identity) error {
	if _, ok := tx.accounts[addr]; !ok {
		return types.ErrAccountNotFound
	}
	delete(tx.accounts, addr)
	return nil
}

func cloneAccounts(src map[types.Identity]*types.Account) map[types.Identity]*types.Account {
	dst := make(map[types.Identity]*types.Account, len(src))
	for k, v := range src {
		dst[k] = v.Clone()
	}
	return dst
}

// SortAccounts orders accounts by address.
func SortAccounts(accts []*types.Account) {
	sort.Slice(accts, func(i, j int) bool {
		return bytes.Compare(accts[i].Address[:], accts[j].Address[:]) < 0
	})
}
