// Package custody is the operator surface of hookvault. It wires the host,
// the ledger, the transfer hook and the vault together over one account
// store, and runs every operation as a single host invocation.
package custody

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mesh-intelligence/hookvault/internal/hook"
	"github.com/mesh-intelligence/hookvault/internal/ledger"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/internal/sqlite"
	"github.com/mesh-intelligence/hookvault/internal/store"
	"github.com/mesh-intelligence/hookvault/internal/vault"
	"github.com/mesh-intelligence/hookvault/internal/whitelist"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Version is the hookvault release.
const Version = "v0.1.0"

// ErrNoJournal is returned by Invocations when the store keeps no history.
var ErrNoJournal = errors.New("store does not keep an invocation journal")

// Service is one hookvault deployment bound to an account store.
type Service struct {
	store  types.Store
	host   *runtime.Host
	ledger *ledger.Ledger
	hook   *hook.Program
	vault  *vault.Program
	logger *slog.Logger
}

// Open validates config, attaches the configured backend and returns a
// Service over it. Close detaches the backend.
func Open(config types.Config, logger *slog.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var s types.Store
	switch config.Backend {
	case types.BackendSQLite:
		s = sqlite.NewBackend()
	case types.BackendMemory:
		s = store.NewMemory()
	default:
		return nil, types.ErrBackendUnknown
	}
	if err := s.Attach(config); err != nil {
		return nil, fmt.Errorf("attach %s backend: %w", config.Backend, err)
	}
	svc, err := New(s, config.MembershipVariant(), logger)
	if err != nil {
		_ = s.Detach()
		return nil, err
	}
	return svc, nil
}

// New returns a Service over an attached store using the named membership
// variant.
func New(s types.Store, membership string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	members, err := whitelist.New(membership, hook.ProgramID)
	if err != nil {
		return nil, err
	}
	l := ledger.New()
	h := hook.New(members, nil)
	l.RegisterHook(hook.ProgramID, h)
	svc := &Service{
		store:  s,
		host:   runtime.NewHost(s, logger),
		ledger: l,
		hook:   h,
		vault:  vault.New(l, h),
		logger: logger,
	}
	err = svc.host.View(context.Background(), func(r types.Reader) error {
		return whitelist.CheckVariant(r, hook.ProgramID, members.Variant())
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Close detaches the underlying store.
func (s *Service) Close() error {
	return s.store.Detach()
}

// Membership returns the allowlist variant in use.
func (s *Service) Membership() string {
	return s.hook.Membership().Variant()
}

// Initialize sets up the vault, its mint and the hook. admin becomes the
// stored admin.
func (s *Service) Initialize(ctx context.Context, admin runtime.Signer) (runtime.Receipt, error) {
	return s.host.Invoke(ctx, "initialize", []runtime.Signer{admin}, func(rc *runtime.Context) error {
		return s.vault.Initialize(rc, admin.Identity())
	})
}

// AddToWhitelist approves subject.
func (s *Service) AddToWhitelist(ctx context.Context, admin runtime.Signer, subject types.Identity) (runtime.Receipt, error) {
	return s.host.Invoke(ctx, "whitelist_add", []runtime.Signer{admin}, func(rc *runtime.Context) error {
		return s.hook.AddToWhitelist(rc, admin.Identity(), subject)
	})
}

// RemoveFromWhitelist revokes subject.
func (s *Service) RemoveFromWhitelist(ctx context.Context, admin runtime.Signer, subject types.Identity) (runtime.Receipt, error) {
	return s.host.Invoke(ctx, "whitelist_remove", []runtime.Signer{admin}, func(rc *runtime.Context) error {
		return s.hook.RemoveFromWhitelist(rc, admin.Identity(), subject)
	})
}

// MintIssue issues amount of the vault's asset to user.
func (s *Service) MintIssue(ctx context.Context, admin runtime.Signer, user types.Identity, amount uint64) (runtime.Receipt, error) {
	return s.host.Invoke(ctx, "mint_issue", []runtime.Signer{admin}, func(rc *runtime.Context) error {
		state, err := vault.LoadState(rc.Reader())
		if err != nil {
			return err
		}
		return s.vault.MintIssue(rc, admin.Identity(), user, state.Mint, amount)
	})
}

// Deposit moves amount of user's asset into the vault.
func (s *Service) Deposit(ctx context.Context, user runtime.Signer, amount uint64) (runtime.Receipt, error) {
	return s.host.Invoke(ctx, "deposit", []runtime.Signer{user}, func(rc *runtime.Context) error {
		return s.vault.Deposit(rc, user.Identity(), amount)
	})
}

// Withdraw returns amount of user's deposit.
func (s *Service) Withdraw(ctx context.Context, user runtime.Signer, amount uint64) (runtime.Receipt, error) {
	return s.host.Invoke(ctx, "withdraw", []runtime.Signer{user}, func(rc *runtime.Context) error {
		return s.vault.Withdraw(rc, user.Identity(), amount)
	})
}

// Transfer moves amount of the vault's asset directly between two holders.
// The transfer hook applies exactly as it does to vault movements.
func (s *Service) Transfer(ctx context.Context, from runtime.Signer, to types.Identity, amount uint64) (runtime.Receipt, error) {
	return s.host.Invoke(ctx, "transfer", []runtime.Signer{from}, func(rc *runtime.Context) error {
		state, err := vault.LoadState(rc.Reader())
		if err != nil {
			return err
		}
		_, vaultAddr, err := vault.Address()
		if err != nil {
			return err
		}
		vaultToken, err := ledger.AccountAddress(vaultAddr, state.Mint)
		if err != nil {
			return err
		}
		if to == vaultAddr || to == vaultToken {
			return types.ErrVaultDestination
		}
		owner := from.Identity()
		src, err := ledger.AccountAddress(owner, state.Mint)
		if err != nil {
			return err
		}
		// The destination account must exist before its owner can be resolved.
		dst, err := s.ledger.EnsureAccount(rc, to, state.Mint)
		if err != nil {
			return err
		}
		extras, err := ledger.ResolveExtras(rc.Reader(), state.Mint, owner, to, amount)
		if err != nil {
			return err
		}
		return s.ledger.TransferChecked(rc, ledger.TransferArgs{
			Source:      src,
			Mint:        state.Mint,
			Destination: dst,
			Authority:   owner,
			Amount:      amount,
			Decimals:    vault.Decimals,
			Extra:       extras,
		})
	})
}

// VaultView is the read-side summary of the vault.
type VaultView struct {
	Address    types.Identity  `json:"address"`
	State      vault.State     `json:"state"`
	Holdings   uint64          `json:"holdings"`
	Deposits   []vault.Deposit `json:"deposits"`
	Membership string          `json:"membership"`
}

// Vault returns the vault record, its token holdings and every deposit.
func (s *Service) Vault(ctx context.Context) (VaultView, error) {
	var out VaultView
	err := s.host.View(ctx, func(r types.Reader) error {
		state, err := vault.LoadState(r)
		if err != nil {
			return err
		}
		_, addr, err := vault.Address()
		if err != nil {
			return err
		}
		holdings, err := ledger.Balance(r, addr, state.Mint)
		if err != nil {
			return err
		}
		deposits, err := vault.Deposits(r)
		if err != nil {
			return err
		}
		out = VaultView{Address: addr, State: state, Holdings: holdings, Deposits: deposits, Membership: s.Membership()}
		return nil
	})
	return out, err
}

// DepositOf returns user's recorded deposit.
func (s *Service) DepositOf(ctx context.Context, user types.Identity) (uint64, error) {
	var amount uint64
	err := s.host.View(ctx, func(r types.Reader) error {
		var err error
		amount, err = vault.DepositOf(r, user)
		return err
	})
	return amount, err
}

// Balance returns owner's holdings of the vault's asset. An owner without
// a token account holds zero.
func (s *Service) Balance(ctx context.Context, owner types.Identity) (uint64, error) {
	var amount uint64
	err := s.host.View(ctx, func(r types.Reader) error {
		state, err := vault.LoadState(r)
		if err != nil {
			return err
		}
		amount, err = ledger.Balance(r, owner, state.Mint)
		if errors.Is(err, types.ErrAccountNotFound) {
			amount, err = 0, nil
		}
		return err
	})
	return amount, err
}

// IsMember reports whether subject is on the allowlist.
func (s *Service) IsMember(ctx context.Context, subject types.Identity) (bool, error) {
	var ok bool
	err := s.host.View(ctx, func(r types.Reader) error {
		var err error
		ok, err = s.hook.IsMember(r, subject)
		return err
	})
	return ok, err
}

// ResolveTransfer answers the account-resolution query: the extra accounts
// a client must attach to transfer amount from one owner to another.
func (s *Service) ResolveTransfer(ctx context.Context, from, to types.Identity, amount uint64) ([]types.Identity, error) {
	var extras []types.Identity
	err := s.host.View(ctx, func(r types.Reader) error {
		state, err := vault.LoadState(r)
		if err != nil {
			return err
		}
		extras, err = ledger.ResolveExtras(r, state.Mint, from, to, amount)
		return err
	})
	return extras, err
}

// Export writes a deterministic snapshot of every account to w.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	return store.Export(ctx, s.store, w)
}

// Import replaces every account with the snapshot read from r. It is an
// operator restore path and needs no admin signature, but the imported
// vault accounting must balance or nothing is written.
func (s *Service) Import(ctx context.Context, r io.Reader) error {
	return store.Import(ctx, s.store, r, vault.CheckConsistency)
}

// Invocations returns the newest limit journal entries.
func (s *Service) Invocations(ctx context.Context, limit int) ([]types.Invocation, error) {
	j, ok := s.store.(types.Journal)
	if !ok {
		return nil, ErrNoJournal
	}
	return j.Invocations(ctx, limit)
}
