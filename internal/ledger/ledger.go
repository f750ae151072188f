// Package ledger is a minimal asset ledger: mints, token accounts, minting
// and a checked transfer that calls a mint's transfer hook before the
// invocation commits. It models only what the vault and hook need.
package ledger

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"
	"sync"

	"github.com/mesh-intelligence/hookvault/internal/derive"
	"github.com/mesh-intelligence/hookvault/internal/resolve"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// ProgramID is the ledger program identity. It owns every mint and token
// account.
var ProgramID = types.ProgramIdentity(types.LedgerProgramName)

// Hook is a transfer hook. The ledger calls Execute mid-transfer with
//
//	[source, mint, destination, authority, descriptor, extras...]
//
// after the balance has moved and while both token accounts are marked
// transferring. A non-nil error aborts the transfer.
type Hook interface {
	Execute(rc *runtime.Context, accounts []types.Identity, amount uint64) error
}

// Ledger executes ledger instructions.
type Ledger struct {
	mu    sync.RWMutex
	hooks map[types.Identity]Hook
}

// New returns a ledger with no hooks registered.
func New() *Ledger {
	return &Ledger{hooks: make(map[types.Identity]Hook)}
}

// RegisterHook selects the implementation called for every mint whose hook
// program is program.
func (l *Ledger) RegisterHook(program types.Identity, h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks[program] = h
}

func (l *Ledger) hook(program types.Identity) (Hook, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.hooks[program]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrHookNotRegistered, program)
	}
	return h, nil
}

// AccountAddress returns the token account address for owner and mint.
func AccountAddress(owner, mint types.Identity) (types.Identity, error) {
	_, addr, err := derive.Find(ProgramID, owner[:], mint[:])
	return addr, err
}

// CreateMint creates a mint at addr. addr must sign.
func (l *Ledger) CreateMint(rc *runtime.Context, addr types.Identity, m Mint) error {
	rc = rc.Enter(ProgramID)
	m.Supply = 0
	if err := rc.Create(addr, m.encode()); err != nil {
		return fmt.Errorf("create mint: %w", err)
	}
	rc.Logger().Debug("mint created", "mint", addr, "decimals", m.Decimals, "hook", m.Hook)
	return nil
}

// CreateAccount creates the token account for owner and mint.
func (l *Ledger) CreateAccount(rc *runtime.Context, owner, mint types.Identity) (types.Identity, error) {
	rc = rc.Enter(ProgramID)
	if _, err := loadMint(rc, mint); err != nil {
		return types.ZeroIdentity, err
	}
	proof, addr, err := derive.Find(ProgramID, owner[:], mint[:])
	if err != nil {
		return types.ZeroIdentity, err
	}
	signed, err := rc.SignWith(proof)
	if err != nil {
		return types.ZeroIdentity, err
	}
	acct := TokenAccount{Mint: mint, Owner: owner}
	if err := signed.Create(addr, acct.encode()); err != nil {
		return types.ZeroIdentity, fmt.Errorf("create token account: %w", err)
	}
	return addr, nil
}

// EnsureAccount returns the token account for owner and mint, creating it
// if needed.
func (l *Ledger) EnsureAccount(rc *runtime.Context, owner, mint types.Identity) (types.Identity, error) {
	addr, err := AccountAddress(owner, mint)
	if err != nil {
		return types.ZeroIdentity, err
	}
	exists, err := rc.Exists(addr)
	if err != nil {
		return types.ZeroIdentity, err
	}
	if exists {
		return addr, nil
	}
	return l.CreateAccount(rc, owner, mint)
}

// MintTo issues amount new units into destination. The mint authority
// must sign.
func (l *Ledger) MintTo(rc *runtime.Context, mint, destination types.Identity, amount uint64) error {
	rc = rc.Enter(ProgramID)
	m, err := loadMint(rc, mint)
	if err != nil {
		return err
	}
	if err := rc.RequireSigner(m.Authority); err != nil {
		return fmt.Errorf("mint to: %w", err)
	}
	dst, err := loadTokenAccount(rc, destination)
	if err != nil {
		return err
	}
	if dst.Mint != mint {
		return types.ErrMintMismatch
	}
	if m.Supply, err = checkedAdd(m.Supply, amount); err != nil {
		return err
	}
	if dst.Amount, err = checkedAdd(dst.Amount, amount); err != nil {
		return err
	}
	if err := rc.Store(mint, m.encode()); err != nil {
		return err
	}
	return rc.Store(destination, dst.encode())
}

// TransferArgs are the inputs of TransferChecked.
type TransferArgs struct {
	Source      types.Identity
	Mint        types.Identity
	Destination types.Identity
	Authority   types.Identity
	Amount      uint64
	Decimals    uint8
	// Extra are the accounts the mint's descriptor mandates, in order.
	Extra []types.Identity
}

// TransferChecked moves Amount from Source to Destination. If the mint has
// a transfer hook the attached extras must match the descriptor exactly,
// and the hook runs before the invocation can commit.
func (l *Ledger) TransferChecked(rc *runtime.Context, args TransferArgs) error {
	rc = rc.Enter(ProgramID)

	m, err := loadMint(rc, args.Mint)
	if err != nil {
		return err
	}
	if m.Decimals != args.Decimals {
		return types.ErrDecimalsMismatch
	}
	src, err := loadTokenAccount(rc, args.Source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dst, err := loadTokenAccount(rc, args.Destination)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if src.Mint != args.Mint || dst.Mint != args.Mint {
		return types.ErrMintMismatch
	}
	if src.Owner != args.Authority {
		return types.ErrOwnerMismatch
	}
	if err := rc.RequireSigner(args.Authority); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if src.Amount < args.Amount {
		return types.ErrInsufficientBalance
	}

	if args.Source != args.Destination {
		src.Amount -= args.Amount
		if dst.Amount, err = checkedAdd(dst.Amount, args.Amount); err != nil {
			return err
		}
	} else {
		dst = src
	}

	if m.Hook.IsZero() {
		return l.storePair(rc, args, src, dst)
	}

	h, err := l.hook(m.Hook)
	if err != nil {
		return err
	}
	extras, err := resolve.ForTransfer(rc.Reader(), m.Hook, args.Mint, args.Source, args.Destination, args.Authority, args.Amount)
	if err != nil {
		return fmt.Errorf("resolve extra accounts: %w", err)
	}
	if !slices.Equal(extras, args.Extra) {
		return types.ErrAccountListMismatch
	}
	_, descriptor, err := resolve.DescriptorAddress(m.Hook, args.Mint)
	if err != nil {
		return err
	}

	src.Transferring, dst.Transferring = true, true
	if err := l.storePair(rc, args, src, dst); err != nil {
		return err
	}

	accounts := append([]types.Identity{args.Source, args.Mint, args.Destination, args.Authority, descriptor}, extras...)
	hookErr := h.Execute(rc, accounts, args.Amount)

	src.Transferring, dst.Transferring = false, false
	if err := l.storePair(rc, args, src, dst); err != nil {
		return errors.Join(hookErr, err)
	}
	if hookErr != nil {
		return hookErr
	}
	rc.Logger().Debug("transfer", "source", args.Source, "destination", args.Destination, "amount", args.Amount)
	return nil
}

func (l *Ledger) storePair(rc *runtime.Context, args TransferArgs, src, dst TokenAccount) error {
	if args.Source == args.Destination {
		return rc.Store(args.Source, dst.encode())
	}
	if err := rc.Store(args.Source, src.encode()); err != nil {
		return err
	}
	return rc.Store(args.Destination, dst.encode())
}

// ResolveExtras answers the account-resolution query for a transfer of
// mint from sourceOwner to destinationOwner.
func ResolveExtras(r types.Reader, mint, sourceOwner, destinationOwner types.Identity, amount uint64) ([]types.Identity, error) {
	acct, err := r.Get(mint)
	if err != nil {
		return nil, fmt.Errorf("load mint: %w", err)
	}
	m, err := DecodeMint(acct.Data)
	if err != nil {
		return nil, err
	}
	if m.Hook.IsZero() {
		return nil, nil
	}
	src, err := AccountAddress(sourceOwner, mint)
	if err != nil {
		return nil, err
	}
	dst, err := AccountAddress(destinationOwner, mint)
	if err != nil {
		return nil, err
	}
	return resolve.ForTransfer(r, m.Hook, mint, src, dst, sourceOwner, amount)
}

// Balance returns owner's balance of mint.
func Balance(r types.Reader, owner, mint types.Identity) (uint64, error) {
	addr, err := AccountAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	acct, err := r.Get(addr)
	if err != nil {
		return 0, err
	}
	a, err := DecodeTokenAccount(acct.Data)
	if err != nil {
		return 0, err
	}
	return a.Amount, nil
}

// LoadMint reads the mint at addr.
func LoadMint(r types.Reader, addr types.Identity) (Mint, error) {
	acct, err := r.Get(addr)
	if err != nil {
		return Mint{}, fmt.Errorf("load mint: %w", err)
	}
	if acct.Owner != ProgramID {
		return Mint{}, fmt.Errorf("%w: mint not owned by ledger", types.ErrInvalidAccountData)
	}
	return DecodeMint(acct.Data)
}

// LoadTokenAccount reads the token account at addr.
func LoadTokenAccount(r types.Reader, addr types.Identity) (TokenAccount, error) {
	acct, err := r.Get(addr)
	if err != nil {
		return TokenAccount{}, fmt.Errorf("load token account: %w", err)
	}
	if acct.Owner != ProgramID {
		return TokenAccount{}, fmt.Errorf("%w: token account not owned by ledger", types.ErrInvalidAccountData)
	}
	return DecodeTokenAccount(acct.Data)
}

func loadMint(rc *runtime.Context, addr types.Identity) (Mint, error) {
	return LoadMint(rc.Reader(), addr)
}

func loadTokenAccount(rc *runtime.Context, addr types.Identity) (TokenAccount, error) {
	return LoadTokenAccount(rc.Reader(), addr)
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, types.ErrOverflow
	}
	return sum, nil
}
