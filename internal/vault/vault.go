// Package vault is the custody vault program. It pools one asset for many
// depositors, keeps an aggregate balance and a per-depositor record, and
// moves the asset only through the ledger's checked transfer so the
// transfer hook sees every movement.
//
// The vault's token account is owned by a derived address. No private key
// exists for it; the vault proves authority by presenting the seeds
// ["vault"] and the stored bump at call time.
package vault

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/mesh-intelligence/hookvault/internal/derive"
	"github.com/mesh-intelligence/hookvault/internal/hook"
	"github.com/mesh-intelligence/hookvault/internal/ledger"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// ProgramID is the identity of the vault program.
var ProgramID = types.ProgramIdentity(types.VaultProgramName)

// Namespace tags of the records this program derives.
const (
	VaultSeed   = "vault"
	MintSeed    = "mint"
	DepositSeed = "user_deposit"
)

// Decimals of the vault's mint.
const Decimals = 9

// Program is the vault program.
type Program struct {
	ledger *ledger.Ledger
	hook   *hook.Program
}

// New returns the vault program wired to the ledger and hook it uses.
func New(l *ledger.Ledger, h *hook.Program) *Program {
	return &Program{ledger: l, hook: h}
}

// ID returns the program identity.
func (p *Program) ID() types.Identity {
	return ProgramID
}

// Address returns the vault record address, which is also the vault's
// signing authority.
func Address() (derive.Proof, types.Identity, error) {
	return derive.Find(ProgramID, []byte(VaultSeed))
}

// MintAddress returns the address of the vault's mint.
func MintAddress() (derive.Proof, types.Identity, error) {
	return derive.Find(ProgramID, []byte(MintSeed))
}

// DepositAddress returns the deposit record address for owner.
func DepositAddress(owner types.Identity) (derive.Proof, types.Identity, error) {
	return derive.Find(ProgramID, []byte(DepositSeed), owner[:])
}

// Initialize creates the vault record, the mint (with this deployment's
// hook and itself as mint authority), the vault token account, and the
// hook's configuration and descriptor. admin must sign. Replay fails
// ErrAlreadyInitialized.
func (p *Program) Initialize(rc *runtime.Context, admin types.Identity) error {
	rc = rc.Enter(ProgramID)
	if err := rc.RequireSigner(admin); err != nil {
		return err
	}

	vaultProof, vaultAddr, err := Address()
	if err != nil {
		return err
	}
	exists, err := rc.Exists(vaultAddr)
	if err != nil {
		return err
	}
	if exists {
		return types.ErrAlreadyInitialized
	}
	mintProof, mintAddr, err := MintAddress()
	if err != nil {
		return err
	}

	state := State{Admin: admin, Mint: mintAddr, Bump: vaultProof.Bump, MintBump: mintProof.Bump}
	asVault, err := rc.SignWith(vaultProof)
	if err != nil {
		return err
	}
	if err := asVault.Create(vaultAddr, state.encode()); err != nil {
		return fmt.Errorf("create vault: %w", err)
	}

	asMint, err := rc.SignWith(mintProof)
	if err != nil {
		return err
	}
	err = p.ledger.CreateMint(asMint, mintAddr, ledger.Mint{
		Authority: mintAddr,
		Decimals:  Decimals,
		Hook:      p.hook.ID(),
	})
	if err != nil {
		return err
	}
	if _, err := p.ledger.CreateAccount(rc, vaultAddr, mintAddr); err != nil {
		return fmt.Errorf("create vault token account: %w", err)
	}
	if err := p.hook.Initialize(rc, admin, mintAddr, vaultAddr); err != nil {
		return err
	}

	rc.Logger().Info("vault initialized", "admin", admin, "vault", vaultAddr, "mint", mintAddr)
	return nil
}

// Deposit moves amount of user's asset into the vault and credits user's
// deposit record. user must sign.
func (p *Program) Deposit(rc *runtime.Context, user types.Identity, amount uint64) error {
	rc = rc.Enter(ProgramID)
	if err := rc.RequireSigner(user); err != nil {
		return err
	}
	if amount == 0 {
		return types.ErrInvalidAmount
	}

	_, vaultAddr, err := Address()
	if err != nil {
		return err
	}
	state, err := loadState(rc.Reader(), vaultAddr)
	if err != nil {
		return err
	}
	if state.Balance, err = checkedAdd(state.Balance, amount); err != nil {
		return err
	}

	depProof, depAddr, err := DepositAddress(user)
	if err != nil {
		return err
	}
	dep, found, err := loadDeposit(rc.Reader(), depAddr)
	if err != nil {
		return err
	}
	if !found {
		dep = Deposit{Owner: user, Bump: depProof.Bump}
	}
	if dep.Amount, err = checkedAdd(dep.Amount, amount); err != nil {
		return err
	}

	if err := rc.Store(vaultAddr, state.encode()); err != nil {
		return err
	}
	if found {
		err = rc.Store(depAddr, dep.encode())
	} else {
		var asDeposit *runtime.Context
		if asDeposit, err = rc.SignWith(depProof); err == nil {
			err = asDeposit.Create(depAddr, dep.encode())
		}
	}
	if err != nil {
		return fmt.Errorf("write deposit record: %w", err)
	}

	if err := p.transfer(rc, state.Mint, user, vaultAddr, user, amount); err != nil {
		return err
	}
	if err := p.track(rc, state, user, dep.Amount); err != nil {
		return err
	}
	rc.Logger().Info("deposit", "user", user, "amount", amount, "deposited", dep.Amount, "vault_balance", state.Balance)
	return nil
}

// Withdraw moves amount from the vault back to user and debits user's
// deposit record. user must sign. The vault signs the transfer with its
// derived authority.
func (p *Program) Withdraw(rc *runtime.Context, user types.Identity, amount uint64) error {
	rc = rc.Enter(ProgramID)
	if err := rc.RequireSigner(user); err != nil {
		return err
	}
	if amount == 0 {
		return types.ErrInvalidAmount
	}

	_, vaultAddr, err := Address()
	if err != nil {
		return err
	}
	state, err := loadState(rc.Reader(), vaultAddr)
	if err != nil {
		return err
	}
	_, depAddr, err := DepositAddress(user)
	if err != nil {
		return err
	}
	dep, found, err := loadDeposit(rc.Reader(), depAddr)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no deposit for %s", types.ErrRecordNotFound, user)
	}
	if amount > dep.Amount {
		return types.ErrInsufficientFunds
	}
	if state.Balance, err = checkedSub(state.Balance, amount); err != nil {
		return err
	}
	if dep.Amount, err = checkedSub(dep.Amount, amount); err != nil {
		return err
	}
	if err := rc.Store(vaultAddr, state.encode()); err != nil {
		return err
	}
	if err := rc.Store(depAddr, dep.encode()); err != nil {
		return err
	}

	asVault, err := rc.SignWith(derive.Proof{Program: ProgramID, Seeds: [][]byte{[]byte(VaultSeed)}, Bump: state.Bump})
	if err != nil {
		return err
	}
	if err := p.transfer(asVault, state.Mint, vaultAddr, user, vaultAddr, amount); err != nil {
		return err
	}
	if err := p.track(rc, state, user, dep.Amount); err != nil {
		return err
	}
	rc.Logger().Info("withdraw", "user", user, "amount", amount, "deposited", dep.Amount, "vault_balance", state.Balance)
	return nil
}

// MintIssue mints amount of the vault's asset to user. admin must be the
// stored admin and mint must be the vault's mint.
func (p *Program) MintIssue(rc *runtime.Context, admin, user, mint types.Identity, amount uint64) error {
	rc = rc.Enter(ProgramID)
	_, vaultAddr, err := Address()
	if err != nil {
		return err
	}
	state, err := loadState(rc.Reader(), vaultAddr)
	if err != nil {
		return err
	}
	if admin != state.Admin || !rc.IsSigner(admin) {
		return types.ErrUnauthorized
	}
	if mint != state.Mint {
		return types.ErrInvalidMint
	}
	if amount == 0 {
		return types.ErrInvalidAmount
	}

	dst, err := p.ledger.EnsureAccount(rc, user, mint)
	if err != nil {
		return err
	}
	asMint, err := rc.SignWith(derive.Proof{Program: ProgramID, Seeds: [][]byte{[]byte(MintSeed)}, Bump: state.MintBump})
	if err != nil {
		return err
	}
	if err := p.ledger.MintTo(asMint, mint, dst, amount); err != nil {
		return err
	}
	rc.Logger().Info("mint issued", "user", user, "amount", amount)
	return nil
}

// transfer runs a checked ledger transfer between the owners' token
// accounts, attaching the accounts the mint's descriptor mandates.
func (p *Program) transfer(rc *runtime.Context, mint, fromOwner, toOwner, authority types.Identity, amount uint64) error {
	extras, err := ledger.ResolveExtras(rc.Reader(), mint, fromOwner, toOwner, amount)
	if err != nil {
		return err
	}
	src, err := ledger.AccountAddress(fromOwner, mint)
	if err != nil {
		return err
	}
	dst, err := ledger.AccountAddress(toOwner, mint)
	if err != nil {
		return err
	}
	return p.ledger.TransferChecked(rc, ledger.TransferArgs{
		Source:      src,
		Mint:        mint,
		Destination: dst,
		Authority:   authority,
		Amount:      amount,
		Decimals:    Decimals,
		Extra:       extras,
	})
}

// track mirrors user's deposit into the hook's balance snapshot.
func (p *Program) track(rc *runtime.Context, state State, user types.Identity, deposited uint64) error {
	asVault, err := rc.SignWith(derive.Proof{Program: ProgramID, Seeds: [][]byte{[]byte(VaultSeed)}, Bump: state.Bump})
	if err != nil {
		return err
	}
	return p.hook.Track(asVault, user, deposited)
}

// LoadState reads the vault record. Fails ErrNotInitialized if absent.
func LoadState(r types.Reader) (State, error) {
	_, addr, err := Address()
	if err != nil {
		return State{}, err
	}
	return loadState(r, addr)
}

// DepositOf returns user's deposited amount. Fails ErrRecordNotFound if
// user never deposited.
func DepositOf(r types.Reader, user types.Identity) (uint64, error) {
	_, addr, err := DepositAddress(user)
	if err != nil {
		return 0, err
	}
	dep, found, err := loadDeposit(r, addr)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, types.ErrRecordNotFound
	}
	return dep.Amount, nil
}

// Deposits returns every deposit record.
func Deposits(r types.Reader) ([]Deposit, error) {
	accts, err := r.Accounts()
	if err != nil {
		return nil, err
	}
	var out []Deposit
	for _, acct := range accts {
		if acct.Owner != ProgramID || len(acct.Data) != DepositSize {
			continue
		}
		dep, err := decodeDeposit(acct.Data)
		if err != nil {
			continue
		}
		out = append(out, dep)
	}
	return out, nil
}

// CheckConsistency verifies that the recorded aggregate equals both the sum
// of deposit records and the vault token account's holdings. A store with
// no vault passes.
func CheckConsistency(r types.Reader) error {
	state, err := LoadState(r)
	if errors.Is(err, types.ErrNotInitialized) {
		return nil
	}
	if err != nil {
		return err
	}
	deps, err := Deposits(r)
	if err != nil {
		return err
	}
	var sum uint64
	for _, d := range deps {
		if sum, err = checkedAdd(sum, d.Amount); err != nil {
			return fmt.Errorf("%w: deposits overflow", types.ErrInconsistentState)
		}
	}
	_, vaultAddr, err := Address()
	if err != nil {
		return err
	}
	holdings, err := ledger.Balance(r, vaultAddr, state.Mint)
	if err != nil {
		return fmt.Errorf("%w: vault token account: %v", types.ErrInconsistentState, err)
	}
	if sum != state.Balance || holdings != state.Balance {
		return fmt.Errorf("%w: aggregate %d, deposits %d, holdings %d",
			types.ErrInconsistentState, state.Balance, sum, holdings)
	}
	return nil
}

func loadState(r types.Reader, addr types.Identity) (State, error) {
	acct, err := r.Get(addr)
	if errors.Is(err, types.ErrAccountNotFound) {
		return State{}, types.ErrNotInitialized
	}
	if err != nil {
		return State{}, err
	}
	if acct.Owner != ProgramID {
		return State{}, fmt.Errorf("%w: vault not owned by program", types.ErrInvalidAccountData)
	}
	return decodeState(acct.Data)
}

func loadDeposit(r types.Reader, addr types.Identity) (Deposit, bool, error) {
	acct, err := r.Get(addr)
	if errors.Is(err, types.ErrAccountNotFound) {
		return Deposit{}, false, nil
	}
	if err != nil {
		return Deposit{}, false, err
	}
	if acct.Owner != ProgramID {
		return Deposit{}, false, fmt.Errorf("%w: deposit not owned by program", types.ErrInvalidAccountData)
	}
	dep, err := decodeDeposit(acct.Data)
	if err != nil {
		return Deposit{}, false, err
	}
	return dep, true, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, types.ErrOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, types.ErrUnderflow
	}
	return diff, nil
}
