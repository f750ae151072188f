// Package hook is the transfer-hook program. The ledger calls Execute in
// the middle of every transfer of a mint that names this program; Execute
// checks the transfer is genuine and asks its Policy whether to allow it.
// The program also owns the configuration, descriptor and access-control
// records.
package hook

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/hookvault/internal/ledger"
	"github.com/mesh-intelligence/hookvault/internal/resolve"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/internal/whitelist"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// ProgramID is the identity of the hook program.
var ProgramID = types.ProgramIdentity(types.HookProgramName)

var _ ledger.Hook = (*Program)(nil)

// Program is the transfer-hook program.
type Program struct {
	members whitelist.Membership
	policy  Policy
}

// New returns the hook program. A nil policy selects WhitelistPolicy.
func New(members whitelist.Membership, policy Policy) *Program {
	if policy == nil {
		policy = WhitelistPolicy{}
	}
	return &Program{members: members, policy: policy}
}

// ID returns the program identity.
func (p *Program) ID() types.Identity {
	return ProgramID
}

// Membership returns the access-control store variant.
func (p *Program) Membership() whitelist.Membership {
	return p.members
}

// Rules returns the descriptor rules for the configured membership.
func (p *Program) Rules() []resolve.AccountRule {
	return p.members.Rules()
}

// DescriptorAddress returns the descriptor address for mint.
func (p *Program) DescriptorAddress(mint types.Identity) (types.Identity, error) {
	_, addr, err := resolve.DescriptorAddress(ProgramID, mint)
	return addr, err
}

// Initialize writes the configuration record, the mint's descriptor and any
// shared membership records. admin must sign. tracker is the authority
// allowed to update balance snapshots. Replay fails ErrAlreadyInitialized.
func (p *Program) Initialize(rc *runtime.Context, admin, mint, tracker types.Identity) error {
	rc = rc.Enter(ProgramID)
	if err := rc.RequireSigner(admin); err != nil {
		return err
	}
	if _, err := whitelist.CreateConfig(rc, admin, tracker, p.members.Variant()); err != nil {
		return fmt.Errorf("create config: %w", err)
	}

	rules := p.Rules()
	proof, addr, err := resolve.DescriptorAddress(ProgramID, mint)
	if err != nil {
		return err
	}
	signed, err := rc.SignWith(proof)
	if err != nil {
		return err
	}
	data := make([]byte, resolve.Size(len(rules)))
	if err := resolve.Init(data, rules); err != nil {
		return fmt.Errorf("init descriptor: %w", err)
	}
	if err := signed.Create(addr, data); err != nil {
		if errors.Is(err, types.ErrAccountInUse) {
			return types.ErrAlreadyInitialized
		}
		return fmt.Errorf("create descriptor: %w", err)
	}

	if err := p.members.Setup(rc); err != nil {
		return fmt.Errorf("setup %s: %w", p.members.Variant(), err)
	}
	rc.Logger().Info("hook initialized", "admin", admin, "mint", mint, "membership", p.members.Variant(), "rules", len(rules))
	return nil
}

// AddToWhitelist approves subject. The stored admin must sign.
func (p *Program) AddToWhitelist(rc *runtime.Context, admin, subject types.Identity) error {
	rc = rc.Enter(ProgramID)
	if _, err := whitelist.RequireAdmin(rc, admin); err != nil {
		return err
	}
	if err := p.members.Add(rc, subject); err != nil {
		return err
	}
	rc.Logger().Info("whitelist added", "subject", subject)
	return nil
}

// RemoveFromWhitelist revokes subject. The stored admin must sign.
func (p *Program) RemoveFromWhitelist(rc *runtime.Context, admin, subject types.Identity) error {
	rc = rc.Enter(ProgramID)
	if _, err := whitelist.RequireAdmin(rc, admin); err != nil {
		return err
	}
	if err := p.members.Remove(rc, subject); err != nil {
		return err
	}
	rc.Logger().Info("whitelist removed", "subject", subject)
	return nil
}

// Track updates subject's balance snapshot when the membership keeps one.
// The configured tracker must sign.
func (p *Program) Track(rc *runtime.Context, subject types.Identity, balance uint64) error {
	rc = rc.Enter(ProgramID)
	cfg, err := whitelist.LoadConfig(rc.Reader(), ProgramID)
	if err != nil {
		return err
	}
	if err := rc.RequireSigner(cfg.Tracker); err != nil {
		return err
	}
	tracker, ok := p.members.(whitelist.Tracker)
	if !ok {
		return nil
	}
	return tracker.Track(rc, subject, balance)
}

// IsMember reports whether subject is approved.
func (p *Program) IsMember(r types.Reader, subject types.Identity) (bool, error) {
	return p.members.IsMember(r, subject)
}

// Execute implements ledger.Hook. accounts are
// [source, mint, destination, authority, descriptor, extras...].
func (p *Program) Execute(rc *runtime.Context, accounts []types.Identity, amount uint64) error {
	rc = rc.Enter(ProgramID)
	if len(accounts) < resolve.FixedAccounts {
		return fmt.Errorf("%w: execute needs %d accounts, got %d",
			types.ErrAccountListMismatch, resolve.FixedAccounts, len(accounts))
	}
	r := rc.Reader()
	mint := accounts[resolve.IndexMint]

	src, err := ledger.LoadTokenAccount(r, accounts[resolve.IndexSource])
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if !src.Transferring {
		// Called outside a transfer: the idle context fails every policy.
		return p.policy.Authorize(TransferContext{}, amount, src.Owner, types.ZeroIdentity)
	}

	wantDesc, err := p.DescriptorAddress(mint)
	if err != nil {
		return err
	}
	if accounts[resolve.IndexDescriptor] != wantDesc {
		return fmt.Errorf("%w: wrong descriptor", types.ErrAccountListMismatch)
	}
	dst, err := ledger.LoadTokenAccount(r, accounts[resolve.IndexDestination])
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if src.Mint != mint || dst.Mint != mint {
		return types.ErrMintMismatch
	}

	// Every whitelist account must be the one the descriptor resolves to.
	extras := accounts[resolve.FixedAccounts:]
	want, err := resolve.ForTransfer(r, ProgramID, mint,
		accounts[resolve.IndexSource], accounts[resolve.IndexDestination], accounts[resolve.IndexAuthority], amount)
	if err != nil {
		return err
	}
	if !slices.Equal(want, extras) {
		return types.ErrInvalidWhitelistAccount
	}
	probe, err := p.members.Probe(r, extras, src.Owner, dst.Owner)
	if err != nil {
		return err
	}
	tc := TransferContext{transferring: true, probe: probe}

	if err := p.policy.Authorize(tc, amount, src.Owner, dst.Owner); err != nil {
		rc.Logger().Info("transfer rejected", "source_owner", src.Owner, "destination_owner", dst.Owner, "amount", amount, "error", err)
		return err
	}
	rc.Logger().Debug("transfer approved", "source_owner", src.Owner, "destination_owner", dst.Owner, "amount", amount)
	return nil
}
