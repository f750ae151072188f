package whitelist

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/hookvault/internal/codec"
	"github.com/mesh-intelligence/hookvault/internal/derive"
	"github.com/mesh-intelligence/hookvault/internal/ledger"
	"github.com/mesh-intelligence/hookvault/internal/resolve"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

var entryDiscriminator = codec.NewDiscriminator("WhitelistEntry")

// EntrySize is the encoded size of a registry record.
const EntrySize = codec.DiscriminatorSize + 32 + 1

// Registry stores one record per approved identity at
// derive(hook, "whitelist", subject). The record's presence is the
// membership flag.
type Registry struct {
	program types.Identity
}

// NewRegistry returns the registry for the hook program.
func NewRegistry(program types.Identity) *Registry {
	return &Registry{program: program}
}

// Variant implements Membership.
func (g *Registry) Variant() string {
	return types.MembershipRegistry
}

// RecordAddress returns the record address for subject.
func (g *Registry) RecordAddress(subject types.Identity) (derive.Proof, types.Identity, error) {
	return derive.Find(g.program, []byte(WhitelistSeed), subject[:])
}

// Rules implements Membership: the source owner's record, then the
// destination owner's, each derived from the owner field of the token
// account.
func (g *Registry) Rules() []resolve.AccountRule {
	return []resolve.AccountRule{
		resolve.Seeded([]resolve.Seed{
			resolve.Literal([]byte(WhitelistSeed)),
			resolve.AccountData(resolve.IndexSource, ledger.TokenOwnerOffset, types.IdentitySize),
		}, false, false),
		resolve.Seeded([]resolve.Seed{
			resolve.Literal([]byte(WhitelistSeed)),
			resolve.AccountData(resolve.IndexDestination, ledger.TokenOwnerOffset, types.IdentitySize),
		}, false, false),
	}
}

// Setup implements Membership. The registry has no shared records.
func (g *Registry) Setup(*runtime.Context) error {
	return nil
}

// IsMember implements Membership.
func (g *Registry) IsMember(r types.Reader, subject types.Identity) (bool, error) {
	_, addr, err := g.RecordAddress(subject)
	if err != nil {
		return false, err
	}
	return g.present(r, addr, subject)
}

// Probe implements Membership.
func (g *Registry) Probe(r types.Reader, extras []types.Identity, sourceOwner, destinationOwner types.Identity) (Probe, error) {
	if len(extras) < 2 {
		return nil, fmt.Errorf("%w: need 2 whitelist accounts, got %d", types.ErrInvalidWhitelistAccount, len(extras))
	}
	owners := [2]types.Identity{sourceOwner, destinationOwner}
	for i, owner := range owners {
		_, want, err := g.RecordAddress(owner)
		if err != nil {
			return nil, err
		}
		if extras[i] != want {
			return nil, fmt.Errorf("%w: account %d is not the record for %s", types.ErrInvalidWhitelistAccount, i, owner)
		}
	}
	return func(subject types.Identity) (bool, error) {
		for i, owner := range owners {
			if subject == owner {
				return g.present(r, extras[i], subject)
			}
		}
		return g.IsMember(r, subject)
	}, nil
}

// Add implements Membership.
func (g *Registry) Add(rc *runtime.Context, subject types.Identity) error {
	proof, addr, err := g.RecordAddress(subject)
	if err != nil {
		return err
	}
	signed, err := rc.SignWith(proof)
	if err != nil {
		return err
	}
	data := codec.NewWriter(EntrySize).
		Discriminator(entryDiscriminator).
		Identity(subject).
		Uint8(proof.Bump).
		Bytes()
	if err := signed.Create(addr, data); err != nil {
		if errors.Is(err, types.ErrAccountInUse) {
			return fmt.Errorf("%w: %s", types.ErrAlreadyExists, subject)
		}
		return err
	}
	return nil
}

// Remove implements Membership. The record is closed.
func (g *Registry) Remove(rc *runtime.Context, subject types.Identity) error {
	_, addr, err := g.RecordAddress(subject)
	if err != nil {
		return err
	}
	ok, err := g.present(rc.Reader(), addr, subject)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrRecordNotFound, subject)
	}
	return rc.Close(addr)
}

// present reports whether addr holds a genuine record for subject.
func (g *Registry) present(r types.Reader, addr, subject types.Identity) (bool, error) {
	acct, err := r.Get(addr)
	if errors.Is(err, types.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !acct.Exists() {
		return false, nil
	}
	if acct.Owner != g.program {
		return false, fmt.Errorf("%w: record not owned by hook", types.ErrInvalidWhitelistAccount)
	}
	rd := codec.NewReader(acct.Data).Expect(entryDiscriminator)
	stored := rd.Identity()
	rd.Uint8()
	if err := rd.Done(); err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrInvalidWhitelistAccount, err)
	}
	if stored != subject {
		return false, fmt.Errorf("%w: record names %s", types.ErrInvalidWhitelistAccount, stored)
	}
	return true, nil
}
