// Package whitelist is the access-control store consulted by the transfer
// hook. Two variants share the Membership interface: Registry keeps one
// record per approved identity, Roster keeps every approved identity in a
// single bounded record.
//
// All records are owned by the hook program, and every function that
// writes expects a Context already executing as that program.
package whitelist

import (
	"fmt"

	"github.com/mesh-intelligence/hookvault/internal/resolve"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Namespace tags of the records this package derives.
const (
	WhitelistSeed = "whitelist"
	RosterSeed    = "roster"
	ConfigSeed    = "config"
)

// Probe answers membership for the owners of one transfer.
type Probe func(subject types.Identity) (bool, error)

// Membership is an access-control store variant.
type Membership interface {
	// Variant returns the configuration name of the variant.
	Variant() string

	// Rules returns, in order, the extra accounts the hook needs to decide
	// a transfer. The same rules size the descriptor at setup and drive
	// resolution at transfer time.
	Rules() []resolve.AccountRule

	// Setup creates any shared records the variant needs.
	Setup(rc *runtime.Context) error

	// IsMember reports whether subject is approved.
	IsMember(r types.Reader, subject types.Identity) (bool, error)

	// Probe checks that extras are the variant's genuine records for the
	// two owners and returns a lookup over them.
	Probe(r types.Reader, extras []types.Identity, sourceOwner, destinationOwner types.Identity) (Probe, error)

	// Add approves subject. Fails ErrAlreadyExists if already approved.
	Add(rc *runtime.Context, subject types.Identity) error

	// Remove revokes subject. Fails ErrRecordNotFound if not approved.
	Remove(rc *runtime.Context, subject types.Identity) error
}

// Tracker is implemented by variants that keep a balance snapshot per
// approved identity.
type Tracker interface {
	Track(rc *runtime.Context, subject types.Identity, balance uint64) error
	Snapshot(r types.Reader, subject types.Identity) (uint64, bool, error)
}

// New returns the membership variant named by variant for the hook program.
func New(variant string, program types.Identity) (Membership, error) {
	switch variant {
	case "", types.MembershipRegistry:
		return NewRegistry(program), nil
	case types.MembershipRoster:
		return NewRoster(program), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrMembershipUnknown, variant)
	}
}
