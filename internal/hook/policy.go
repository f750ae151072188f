package hook

import (
	"github.com/mesh-intelligence/hookvault/internal/whitelist"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// TransferContext proves a policy call happens inside a genuine transfer.
// Only Program.Execute issues one, after reading the marker the ledger set
// on the source token account. The zero value is the idle context: every
// Authorize on it fails ErrNotTransferring.
type TransferContext struct {
	transferring bool
	probe        whitelist.Probe
}

// Transferring reports whether the context was issued mid-transfer.
func (tc TransferContext) Transferring() bool {
	return tc.transferring
}

// IsMember reports whether subject is approved, using the accounts
// attached to the transfer. It reports false outside a transfer.
func (tc TransferContext) IsMember(subject types.Identity) (bool, error) {
	if !tc.transferring || tc.probe == nil {
		return false, nil
	}
	return tc.probe(subject)
}

// Policy decides whether a transfer may proceed.
type Policy interface {
	Authorize(tc TransferContext, amount uint64, sourceOwner, destinationOwner types.Identity) error
}

// WhitelistPolicy is the asymmetric allowlist rule: an approved sender may
// send to anyone, an unapproved sender only to an approved recipient.
// amount does not influence the decision.
type WhitelistPolicy struct{}

// Authorize implements Policy.
func (WhitelistPolicy) Authorize(tc TransferContext, _ uint64, sourceOwner, destinationOwner types.Identity) error {
	if !tc.Transferring() {
		return types.ErrNotTransferring
	}
	ok, err := tc.IsMember(sourceOwner)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	ok, err = tc.IsMember(destinationOwner)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrNotWhitelisted
	}
	return nil
}
