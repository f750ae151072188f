// Package resolve implements the account-resolution descriptor: the
// published list of extra accounts a transfer must attach so the transfer
// hook can run.
//
// Rules are stored in a fixed-width record at
// derive(hook, "extra-account-metas", mint). The ledger and every client
// resolve the same rules against the same transfer inputs, so they always
// attach the same accounts in the same order.
package resolve

import (
	"fmt"

	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// SeedKind selects where a seed's bytes come from.
type SeedKind uint8

const (
	// SeedLiteral is a constant byte string.
	SeedLiteral SeedKind = 1
	// SeedInstructionData is a slice of the hook instruction data.
	SeedInstructionData SeedKind = 2
	// SeedAccountKey is the address of an earlier account.
	SeedAccountKey SeedKind = 3
	// SeedAccountData is a slice of an earlier account's data.
	SeedAccountData SeedKind = 4
)

// Seed is one input to a seeded rule.
type Seed struct {
	Kind   SeedKind
	Bytes  []byte
	Index  uint8
	Offset uint8
	Length uint8
}

// Literal returns a constant seed.
func Literal(b []byte) Seed {
	return Seed{Kind: SeedLiteral, Bytes: append([]byte(nil), b...)}
}

// AccountKey returns a seed taken from the address of account index.
func AccountKey(index uint8) Seed {
	return Seed{Kind: SeedAccountKey, Index: index}
}

// AccountData returns a seed taken from data[offset:offset+length] of
// account index.
func AccountData(index, offset, length uint8) Seed {
	return Seed{Kind: SeedAccountData, Index: index, Offset: offset, Length: length}
}

// InstructionData returns a seed taken from the hook instruction data.
func InstructionData(offset, length uint8) Seed {
	return Seed{Kind: SeedInstructionData, Offset: offset, Length: length}
}

// RuleKind selects how a rule's address is produced.
type RuleKind uint8

const (
	RuleStatic RuleKind = iota
	RuleSeeded
	RuleExternal
)

// AccountRule describes one extra account.
type AccountRule struct {
	Kind RuleKind
	// Address is used by static rules.
	Address types.Identity
	// Seeds are used by seeded and external rules.
	Seeds []Seed
	// ProgramIndex names the account whose address is the deriving program
	// for external rules.
	ProgramIndex uint8
	Signer       bool
	Writable     bool
}

// Static returns a rule for a fixed address.
func Static(addr types.Identity, signer, writable bool) AccountRule {
	return AccountRule{Kind: RuleStatic, Address: addr, Signer: signer, Writable: writable}
}

// Seeded returns a rule for an address derived under the hook program.
func Seeded(seeds []Seed, signer, writable bool) AccountRule {
	return AccountRule{Kind: RuleSeeded, Seeds: seeds, Signer: signer, Writable: writable}
}

// External returns a rule for an address derived under the program at
// account programIndex.
func External(programIndex uint8, seeds []Seed, signer, writable bool) AccountRule {
	return AccountRule{Kind: RuleExternal, ProgramIndex: programIndex, Seeds: seeds, Signer: signer, Writable: writable}
}

func (r AccountRule) String() string {
	switch r.Kind {
	case RuleStatic:
		return fmt.Sprintf("static(%s)", r.Address)
	case RuleSeeded:
		return fmt.Sprintf("seeded(%d seeds)", len(r.Seeds))
	case RuleExternal:
		return fmt.Sprintf("external(program=%d, %d seeds)", r.ProgramIndex, len(r.Seeds))
	default:
		return fmt.Sprintf("unknown(%d)", r.Kind)
	}
}
