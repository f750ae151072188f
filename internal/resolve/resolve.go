package resolve

import (
	"fmt"

	"github.com/mesh-intelligence/hookvault/internal/derive"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Positions of the fixed accounts every hook execute call receives.
const (
	IndexSource = iota
	IndexMint
	IndexDestination
	IndexAuthority
	IndexDescriptor
	// FixedAccounts is the number of accounts before the extras.
	FixedAccounts
)

// DescriptorSeed is the namespace tag of the descriptor address.
const DescriptorSeed = "extra-account-metas"

// DescriptorAddress returns the descriptor address for a mint.
func DescriptorAddress(hook, mint types.Identity) (derive.Proof, types.Identity, error) {
	return derive.Find(hook, []byte(DescriptorSeed), mint[:])
}

// Resolve produces the extra accounts for rules. accounts holds the fixed
// accounts of the call; each resolved rule is appended so later rules can
// refer to earlier ones.
func Resolve(r types.Reader, hook types.Identity, rules []AccountRule, accounts []types.Identity, data []byte) ([]types.Identity, error) {
	all := append([]types.Identity(nil), accounts...)
	extras := make([]types.Identity, 0, len(rules))
	for i, rule := range rules {
		addr, err := resolveRule(r, hook, rule, all, data)
		if err != nil {
			return nil, fmt.Errorf("resolve rule %d (%s): %w", i, rule, err)
		}
		all = append(all, addr)
		extras = append(extras, addr)
	}
	return extras, nil
}

func resolveRule(r types.Reader, hook types.Identity, rule AccountRule, accounts []types.Identity, data []byte) (types.Identity, error) {
	switch rule.Kind {
	case RuleStatic:
		return rule.Address, nil
	case RuleSeeded, RuleExternal:
		program := hook
		if rule.Kind == RuleExternal {
			if int(rule.ProgramIndex) >= len(accounts) {
				return types.ZeroIdentity, fmt.Errorf("%w: program index %d", types.ErrAccountListMismatch, rule.ProgramIndex)
			}
			program = accounts[rule.ProgramIndex]
		}
		seeds := make([][]byte, 0, len(rule.Seeds))
		for _, s := range rule.Seeds {
			b, err := seedBytes(r, s, accounts, data)
			if err != nil {
				return types.ZeroIdentity, err
			}
			seeds = append(seeds, b)
		}
		return derive.Address(program, seeds...)
	default:
		return types.ZeroIdentity, fmt.Errorf("%w: rule kind %d", types.ErrInvalidAccountData, rule.Kind)
	}
}

func seedBytes(r types.Reader, s Seed, accounts []types.Identity, data []byte) ([]byte, error) {
	switch s.Kind {
	case SeedLiteral:
		return s.Bytes, nil
	case SeedInstructionData:
		end := int(s.Offset) + int(s.Length)
		if end > len(data) {
			return nil, fmt.Errorf("%w: instruction data too short", types.ErrInvalidAccountData)
		}
		return data[s.Offset:end], nil
	case SeedAccountKey:
		if int(s.Index) >= len(accounts) {
			return nil, fmt.Errorf("%w: account index %d", types.ErrAccountListMismatch, s.Index)
		}
		return accounts[s.Index].Bytes(), nil
	case SeedAccountData:
		if int(s.Index) >= len(accounts) {
			return nil, fmt.Errorf("%w: account index %d", types.ErrAccountListMismatch, s.Index)
		}
		acct, err := r.Get(accounts[s.Index])
		if err != nil {
			return nil, fmt.Errorf("seed account %s: %w", accounts[s.Index], err)
		}
		end := int(s.Offset) + int(s.Length)
		if end > len(acct.Data) {
			return nil, fmt.Errorf("%w: account %s data too short", types.ErrInvalidAccountData, accounts[s.Index])
		}
		return acct.Data[s.Offset:end], nil
	default:
		return nil, fmt.Errorf("%w: seed kind %d", types.ErrInvalidAccountData, s.Kind)
	}
}

// ForTransfer answers the account-resolution query for one transfer: it
// loads the mint's descriptor and returns the extra accounts, in order,
// that the transfer must attach.
func ForTransfer(r types.Reader, hook, mint, source, destination, authority types.Identity, amount uint64) ([]types.Identity, error) {
	_, descAddr, err := DescriptorAddress(hook, mint)
	if err != nil {
		return nil, err
	}
	acct, err := r.Get(descAddr)
	if err != nil {
		return nil, fmt.Errorf("load descriptor: %w", err)
	}
	if acct.Owner != hook {
		return nil, fmt.Errorf("%w: descriptor not owned by hook", types.ErrInvalidAccountData)
	}
	rules, err := Decode(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	fixed := []types.Identity{source, mint, destination, authority, descAddr}
	return Resolve(r, hook, rules, fixed, ExecuteData(amount))
}
