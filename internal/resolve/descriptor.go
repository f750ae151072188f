package resolve

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/mesh-intelligence/hookvault/internal/codec"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Descriptor record layout:
//
//	discriminator(8) | length(4) | count(4) | count x entry(35)
//
// length counts the bytes after itself. Each entry is
//
//	kind(1) | address config(32) | is_signer(1) | is_writable(1)
//
// where kind is 0 static, 1 seeded, 128+i external under account i.
const (
	headerSize = codec.DiscriminatorSize + 4 + 4
	EntrySize  = 1 + 32 + 1 + 1

	kindStatic   = 0
	kindSeeded   = 1
	kindExternal = 128

	configSize = 32
)

// ExecuteDiscriminator tags the hook's execute instruction and leads every
// descriptor record.
var ExecuteDiscriminator = func() codec.Discriminator {
	sum := blake3.Sum256([]byte("hookvault.transfer-hook-interface:execute"))
	var d codec.Discriminator
	copy(d[:], sum[:codec.DiscriminatorSize])
	return d
}()

// ErrSeedConfigTooLong is returned when a rule's packed seeds exceed the
// 32-byte address config.
var ErrSeedConfigTooLong = errors.New("resolve: packed seeds exceed 32 bytes")

// ExecuteData returns the hook instruction data for amount.
func ExecuteData(amount uint64) []byte {
	return codec.NewWriter(codec.DiscriminatorSize + 8).
		Raw(ExecuteDiscriminator[:]).
		Uint64(amount).
		Bytes()
}

// Size returns the exact descriptor size for n rules.
func Size(n int) int {
	return headerSize + n*EntrySize
}

// Encode serializes rules into a descriptor record.
func Encode(rules []AccountRule) ([]byte, error) {
	w := codec.NewWriter(Size(len(rules))).
		Raw(ExecuteDiscriminator[:]).
		Uint32(uint32(4 + len(rules)*EntrySize)).
		Uint32(uint32(len(rules)))
	for i, r := range rules {
		kind, config, err := packRule(r)
		if err != nil {
			return nil, fmt.Errorf("encode rule %d: %w", i, err)
		}
		w.Uint8(kind).Raw(config[:]).Bool(r.Signer).Bool(r.Writable)
	}
	return w.Bytes(), nil
}

// Init writes rules into a zeroed descriptor buffer. The buffer must be
// exactly Size(len(rules)) bytes.
func Init(data []byte, rules []AccountRule) error {
	if len(data) != Size(len(rules)) {
		return fmt.Errorf("%w: descriptor is %d bytes, %d rules need %d",
			types.ErrInvalidAccountData, len(data), len(rules), Size(len(rules)))
	}
	if !bytes.Equal(data[:codec.DiscriminatorSize], make([]byte, codec.DiscriminatorSize)) {
		return types.ErrAlreadyInitialized
	}
	encoded, err := Encode(rules)
	if err != nil {
		return err
	}
	copy(data, encoded)
	return nil
}

// Decode parses a descriptor record. Trailing bytes are rejected.
func Decode(data []byte) ([]AccountRule, error) {
	r := codec.NewReader(data)
	disc := r.Raw(codec.DiscriminatorSize)
	length := r.Uint32()
	count := r.Uint32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if codec.Discriminator(disc) != ExecuteDiscriminator {
		return nil, fmt.Errorf("%w: not a descriptor", types.ErrInvalidAccountData)
	}
	if uint64(length) != 4+uint64(count)*EntrySize || len(data) != Size(int(count)) {
		return nil, fmt.Errorf("%w: descriptor size does not match %d rules", types.ErrInvalidAccountData, count)
	}

	rules := make([]AccountRule, 0, count)
	for i := uint32(0); i < count; i++ {
		kind := r.Uint8()
		var config [configSize]byte
		copy(config[:], r.Raw(configSize))
		signer := r.Bool()
		writable := r.Bool()
		rule, err := unpackRule(kind, config)
		if err != nil {
			return nil, fmt.Errorf("decode rule %d: %w", i, err)
		}
		rule.Signer, rule.Writable = signer, writable
		rules = append(rules, rule)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return rules, nil
}

func packRule(r AccountRule) (uint8, [configSize]byte, error) {
	var config [configSize]byte
	switch r.Kind {
	case RuleStatic:
		return kindStatic, [configSize]byte(r.Address), nil
	case RuleSeeded, RuleExternal:
		packed, err := packSeeds(r.Seeds)
		if err != nil {
			return 0, config, err
		}
		copy(config[:], packed)
		if r.Kind == RuleSeeded {
			return kindSeeded, config, nil
		}
		if r.ProgramIndex >= 128 {
			return 0, config, fmt.Errorf("%w: program index %d", types.ErrInvalidAccountData, r.ProgramIndex)
		}
		return kindExternal + r.ProgramIndex, config, nil
	default:
		return 0, config, fmt.Errorf("%w: rule kind %d", types.ErrInvalidAccountData, r.Kind)
	}
}

func unpackRule(kind uint8, config [configSize]byte) (AccountRule, error) {
	switch {
	case kind == kindStatic:
		return AccountRule{Kind: RuleStatic, Address: types.Identity(config)}, nil
	case kind == kindSeeded:
		seeds, err := unpackSeeds(config)
		return AccountRule{Kind: RuleSeeded, Seeds: seeds}, err
	case kind >= kindExternal:
		seeds, err := unpackSeeds(config)
		return AccountRule{Kind: RuleExternal, ProgramIndex: kind - kindExternal, Seeds: seeds}, err
	default:
		return AccountRule{}, fmt.Errorf("%w: entry kind %d", types.ErrInvalidAccountData, kind)
	}
}

func packSeeds(seeds []Seed) ([]byte, error) {
	var out []byte
	for _, s := range seeds {
		switch s.Kind {
		case SeedLiteral:
			if len(s.Bytes) > 255 {
				return nil, ErrSeedConfigTooLong
			}
			out = append(out, byte(SeedLiteral), byte(len(s.Bytes)))
			out = append(out, s.Bytes...)
		case SeedInstructionData:
			out = append(out, byte(SeedInstructionData), s.Offset, s.Length)
		case SeedAccountKey:
			out = append(out, byte(SeedAccountKey), s.Index)
		case SeedAccountData:
			out = append(out, byte(SeedAccountData), s.Index, s.Offset, s.Length)
		default:
			return nil, fmt.Errorf("%w: seed kind %d", types.ErrInvalidAccountData, s.Kind)
		}
		if len(out) > configSize {
			return nil, ErrSeedConfigTooLong
		}
	}
	return out, nil
}

func unpackSeeds(config [configSize]byte) ([]Seed, error) {
	var seeds []Seed
	b := config[:]
	for len(b) > 0 && b[0] != 0 {
		switch SeedKind(b[0]) {
		case SeedLiteral:
			if len(b) < 2 || len(b) < 2+int(b[1]) {
				return nil, fmt.Errorf("%w: truncated literal seed", types.ErrInvalidAccountData)
			}
			seeds = append(seeds, Literal(b[2:2+int(b[1])]))
			b = b[2+int(b[1]):]
		case SeedInstructionData:
			if len(b) < 3 {
				return nil, fmt.Errorf("%w: truncated instruction seed", types.ErrInvalidAccountData)
			}
			seeds = append(seeds, InstructionData(b[1], b[2]))
			b = b[3:]
		case SeedAccountKey:
			if len(b) < 2 {
				return nil, fmt.Errorf("%w: truncated account key seed", types.ErrInvalidAccountData)
			}
			seeds = append(seeds, AccountKey(b[1]))
			b = b[2:]
		case SeedAccountData:
			if len(b) < 4 {
				return nil, fmt.Errorf("%w: truncated account data seed", types.ErrInvalidAccountData)
			}
			seeds = append(seeds, AccountData(b[1], b[2], b[3]))
			b = b[4:]
		default:
			return nil, fmt.Errorf("%w: seed kind %d", types.ErrInvalidAccountData, b[0])
		}
	}
	return seeds, nil
}
