// Package derive computes deterministic signing authorities.
//
// A derived address is a BLAKE3 keyed hash of a program identity and a list
// of seeds, adjusted by a one-byte bump until the result is not a valid
// ed25519 public key. Because no point exists for it, no private key exists
// either: the owning program proves authority at call time by presenting
// the same seeds, and the host recomputes the address from them.
package derive

import (
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/zeebo/blake3"

	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Seed limits. They bound the work Find does and keep proofs small.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

// Derivation errors.
var (
	ErrMaxSeeds      = errors.New("derive: too many seeds")
	ErrMaxSeedLength = errors.New("derive: seed too long")
	ErrOnCurve       = errors.New("derive: candidate is a valid public key")
	ErrNoBump        = errors.New("derive: no off-curve bump found")
	ErrProofMismatch = errors.New("derive: proof does not reproduce address")
)

// domainKey keys every derivation hash. Changing it moves every derived
// address in every deployment.
var domainKey = [32]byte{
	'h', 'o', 'o', 'k', 'v', 'a', 'u', 'l', 't', '.', 'd', 'e', 'r', 'i', 'v', 'e',
	'd', '-', 'a', 'd', 'd', 'r', 'e', 's', 's', 0, 0, 0, 0, 0, 0, 0,
}

// Proof is the seed material that reproduces a derived address.
type Proof struct {
	Program types.Identity
	Seeds   [][]byte
	Bump    uint8
}

// Address recomputes the address the proof names.
func (p Proof) Address() (types.Identity, error) {
	return Create(p.Program, p.Seeds, p.Bump)
}

// Verify reports whether the proof reproduces addr.
func (p Proof) Verify(addr types.Identity) error {
	got, err := p.Address()
	if err != nil {
		return err
	}
	if got != addr {
		return ErrProofMismatch
	}
	return nil
}

// Find returns the proof for the first off-curve address, searching bumps
// from 255 down to 0.
func Find(program types.Identity, seeds ...[]byte) (Proof, types.Identity, error) {
	if err := checkSeeds(seeds); err != nil {
		return Proof{}, types.ZeroIdentity, err
	}
	for bump := 255; bump >= 0; bump-- {
		addr, err := Create(program, seeds, uint8(bump))
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return Proof{}, types.ZeroIdentity, err
		}
		return Proof{Program: program, Seeds: copySeeds(seeds), Bump: uint8(bump)}, addr, nil
	}
	return Proof{}, types.ZeroIdentity, ErrNoBump
}

// Address is Find without the proof.
func Address(program types.Identity, seeds ...[]byte) (types.Identity, error) {
	_, addr, err := Find(program, seeds...)
	return addr, err
}

// Create computes the address for an explicit bump. It returns ErrOnCurve
// when the candidate decodes as an ed25519 point.
func Create(program types.Identity, seeds [][]byte, bump uint8) (types.Identity, error) {
	if err := checkSeeds(seeds); err != nil {
		return types.ZeroIdentity, err
	}
	h, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		return types.ZeroIdentity, fmt.Errorf("derive: keyed hash: %w", err)
	}
	var lenBuf [2]byte
	for _, s := range seeds {
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write(s)
	}
	_, _ = h.Write([]byte{bump})
	_, _ = h.Write(program[:])

	var candidate types.Identity
	copy(candidate[:], h.Sum(nil))
	if isOnCurve(candidate) {
		return types.ZeroIdentity, ErrOnCurve
	}
	return candidate, nil
}

// isOnCurve reports whether b is the encoding of an ed25519 point.
func isOnCurve(b types.Identity) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return ErrMaxSeeds
	}
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return ErrMaxSeedLength
		}
	}
	return nil
}

func copySeeds(seeds [][]byte) [][]byte {
	out := make([][]byte, len(seeds))
	for i, s := range seeds {
		out[i] = append([]byte(nil), s...)
	}
	return out
}
