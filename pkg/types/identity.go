package types

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// IdentitySize is the byte length of an Identity.
const IdentitySize = 32

// Identity is a 32-byte address naming a participant, a program, or an
// account. Its text form is base58.
type Identity [IdentitySize]byte

// ErrInvalidIdentity is returned when text or bytes do not decode to a
// 32-byte identity.
var ErrInvalidIdentity = errors.New("invalid identity")

// ZeroIdentity is the all-zero identity. It never names a real participant.
var ZeroIdentity Identity

// ParseIdentity decodes a base58 identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if len(raw) != IdentitySize {
		return id, fmt.Errorf("%w: decoded %d bytes", ErrInvalidIdentity, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// IdentityFromBytes copies b into an Identity. b must be exactly 32 bytes.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentitySize {
		return id, fmt.Errorf("%w: got %d bytes", ErrInvalidIdentity, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// MustParseIdentity is ParseIdentity for constants and tests. It panics on
// malformed input.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the base58 form.
func (id Identity) String() string {
	return base58.Encode(id[:])
}

// Bytes returns a copy of the raw identity bytes.
func (id Identity) Bytes() []byte {
	b := make([]byte, IdentitySize)
	copy(b, id[:])
	return b
}

// IsZero reports whether id is the zero identity.
func (id Identity) IsZero() bool {
	return id == ZeroIdentity
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// programDomain separates program identities from every other BLAKE3 use.
const programDomain = "hookvault.program:"

// ProgramIdentity returns the well-known identity of a named program.
// Every component and client computes the same value from the same name.
func ProgramIdentity(name string) Identity {
	return Identity(blake3.Sum256([]byte(programDomain + name)))
}

// Well-known program names.
const (
	LedgerProgramName = "asset-ledger"
	HookProgramName   = "whitelist-transfer-hook"
	VaultProgramName  = "whitelist-vault"
)
