// Package keys manages ed25519 keypairs whose public keys are hookvault
// identities.
//
// Keypair files hold a JSON array of the 64 private key bytes (seed then
// public key), the same shape common ledger keygen tools write.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Keypair errors.
var (
	ErrInvalidKeypair = errors.New("invalid keypair")
	ErrKeypairExists  = errors.New("keypair file already exists")
)

// Keypair is an ed25519 signing key.
type Keypair struct {
	private ed25519.PrivateKey
}

// Generate returns a new keypair read from r. A nil r uses crypto/rand.
func Generate(r io.Reader) (*Keypair, error) {
	if r == nil {
		r = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{private: priv}, nil
}

// FromSeed derives a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidKeypair, len(seed), ed25519.SeedSize)
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// Identity returns the public key as an identity.
func (k *Keypair) Identity() types.Identity {
	var id types.Identity
	copy(id[:], k.private.Public().(ed25519.PublicKey))
	return id
}

// Sign signs msg.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// Verify reports whether sig is id's signature over msg.
func Verify(id types.Identity, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(id[:]), msg, sig)
}

// MarshalJSON encodes the keypair as a 64-element byte array.
func (k *Keypair) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(k.private))
	for i, b := range k.private {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON decodes a 64-element byte array and checks that the public
// half matches the seed.
func (k *Keypair) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKeypair, len(ints), ed25519.PrivateKeySize)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypair, i)
		}
		raw[i] = byte(v)
	}
	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !priv.Equal(ed25519.PrivateKey(raw)) {
		return fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}
	k.private = priv
	return nil
}

// Load reads a keypair file.
func Load(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	var k Keypair
	if err := k.UnmarshalJSON(bytes.TrimSpace(data)); err != nil {
		return nil, fmt.Errorf("decode keypair %s: %w", path, err)
	}
	return &k, nil
}

// Save writes k to path with owner-only permissions. It refuses to replace
// an existing file unless overwrite is set.
func Save(path string, k *Keypair, overwrite bool) error {
	data, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keypair dir: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrKeypairExists, path)
	}
	if err != nil {
		return fmt.Errorf("open keypair file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write keypair: %w", err)
	}
	return nil
}
