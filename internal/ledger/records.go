package ledger

import (
	"fmt"

	"github.com/mesh-intelligence/hookvault/internal/codec"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

var mintDiscriminator = codec.NewDiscriminator("Mint")

// Record sizes.
const (
	MintSize         = codec.DiscriminatorSize + 32 + 8 + 1 + 32
	TokenAccountSize = 32 + 32 + 8 + 1
)

// Token account field offsets. The owner offset is what descriptor rules
// read to find an account's owner.
const (
	TokenMintOffset         = 0
	TokenOwnerOffset        = 32
	TokenAmountOffset       = 64
	TokenTransferringOffset = 72
)

// Mint describes one asset class.
type Mint struct {
	Authority types.Identity
	Supply    uint64
	Decimals  uint8
	// Hook is the transfer-hook program, or zero for none.
	Hook types.Identity
}

func (m Mint) encode() []byte {
	return codec.NewWriter(MintSize).
		Discriminator(mintDiscriminator).
		Identity(m.Authority).
		Uint64(m.Supply).
		Uint8(m.Decimals).
		Identity(m.Hook).
		Bytes()
}

// DecodeMint parses a mint record.
func DecodeMint(data []byte) (Mint, error) {
	r := codec.NewReader(data).Expect(mintDiscriminator)
	m := Mint{
		Authority: r.Identity(),
		Supply:    r.Uint64(),
		Decimals:  r.Uint8(),
		Hook:      r.Identity(),
	}
	if err := r.Done(); err != nil {
		return Mint{}, fmt.Errorf("decode mint: %w", err)
	}
	return m, nil
}

// TokenAccount holds one owner's balance of one mint.
type TokenAccount struct {
	Mint   types.Identity
	Owner  types.Identity
	Amount uint64
	// Transferring is set by the ledger only while the transfer hook runs.
	Transferring bool
}

func (a TokenAccount) encode() []byte {
	return codec.NewWriter(TokenAccountSize).
		Identity(a.Mint).
		Identity(a.Owner).
		Uint64(a.Amount).
		Bool(a.Transferring).
		Bytes()
}

// DecodeTokenAccount parses a token account record.
func DecodeTokenAccount(data []byte) (TokenAccount, error) {
	r := codec.NewReader(data)
	a := TokenAccount{
		Mint:         r.Identity(),
		Owner:        r.Identity(),
		Amount:       r.Uint64(),
		Transferring: r.Bool(),
	}
	if err := r.Done(); err != nil {
		return TokenAccount{}, fmt.Errorf("decode token account: %w", err)
	}
	return a, nil
}
