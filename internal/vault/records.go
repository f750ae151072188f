package vault

import (
	"fmt"

	"github.com/mesh-intelligence/hookvault/internal/codec"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

var (
	vaultDiscriminator   = codec.NewDiscriminator("Vault")
	depositDiscriminator = codec.NewDiscriminator("UserDeposit")
)

// Record sizes.
const (
	StateSize   = codec.DiscriminatorSize + 32 + 32 + 8 + 1 + 1
	DepositSize = codec.DiscriminatorSize + 32 + 8 + 1
)

// State is the vault singleton.
type State struct {
	Admin types.Identity `json:"admin"`
	Mint  types.Identity `json:"mint"`
	// Balance is the aggregate of every deposit record. It always equals
	// the vault token account balance.
	Balance  uint64 `json:"balance"`
	Bump     uint8  `json:"bump"`
	MintBump uint8  `json:"mint_bump"`
}

func (s State) encode() []byte {
	return codec.NewWriter(StateSize).
		Discriminator(vaultDiscriminator).
		Identity(s.Admin).
		Identity(s.Mint).
		Uint64(s.Balance).
		Uint8(s.Bump).
		Uint8(s.MintBump).
		Bytes()
}

func decodeState(data []byte) (State, error) {
	r := codec.NewReader(data).Expect(vaultDiscriminator)
	s := State{
		Admin:    r.Identity(),
		Mint:     r.Identity(),
		Balance:  r.Uint64(),
		Bump:     r.Uint8(),
		MintBump: r.Uint8(),
	}
	if err := r.Done(); err != nil {
		return State{}, fmt.Errorf("decode vault: %w", err)
	}
	return s, nil
}

// Deposit is one depositor's entitlement.
type Deposit struct {
	Owner  types.Identity `json:"owner"`
	Amount uint64         `json:"amount"`
	Bump   uint8          `json:"bump"`
}

func (d Deposit) encode() []byte {
	return codec.NewWriter(DepositSize).
		Discriminator(depositDiscriminator).
		Identity(d.Owner).
		Uint64(d.Amount).
		Uint8(d.Bump).
		Bytes()
}

func decodeDeposit(data []byte) (Deposit, error) {
	r := codec.NewReader(data).Expect(depositDiscriminator)
	d := Deposit{Owner: r.Identity(), Amount: r.Uint64(), Bump: r.Uint8()}
	if err := r.Done(); err != nil {
		return Deposit{}, fmt.Errorf("decode deposit: %w", err)
	}
	return d, nil
}
