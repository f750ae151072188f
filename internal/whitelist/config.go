package whitelist

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/hookvault/internal/codec"
	"github.com/mesh-intelligence/hookvault/internal/derive"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

var configDiscriminator = codec.NewDiscriminator("Config")

// ConfigSize is the encoded size of a Config record.
const ConfigSize = codec.DiscriminatorSize + 32 + 32 + 1 + 1

// Variant codes stored in the config record.
var variantCodes = map[string]uint8{
	types.MembershipRegistry: 1,
	types.MembershipRoster:   2,
}

// Config is the hook's singleton configuration record.
type Config struct {
	Admin types.Identity
	// Tracker is the authority allowed to update balance snapshots.
	Tracker types.Identity
	// Variant is the membership variant the descriptor was written for.
	Variant string
	Bump    uint8
}

func (c Config) encode() []byte {
	return codec.NewWriter(ConfigSize).
		Discriminator(configDiscriminator).
		Identity(c.Admin).
		Identity(c.Tracker).
		Uint8(variantCodes[c.Variant]).
		Uint8(c.Bump).
		Bytes()
}

func decodeConfig(data []byte) (Config, error) {
	r := codec.NewReader(data).Expect(configDiscriminator)
	c := Config{Admin: r.Identity(), Tracker: r.Identity()}
	code := r.Uint8()
	c.Bump = r.Uint8()
	if err := r.Done(); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	for name, v := range variantCodes {
		if v == code {
			c.Variant = name
		}
	}
	if c.Variant == "" {
		return Config{}, fmt.Errorf("%w: config variant %d", types.ErrInvalidAccountData, code)
	}
	return c, nil
}

// ConfigAddress returns the config record address for the hook program.
func ConfigAddress(program types.Identity) (derive.Proof, types.Identity, error) {
	return derive.Find(program, []byte(ConfigSeed))
}

// CreateConfig writes the config record for the named membership variant.
// Fails ErrAlreadyInitialized on replay.
func CreateConfig(rc *runtime.Context, admin, tracker types.Identity, variant string) (Config, error) {
	if _, ok := variantCodes[variant]; !ok {
		return Config{}, fmt.Errorf("%w: %q", types.ErrMembershipUnknown, variant)
	}
	proof, addr, err := ConfigAddress(rc.Program())
	if err != nil {
		return Config{}, err
	}
	signed, err := rc.SignWith(proof)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{Admin: admin, Tracker: tracker, Variant: variant, Bump: proof.Bump}
	if err := signed.Create(addr, cfg.encode()); err != nil {
		if errors.Is(err, types.ErrAccountInUse) {
			return Config{}, types.ErrAlreadyInitialized
		}
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the config record. Fails ErrNotInitialized if absent.
func LoadConfig(r types.Reader, program types.Identity) (Config, error) {
	_, addr, err := ConfigAddress(program)
	if err != nil {
		return Config{}, err
	}
	acct, err := r.Get(addr)
	if errors.Is(err, types.ErrAccountNotFound) {
		return Config{}, types.ErrNotInitialized
	}
	if err != nil {
		return Config{}, err
	}
	if acct.Owner != program {
		return Config{}, fmt.Errorf("%w: config not owned by hook", types.ErrInvalidAccountData)
	}
	return decodeConfig(acct.Data)
}

// RequireAdmin fails ErrUnauthorized unless the stored admin signed.
func RequireAdmin(rc *runtime.Context, admin types.Identity) (Config, error) {
	cfg, err := LoadConfig(rc.Reader(), rc.Program())
	if err != nil {
		return Config{}, err
	}
	if admin != cfg.Admin || !rc.IsSigner(admin) {
		return Config{}, types.ErrUnauthorized
	}
	return cfg, nil
}

// CheckVariant fails ErrMembershipMismatch when the hook was initialized
// for a variant other than variant. An uninitialized hook passes.
func CheckVariant(r types.Reader, program types.Identity, variant string) error {
	cfg, err := LoadConfig(r, program)
	if errors.Is(err, types.ErrNotInitialized) {
		return nil
	}
	if err != nil {
		return err
	}
	if cfg.Variant != variant {
		return fmt.Errorf("%w: initialized as %s, opened as %s", types.ErrMembershipMismatch, cfg.Variant, variant)
	}
	return nil
}
