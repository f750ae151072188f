package ledger

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hookvault/internal/derive"
	"github.com/mesh-intelligence/hookvault/internal/keys"
	"github.com/mesh-intelligence/hookvault/internal/resolve"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/internal/store"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

var testHookID = types.ProgramIdentity("ledger-test-hook")

type fixture struct {
	host   *runtime.Host
	ledger *Ledger
	admin  *keys.Keypair
	mint   *keys.Keypair
	alice  *keys.Keypair
	bob    *keys.Keypair
}

func keypair(t *testing.T, b byte) *keys.Keypair {
	t.Helper()
	k, err := keys.FromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return k
}

// newFixture creates a mint with the given hook program and funds alice
// with 100 units.
func newFixture(t *testing.T, hook types.Identity) *fixture {
	t.Helper()
	m := store.NewMemory()
	require.NoError(t, m.Attach(types.Config{Backend: types.BackendMemory}))
	t.Cleanup(func() { _ = m.Detach() })

	f := &fixture{
		host:   runtime.NewHost(m, nil),
		ledger: New(),
		admin:  keypair(t, 1),
		mint:   keypair(t, 2),
		alice:  keypair(t, 3),
		bob:    keypair(t, 4),
	}
	mint := f.mint.Identity()
	f.invoke(t, "setup", []runtime.Signer{f.admin, f.mint}, func(rc *runtime.Context) error {
		if err := f.ledger.CreateMint(rc, mint, Mint{Authority: f.admin.Identity(), Decimals: 9, Hook: hook}); err != nil {
			return err
		}
		alice, err := f.ledger.CreateAccount(rc, f.alice.Identity(), mint)
		if err != nil {
			return err
		}
		if _, err := f.ledger.CreateAccount(rc, f.bob.Identity(), mint); err != nil {
			return err
		}
		return f.ledger.MintTo(rc, mint, alice, 100)
	})
	return f
}

func (f *fixture) invoke(t *testing.T, name string, signers []runtime.Signer, fn func(rc *runtime.Context) error) {
	t.Helper()
	_, err := f.host.Invoke(context.Background(), name, signers, fn)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, owner types.Identity) uint64 {
	t.Helper()
	var got uint64
	require.NoError(t, f.host.View(context.Background(), func(r types.Reader) error {
		var err error
		got, err = Balance(r, owner, f.mint.Identity())
		return err
	}))
	return got
}

func (f *fixture) transfer(amount uint64, decimals uint8, extra []types.Identity) error {
	mint := f.mint.Identity()
	_, err := f.host.Invoke(context.Background(), "transfer", []runtime.Signer{f.alice}, func(rc *runtime.Context) error {
		src, _ := AccountAddress(f.alice.Identity(), mint)
		dst, _ := AccountAddress(f.bob.Identity(), mint)
		return f.ledger.TransferChecked(rc, TransferArgs{
			Source: src, Mint: mint, Destination: dst, Authority: f.alice.Identity(),
			Amount: amount, Decimals: decimals, Extra: extra,
		})
	})
	return err
}

func TestMintAndTransferWithoutHook(t *testing.T) {
	f := newFixture(t, types.ZeroIdentity)
	assert.Equal(t, uint64(100), f.balance(t, f.alice.Identity()))

	require.NoError(t, f.transfer(40, 9, nil))
	assert.Equal(t, uint64(60), f.balance(t, f.alice.Identity()))
	assert.Equal(t, uint64(40), f.balance(t, f.bob.Identity()))
}

func TestTransferFailures(t *testing.T) {
	tests := []struct {
		name     string
		amount   uint64
		decimals uint8
		wantErr  error
	}{
		{"insufficient balance", 101, 9, types.ErrInsufficientBalance},
		{"wrong decimals", 1, 6, types.ErrDecimalsMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, types.ZeroIdentity)
			assert.ErrorIs(t, f.transfer(tt.amount, tt.decimals, nil), tt.wantErr)
			assert.Equal(t, uint64(100), f.balance(t, f.alice.Identity()))
			assert.Equal(t, uint64(0), f.balance(t, f.bob.Identity()))
		})
	}
}

func TestTransferRequiresOwnerSignature(t *testing.T) {
	f := newFixture(t, types.ZeroIdentity)
	mint := f.mint.Identity()
	_, err := f.host.Invoke(context.Background(), "steal", []runtime.Signer{f.bob}, func(rc *runtime.Context) error {
		src, _ := AccountAddress(f.alice.Identity(), mint)
		dst, _ := AccountAddress(f.bob.Identity(), mint)
		return f.ledger.TransferChecked(rc, TransferArgs{
			Source: src, Mint: mint, Destination: dst, Authority: f.alice.Identity(), Amount: 1, Decimals: 9,
		})
	})
	assert.ErrorIs(t, err, types.ErrMissingSignature)
}

func TestMintToRequiresAuthority(t *testing.T) {
	f := newFixture(t, types.ZeroIdentity)
	mint := f.mint.Identity()
	_, err := f.host.Invoke(context.Background(), "mint", []runtime.Signer{f.alice}, func(rc *runtime.Context) error {
		dst, _ := AccountAddress(f.alice.Identity(), mint)
		return f.ledger.MintTo(rc, mint, dst, 1)
	})
	assert.ErrorIs(t, err, types.ErrMissingSignature)
}

func TestMintToOverflow(t *testing.T) {
	f := newFixture(t, types.ZeroIdentity)
	mint := f.mint.Identity()
	_, err := f.host.Invoke(context.Background(), "mint", []runtime.Signer{f.admin}, func(rc *runtime.Context) error {
		dst, _ := AccountAddress(f.alice.Identity(), mint)
		return f.ledger.MintTo(rc, mint, dst, math.MaxUint64)
	})
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestCreateAccountTwice(t *testing.T) {
	f := newFixture(t, types.ZeroIdentity)
	_, err := f.host.Invoke(context.Background(), "again", nil, func(rc *runtime.Context) error {
		_, err := f.ledger.CreateAccount(rc, f.alice.Identity(), f.mint.Identity())
		return err
	})
	assert.ErrorIs(t, err, types.ErrAccountInUse)

	f.invoke(t, "ensure", nil, func(rc *runtime.Context) error {
		addr, err := f.ledger.EnsureAccount(rc, f.alice.Identity(), f.mint.Identity())
		want, _ := AccountAddress(f.alice.Identity(), f.mint.Identity())
		assert.Equal(t, want, addr)
		return err
	})
}

// recordingHook checks the transferring marker and optionally rejects.
type recordingHook struct {
	calls    int
	sawFlag  bool
	accounts []types.Identity
	reject   error
}

func (h *recordingHook) Execute(rc *runtime.Context, accounts []types.Identity, amount uint64) error {
	h.calls++
	h.accounts = accounts
	src, err := LoadTokenAccount(rc.Reader(), accounts[resolve.IndexSource])
	if err != nil {
		return err
	}
	h.sawFlag = src.Transferring
	return h.reject
}

func publishDescriptor(t *testing.T, f *fixture, rules []resolve.AccountRule) {
	t.Helper()
	proof, addr, err := resolve.DescriptorAddress(testHookID, f.mint.Identity())
	require.NoError(t, err)
	data, err := resolve.Encode(rules)
	require.NoError(t, err)
	f.invoke(t, "descriptor", nil, func(rc *runtime.Context) error {
		signed, err := rc.Enter(testHookID).SignWith(proof)
		if err != nil {
			return err
		}
		return signed.Create(addr, data)
	})
}

func TestTransferCallsHook(t *testing.T) {
	f := newFixture(t, testHookID)
	h := &recordingHook{}
	f.ledger.RegisterHook(testHookID, h)

	marker := types.ProgramIdentity("marker")
	publishDescriptor(t, f, []resolve.AccountRule{resolve.Static(marker, false, false)})

	assert.ErrorIs(t, f.transfer(10, 9, nil), types.ErrAccountListMismatch)
	assert.Equal(t, 0, h.calls)

	require.NoError(t, f.transfer(10, 9, []types.Identity{marker}))
	assert.Equal(t, 1, h.calls)
	assert.True(t, h.sawFlag)
	require.Len(t, h.accounts, resolve.FixedAccounts+1)
	assert.Equal(t, marker, h.accounts[resolve.FixedAccounts])

	// The marker is cleared once the transfer completes.
	require.NoError(t, f.host.View(context.Background(), func(r types.Reader) error {
		src, _ := AccountAddress(f.alice.Identity(), f.mint.Identity())
		a, err := LoadTokenAccount(r, src)
		require.NoError(t, err)
		assert.False(t, a.Transferring)
		assert.Equal(t, uint64(90), a.Amount)
		return nil
	}))
}

func TestHookRejectionAbortsTransfer(t *testing.T) {
	f := newFixture(t, testHookID)
	boom := errors.New("rejected")
	f.ledger.RegisterHook(testHookID, &recordingHook{reject: boom})
	publishDescriptor(t, f, nil)

	assert.ErrorIs(t, f.transfer(10, 9, nil), boom)
	assert.Equal(t, uint64(100), f.balance(t, f.alice.Identity()))
	assert.Equal(t, uint64(0), f.balance(t, f.bob.Identity()))
}

func TestUnregisteredHook(t *testing.T) {
	f := newFixture(t, testHookID)
	publishDescriptor(t, f, nil)
	assert.ErrorIs(t, f.transfer(10, 9, nil), types.ErrHookNotRegistered)
}

func TestResolveExtras(t *testing.T) {
	f := newFixture(t, testHookID)
	rules := []resolve.AccountRule{
		resolve.Seeded([]resolve.Seed{resolve.Literal([]byte("whitelist")), resolve.AccountData(resolve.IndexDestination, TokenOwnerOffset, 32)}, false, false),
	}
	publishDescriptor(t, f, rules)

	require.NoError(t, f.host.View(context.Background(), func(r types.Reader) error {
		extras, err := ResolveExtras(r, f.mint.Identity(), f.alice.Identity(), f.bob.Identity(), 1)
		require.NoError(t, err)
		bob := f.bob.Identity()
		want, err := derive.Address(testHookID, []byte("whitelist"), bob[:])
		require.NoError(t, err)
		assert.Equal(t, []types.Identity{want}, extras)
		return nil
	}))
}

func TestRecordLayouts(t *testing.T) {
	a := TokenAccount{Mint: types.ProgramIdentity("m"), Owner: types.ProgramIdentity("o"), Amount: 7, Transferring: true}
	data := a.encode()
	require.Len(t, data, TokenAccountSize)
	assert.Equal(t, a.Owner[:], data[TokenOwnerOffset:TokenOwnerOffset+32])
	assert.Equal(t, byte(1), data[TokenTransferringOffset])

	got, err := DecodeTokenAccount(data)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = DecodeMint(data)
	assert.ErrorIs(t, err, types.ErrInvalidAccountData)
}
