package hook

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hookvault/internal/keys"
	"github.com/mesh-intelligence/hookvault/internal/ledger"
	"github.com/mesh-intelligence/hookvault/internal/resolve"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/internal/store"
	"github.com/mesh-intelligence/hookvault/internal/whitelist"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

type fixture struct {
	host   *runtime.Host
	ledger *ledger.Ledger
	hook   *Program
	admin  *keys.Keypair
	mint   *keys.Keypair
	alice  *keys.Keypair
	bob    *keys.Keypair
	carol  *keys.Keypair
}

func keypair(t *testing.T, b byte) *keys.Keypair {
	t.Helper()
	k, err := keys.FromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return k
}

func newFixture(t *testing.T, variant string) *fixture {
	t.Helper()
	m := store.NewMemory()
	require.NoError(t, m.Attach(types.Config{Backend: types.BackendMemory}))
	t.Cleanup(func() { _ = m.Detach() })

	members, err := whitelist.New(variant, ProgramID)
	require.NoError(t, err)

	f := &fixture{
		host:   runtime.NewHost(m, nil),
		ledger: ledger.New(),
		hook:   New(members, nil),
		admin:  keypair(t, 1),
		mint:   keypair(t, 2),
		alice:  keypair(t, 3),
		bob:    keypair(t, 4),
		carol:  keypair(t, 5),
	}
	f.ledger.RegisterHook(ProgramID, f.hook)

	mint := f.mint.Identity()
	_, err = f.host.Invoke(context.Background(), "setup", []runtime.Signer{f.admin, f.mint}, func(rc *runtime.Context) error {
		if err := f.ledger.CreateMint(rc, mint, ledger.Mint{Authority: f.admin.Identity(), Decimals: 9, Hook: ProgramID}); err != nil {
			return err
		}
		if err := f.hook.Initialize(rc, f.admin.Identity(), mint, f.admin.Identity()); err != nil {
			return err
		}
		for _, k := range []*keys.Keypair{f.alice, f.bob, f.carol} {
			addr, err := f.ledger.CreateAccount(rc, k.Identity(), mint)
			if err != nil {
				return err
			}
			if err := f.ledger.MintTo(rc, mint, addr, 100); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) whitelist(t *testing.T, subject types.Identity) {
	t.Helper()
	_, err := f.host.Invoke(context.Background(), "add", []runtime.Signer{f.admin}, func(rc *runtime.Context) error {
		return f.hook.AddToWhitelist(rc, f.admin.Identity(), subject)
	})
	require.NoError(t, err)
}

func (f *fixture) transfer(from, to *keys.Keypair, amount uint64) error {
	mint := f.mint.Identity()
	_, err := f.host.Invoke(context.Background(), "transfer", []runtime.Signer{from}, func(rc *runtime.Context) error {
		extras, err := ledger.ResolveExtras(rc.Reader(), mint, from.Identity(), to.Identity(), amount)
		if err != nil {
			return err
		}
		src, _ := ledger.AccountAddress(from.Identity(), mint)
		dst, _ := ledger.AccountAddress(to.Identity(), mint)
		return f.ledger.TransferChecked(rc, ledger.TransferArgs{
			Source: src, Mint: mint, Destination: dst, Authority: from.Identity(),
			Amount: amount, Decimals: 9, Extra: extras,
		})
	})
	return err
}

func (f *fixture) balance(t *testing.T, k *keys.Keypair) uint64 {
	t.Helper()
	var got uint64
	require.NoError(t, f.host.View(context.Background(), func(r types.Reader) error {
		var err error
		got, err = ledger.Balance(r, k.Identity(), f.mint.Identity())
		return err
	}))
	return got
}

func TestAsymmetricPolicyThroughLedger(t *testing.T) {
	for _, variant := range []string{types.MembershipRegistry, types.MembershipRoster} {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.whitelist(t, f.alice.Identity())

			// Non-member to non-member is rejected and nothing moves.
			assert.ErrorIs(t, f.transfer(f.bob, f.carol, 10), types.ErrNotWhitelisted)
			assert.Equal(t, uint64(100), f.balance(t, f.bob))
			assert.Equal(t, uint64(100), f.balance(t, f.carol))

			// Non-member to member succeeds.
			require.NoError(t, f.transfer(f.bob, f.alice, 10))
			// Member to anyone succeeds.
			require.NoError(t, f.transfer(f.alice, f.carol, 30))

			assert.Equal(t, uint64(80), f.balance(t, f.alice))
			assert.Equal(t, uint64(90), f.balance(t, f.bob))
			assert.Equal(t, uint64(130), f.balance(t, f.carol))
		})
	}
}

func TestInitializeTwice(t *testing.T) {
	f := newFixture(t, types.MembershipRegistry)
	_, err := f.host.Invoke(context.Background(), "again", []runtime.Signer{f.admin}, func(rc *runtime.Context) error {
		return f.hook.Initialize(rc, f.admin.Identity(), f.mint.Identity(), f.admin.Identity())
	})
	assert.ErrorIs(t, err, types.ErrAlreadyInitialized)
}

func TestWhitelistRequiresAdmin(t *testing.T) {
	f := newFixture(t, types.MembershipRegistry)
	_, err := f.host.Invoke(context.Background(), "add", []runtime.Signer{f.bob}, func(rc *runtime.Context) error {
		return f.hook.AddToWhitelist(rc, f.bob.Identity(), f.bob.Identity())
	})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = f.host.Invoke(context.Background(), "remove", []runtime.Signer{f.bob}, func(rc *runtime.Context) error {
		return f.hook.RemoveFromWhitelist(rc, f.admin.Identity(), f.alice.Identity())
	})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestRemovedMemberIsRejected(t *testing.T) {
	f := newFixture(t, types.MembershipRegistry)
	f.whitelist(t, f.alice.Identity())
	require.NoError(t, f.transfer(f.bob, f.alice, 1))

	_, err := f.host.Invoke(context.Background(), "remove", []runtime.Signer{f.admin}, func(rc *runtime.Context) error {
		return f.hook.RemoveFromWhitelist(rc, f.admin.Identity(), f.alice.Identity())
	})
	require.NoError(t, err)
	assert.ErrorIs(t, f.transfer(f.bob, f.alice, 1), types.ErrNotWhitelisted)
}

func TestExecuteOutsideTransfer(t *testing.T) {
	f := newFixture(t, types.MembershipRegistry)
	f.whitelist(t, f.alice.Identity())
	f.whitelist(t, f.bob.Identity())
	mint := f.mint.Identity()

	// Correct accounts, both owners approved, but no transfer in progress.
	_, err := f.host.Invoke(context.Background(), "direct", []runtime.Signer{f.alice}, func(rc *runtime.Context) error {
		extras, err := ledger.ResolveExtras(rc.Reader(), mint, f.alice.Identity(), f.bob.Identity(), 5)
		if err != nil {
			return err
		}
		src, _ := ledger.AccountAddress(f.alice.Identity(), mint)
		dst, _ := ledger.AccountAddress(f.bob.Identity(), mint)
		desc, err := f.hook.DescriptorAddress(mint)
		if err != nil {
			return err
		}
		accounts := append([]types.Identity{src, mint, dst, f.alice.Identity(), desc}, extras...)
		return f.hook.Execute(rc, accounts, 5)
	})
	assert.ErrorIs(t, err, types.ErrNotTransferring)
}

func TestExecuteRejectsSubstitutedWhitelistAccount(t *testing.T) {
	f := newFixture(t, types.MembershipRegistry)
	f.whitelist(t, f.alice.Identity())
	mint := f.mint.Identity()

	// bob attaches alice's record in place of his own.
	_, err := f.host.Invoke(context.Background(), "spoof", []runtime.Signer{f.bob}, func(rc *runtime.Context) error {
		g := whitelist.NewRegistry(ProgramID)
		_, aliceRec, _ := g.RecordAddress(f.alice.Identity())
		_, carolRec, _ := g.RecordAddress(f.carol.Identity())
		src, _ := ledger.AccountAddress(f.bob.Identity(), mint)
		dst, _ := ledger.AccountAddress(f.carol.Identity(), mint)
		return f.ledger.TransferChecked(rc, ledger.TransferArgs{
			Source: src, Mint: mint, Destination: dst, Authority: f.bob.Identity(),
			Amount: 1, Decimals: 9, Extra: []types.Identity{aliceRec, carolRec},
		})
	})
	assert.ErrorIs(t, err, types.ErrAccountListMismatch)
}

func TestDescriptorMatchesRules(t *testing.T) {
	for _, variant := range []string{types.MembershipRegistry, types.MembershipRoster} {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			desc, err := f.hook.DescriptorAddress(f.mint.Identity())
			require.NoError(t, err)
			require.NoError(t, f.host.View(context.Background(), func(r types.Reader) error {
				acct, err := r.Get(desc)
				require.NoError(t, err)
				assert.Len(t, acct.Data, resolve.Size(len(f.hook.Rules())))
				rules, err := resolve.Decode(acct.Data)
				require.NoError(t, err)
				assert.Equal(t, f.hook.Rules(), rules)
				return nil
			}))
		})
	}
}

func TestTrackRequiresTracker(t *testing.T) {
	f := newFixture(t, types.MembershipRoster)
	f.whitelist(t, f.alice.Identity())

	_, err := f.host.Invoke(context.Background(), "track", []runtime.Signer{f.bob}, func(rc *runtime.Context) error {
		return f.hook.Track(rc, f.alice.Identity(), 50)
	})
	assert.ErrorIs(t, err, types.ErrMissingSignature)

	_, err = f.host.Invoke(context.Background(), "track", []runtime.Signer{f.admin}, func(rc *runtime.Context) error {
		return f.hook.Track(rc, f.alice.Identity(), 50)
	})
	require.NoError(t, err)

	roster := f.hook.Membership().(whitelist.Tracker)
	require.NoError(t, f.host.View(context.Background(), func(r types.Reader) error {
		bal, ok, err := roster.Snapshot(r, f.alice.Identity())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(50), bal)
		return nil
	}))
}
