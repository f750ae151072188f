package whitelist

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hookvault/internal/keys"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/internal/store"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

var hookID = types.ProgramIdentity("whitelist-test-hook")

func newHost(t *testing.T) *runtime.Host {
	t.Helper()
	m := store.NewMemory()
	require.NoError(t, m.Attach(types.Config{Backend: types.BackendMemory}))
	t.Cleanup(func() { _ = m.Detach() })
	return runtime.NewHost(m, nil)
}

func asHook(fn func(rc *runtime.Context) error) func(rc *runtime.Context) error {
	return func(rc *runtime.Context) error {
		return fn(rc.Enter(hookID))
	}
}

func subject(n int) types.Identity {
	var id types.Identity
	binary.LittleEndian.PutUint32(id[:4], uint32(n))
	id[31] = 0xaa
	return id
}

func TestNewVariant(t *testing.T) {
	tests := []struct {
		variant string
		want    string
		wantErr error
	}{
		{"", types.MembershipRegistry, nil},
		{types.MembershipRegistry, types.MembershipRegistry, nil},
		{types.MembershipRoster, types.MembershipRoster, nil},
		{"ledger", "", types.ErrMembershipUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			m, err := New(tt.variant, hookID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Variant())
		})
	}
}

func TestMembershipRoundTrip(t *testing.T) {
	for _, variant := range []string{types.MembershipRegistry, types.MembershipRoster} {
		t.Run(variant, func(t *testing.T) {
			h := newHost(t)
			ctx := context.Background()
			m, err := New(variant, hookID)
			require.NoError(t, err)
			x := subject(1)

			_, err = h.Invoke(ctx, "setup", nil, asHook(m.Setup))
			require.NoError(t, err)

			isMember := func() bool {
				var ok bool
				require.NoError(t, h.View(ctx, func(r types.Reader) error {
					var err error
					ok, err = m.IsMember(r, x)
					return err
				}))
				return ok
			}
			assert.False(t, isMember())

			_, err = h.Invoke(ctx, "add", nil, asHook(func(rc *runtime.Context) error { return m.Add(rc, x) }))
			require.NoError(t, err)
			assert.True(t, isMember())

			_, err = h.Invoke(ctx, "add", nil, asHook(func(rc *runtime.Context) error { return m.Add(rc, x) }))
			assert.ErrorIs(t, err, types.ErrAlreadyExists)

			_, err = h.Invoke(ctx, "remove", nil, asHook(func(rc *runtime.Context) error { return m.Remove(rc, x) }))
			require.NoError(t, err)
			assert.False(t, isMember())

			_, err = h.Invoke(ctx, "remove", nil, asHook(func(rc *runtime.Context) error { return m.Remove(rc, x) }))
			assert.ErrorIs(t, err, types.ErrRecordNotFound)
		})
	}
}

func TestRegistryRecordAddressesAreDistinct(t *testing.T) {
	g := NewRegistry(hookID)
	_, a, err := g.RecordAddress(subject(1))
	require.NoError(t, err)
	_, b, err := g.RecordAddress(subject(2))
	require.NoError(t, err)
	_, c, err := NewRegistry(types.ProgramIdentity("other")).RecordAddress(subject(1))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRegistryProbe(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()
	g := NewRegistry(hookID)
	src, dst := subject(1), subject(2)

	_, err := h.Invoke(ctx, "add", nil, asHook(func(rc *runtime.Context) error { return g.Add(rc, dst) }))
	require.NoError(t, err)

	_, srcRec, err := g.RecordAddress(src)
	require.NoError(t, err)
	_, dstRec, err := g.RecordAddress(dst)
	require.NoError(t, err)

	require.NoError(t, h.View(ctx, func(r types.Reader) error {
		probe, err := g.Probe(r, []types.Identity{srcRec, dstRec}, src, dst)
		require.NoError(t, err)
		ok, err := probe(src)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = probe(dst)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = g.Probe(r, []types.Identity{dstRec, dstRec}, src, dst)
		assert.ErrorIs(t, err, types.ErrInvalidWhitelistAccount)
		_, err = g.Probe(r, []types.Identity{srcRec}, src, dst)
		assert.ErrorIs(t, err, types.ErrInvalidWhitelistAccount)
		return nil
	}))
}

func TestRegistryRejectsForeignRecord(t *testing.T) {
	h := newHost(t)
	g := NewRegistry(hookID)
	x := subject(1)
	proof, addr, err := g.RecordAddress(x)
	require.NoError(t, err)

	// A record at the right address owned by another program is not trusted.
	_, err = h.Invoke(context.Background(), "forge", nil, func(rc *runtime.Context) error {
		signed, err := rc.Enter(hookID).SignWith(proof)
		if err != nil {
			return err
		}
		return signed.Enter(types.ProgramIdentity("imposter")).Create(addr, []byte{1})
	})
	require.NoError(t, err)

	require.NoError(t, h.View(context.Background(), func(r types.Reader) error {
		_, err := g.IsMember(r, x)
		assert.ErrorIs(t, err, types.ErrInvalidWhitelistAccount)
		return nil
	}))
}

func TestRosterCapacity(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()
	s := NewRoster(hookID)
	_, err := h.Invoke(ctx, "setup", nil, asHook(s.Setup))
	require.NoError(t, err)

	_, err = h.Invoke(ctx, "fill", nil, asHook(func(rc *runtime.Context) error {
		for i := 0; i < RosterCapacity; i++ {
			if err := s.Add(rc, subject(i)); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, err)

	_, err = h.Invoke(ctx, "overflow", nil, asHook(func(rc *runtime.Context) error {
		return s.Add(rc, subject(RosterCapacity))
	}))
	assert.ErrorIs(t, err, types.ErrRosterFull)

	require.NoError(t, h.View(ctx, func(r types.Reader) error {
		entries, err := s.Entries(r)
		require.NoError(t, err)
		assert.Len(t, entries, RosterCapacity)
		return nil
	}))
}

func TestRosterTrack(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()
	s := NewRoster(hookID)
	x := subject(7)

	_, err := h.Invoke(ctx, "setup", nil, asHook(func(rc *runtime.Context) error {
		if err := s.Setup(rc); err != nil {
			return err
		}
		if err := s.Add(rc, x); err != nil {
			return err
		}
		if err := s.Track(rc, x, 500); err != nil {
			return err
		}
		return s.Track(rc, subject(8), 9)
	}))
	require.NoError(t, err)

	require.NoError(t, h.View(ctx, func(r types.Reader) error {
		bal, ok, err := s.Snapshot(r, x)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(500), bal)

		_, ok, err = s.Snapshot(r, subject(8))
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestRosterSetupTwice(t *testing.T) {
	h := newHost(t)
	s := NewRoster(hookID)
	_, err := h.Invoke(context.Background(), "setup", nil, asHook(s.Setup))
	require.NoError(t, err)
	_, err = h.Invoke(context.Background(), "setup", nil, asHook(s.Setup))
	assert.ErrorIs(t, err, types.ErrAlreadyInitialized)
}

func TestDecodeRosterRejectsOversizedCount(t *testing.T) {
	data := encodeRoster(nil)
	binary.LittleEndian.PutUint32(data[8:12], RosterCapacity+1)
	_, err := decodeRoster(data)
	assert.ErrorIs(t, err, types.ErrInvalidAccountData)
}

func TestConfig(t *testing.T) {
	h := newHost(t)
	ctx := context.Background()
	admin, err := keys.FromSeed(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	stranger, err := keys.FromSeed(bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	tracker := subject(99)

	_, err = h.Invoke(ctx, "config", nil, asHook(func(rc *runtime.Context) error {
		_, err := CreateConfig(rc, admin.Identity(), tracker, types.MembershipRoster)
		return err
	}))
	require.NoError(t, err)

	_, err = h.Invoke(ctx, "config", nil, asHook(func(rc *runtime.Context) error {
		_, err := CreateConfig(rc, stranger.Identity(), tracker, types.MembershipRoster)
		return err
	}))
	assert.ErrorIs(t, err, types.ErrAlreadyInitialized)

	require.NoError(t, h.View(ctx, func(r types.Reader) error {
		cfg, err := LoadConfig(r, hookID)
		require.NoError(t, err)
		assert.Equal(t, admin.Identity(), cfg.Admin)
		assert.Equal(t, tracker, cfg.Tracker)
		assert.Equal(t, types.MembershipRoster, cfg.Variant)

		assert.NoError(t, CheckVariant(r, hookID, types.MembershipRoster))
		assert.ErrorIs(t, CheckVariant(r, hookID, types.MembershipRegistry), types.ErrMembershipMismatch)
		return nil
	}))

	tests := []struct {
		name    string
		signer  *keys.Keypair
		claimed types.Identity
		wantErr error
	}{
		{"admin", admin, admin.Identity(), nil},
		{"stranger", stranger, stranger.Identity(), types.ErrUnauthorized},
		{"admin unsigned", stranger, admin.Identity(), types.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Invoke(ctx, "admin", []runtime.Signer{tt.signer}, asHook(func(rc *runtime.Context) error {
				_, err := RequireAdmin(rc, tt.claimed)
				return err
			}))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateConfigUnknownVariant(t *testing.T) {
	h := newHost(t)
	_, err := h.Invoke(context.Background(), "config", nil, asHook(func(rc *runtime.Context) error {
		_, err := CreateConfig(rc, subject(1), subject(2), "ledger")
		return err
	}))
	assert.ErrorIs(t, err, types.ErrMembershipUnknown)
}

func TestLoadConfigMissing(t *testing.T) {
	h := newHost(t)
	require.NoError(t, h.View(context.Background(), func(r types.Reader) error {
		_, err := LoadConfig(r, hookID)
		assert.ErrorIs(t, err, types.ErrNotInitialized)
		assert.NoError(t, CheckVariant(r, hookID, types.MembershipRegistry))
		return nil
	}))
}
