package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hookvault/pkg/types"
)

func memoryConfig() types.Config {
	return types.Config{Backend: types.BackendMemory}
}

func attachedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	require.NoError(t, m.Attach(memoryConfig()))
	t.Cleanup(func() { _ = m.Detach() })
	return m
}

func account(name string, data ...byte) *types.Account {
	return &types.Account{
		Address: types.ProgramIdentity(name),
		Owner:   types.ProgramIdentity("owner"),
		Data:    data,
	}
}

func TestMemoryLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Update(ctx, func(types.Tx) error { return nil })
	assert.ErrorIs(t, err, types.ErrDetached)

	require.NoError(t, m.Attach(memoryConfig()))
	assert.ErrorIs(t, m.Attach(memoryConfig()), types.ErrAlreadyAttached)

	require.NoError(t, m.Detach())
	require.NoError(t, m.Detach())
	assert.ErrorIs(t, m.View(ctx, func(types.Reader) error { return nil }), types.ErrDetached)
}

func TestMemoryAttachValidatesConfig(t *testing.T) {
	m := NewMemory()
	assert.ErrorIs(t, m.Attach(types.Config{}), types.ErrBackendEmpty)
}

func TestMemoryUpdateCommitsOnSuccess(t *testing.T) {
	m := attachedMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Update(ctx, func(tx types.Tx) error {
		return tx.Put(account("a", 1))
	}))

	require.NoError(t, m.View(ctx, func(r types.Reader) error {
		got, err := r.Get(types.ProgramIdentity("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, got.Data)
		return nil
	}))
}

func TestMemoryUpdateDiscardsOnError(t *testing.T) {
	m := attachedMemory(t)
	ctx := context.Background()
	require.NoError(t, m.Update(ctx, func(tx types.Tx) error {
		return tx.Put(account("a", 1))
	}))

	boom := errors.New("boom")
	err := m.Update(ctx, func(tx types.Tx) error {
		require.NoError(t, tx.Put(account("a", 2)))
		require.NoError(t, tx.Put(account("b", 3)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.View(ctx, func(r types.Reader) error {
		got, err := r.Get(types.ProgramIdentity("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, got.Data)
		_, err = r.Get(types.ProgramIdentity("b"))
		assert.ErrorIs(t, err, types.ErrAccountNotFound)
		return nil
	}))
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	m := attachedMemory(t)
	ctx := context.Background()
	require.NoError(t, m.Update(ctx, func(tx types.Tx) error {
		return tx.Put(account("a", 1))
	}))

	require.NoError(t, m.View(ctx, func(r types.Reader) error {
		got, err := r.Get(types.ProgramIdentity("a"))
		require.NoError(t, err)
		got.Data[0] = 9
		again, err := r.Get(types.ProgramIdentity("a"))
		require.NoError(t, err)
		assert.Equal(t, byte(1), again.Data[0])
		return nil
	}))
}

func TestMemoryDeleteMissing(t *testing.T) {
	m := attachedMemory(t)
	err := m.Update(context.Background(), func(tx types.Tx) error {
		return tx.Delete(types.ProgramIdentity("missing"))
	})
	assert.ErrorIs(t, err, types.ErrAccountNotFound)
}

func TestMemoryJournal(t *testing.T) {
	m := attachedMemory(t)
	ctx := context.Background()
	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, m.Record(ctx, types.Invocation{Name: name, Status: types.InvocationCommitted}))
	}

	got, err := m.Invocations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Name)
	assert.Equal(t, "second", got[1].Name)

	all, err := m.Invocations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := attachedMemory(t)
	ctx := context.Background()
	require.NoError(t, src.Update(ctx, func(tx types.Tx) error {
		require.NoError(t, tx.Put(account("a", 1, 2)))
		return tx.Put(account("b", 3))
	}))

	var first, second bytes.Buffer
	require.NoError(t, Export(ctx, src, &first))
	require.NoError(t, Export(ctx, src, &second))
	assert.Equal(t, first.Bytes(), second.Bytes())

	dst := attachedMemory(t)
	require.NoError(t, dst.Update(ctx, func(tx types.Tx) error {
		return tx.Put(account("stale", 7))
	}))
	require.NoError(t, Import(ctx, dst, bytes.NewReader(first.Bytes())))

	require.NoError(t, dst.View(ctx, func(r types.Reader) error {
		accts, err := r.Accounts()
		require.NoError(t, err)
		require.Len(t, accts, 2)
		_, err = r.Get(types.ProgramIdentity("stale"))
		assert.ErrorIs(t, err, types.ErrAccountNotFound)
		return nil
	}))
}

func TestImportRejectsGarbage(t *testing.T) {
	dst := attachedMemory(t)
	err := Import(context.Background(), dst, bytes.NewReader([]byte{0xff, 0x00}))
	assert.Error(t, err)
}

func TestImportRollsBackOnFailedCheck(t *testing.T) {
	ctx := context.Background()
	src := attachedMemory(t)
	require.NoError(t, src.Update(ctx, func(tx types.Tx) error {
		return tx.Put(account("a", 1))
	}))
	var snap bytes.Buffer
	require.NoError(t, Export(ctx, src, &snap))

	dst := attachedMemory(t)
	require.NoError(t, dst.Update(ctx, func(tx types.Tx) error {
		return tx.Put(account("kept", 9))
	}))
	rejected := errors.New("rejected")
	var sawImported bool
	err := Import(ctx, dst, bytes.NewReader(snap.Bytes()), func(r types.Reader) error {
		_, err := r.Get(types.ProgramIdentity("a"))
		sawImported = err == nil
		return rejected
	})
	assert.ErrorIs(t, err, rejected)
	assert.True(t, sawImported)

	require.NoError(t, dst.View(ctx, func(r types.Reader) error {
		_, err := r.Get(types.ProgramIdentity("kept"))
		assert.NoError(t, err)
		_, err = r.Get(types.ProgramIdentity("a"))
		assert.ErrorIs(t, err, types.ErrAccountNotFound)
		return nil
	}))
}
