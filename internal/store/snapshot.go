package store

import (
	"context"
	"fmt"
	"io"

	"github.com/mesh-intelligence/hookvault/internal/codec"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// Snapshot is the CBOR document produced by Export.
type Snapshot struct {
	Version  int              `cbor:"1,keyasint"`
	Accounts []*types.Account `cbor:"2,keyasint"`
}

// Export writes every account in s as one deterministic CBOR document.
// Identical state always produces identical bytes.
func Export(ctx context.Context, s types.Store, w io.Writer) error {
	var snap Snapshot
	err := s.View(ctx, func(r types.Reader) error {
		accts, err := r.Accounts()
		if err != nil {
			return err
		}
		snap = Snapshot{Version: SnapshotVersion, Accounts: accts}
		return nil
	})
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	if err := codec.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Import replaces every account in s with the contents of a snapshot.
// Each check runs against the imported state before it commits; nothing
// changes if the snapshot fails to decode or any check fails.
func Import(ctx context.Context, s types.Store, r io.Reader, checks ...func(types.Reader) error) error {
	var snap Snapshot
	if err := codec.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("decode snapshot: unsupported version %d", snap.Version)
	}
	return s.Update(ctx, func(tx types.Tx) error {
		existing, err := tx.Accounts()
		if err != nil {
			return err
		}
		for _, acct := range existing {
			if err := tx.Delete(acct.Address); err != nil {
				return fmt.Errorf("clear account %s: %w", acct.Address, err)
			}
		}
		for _, acct := range snap.Accounts {
			if acct == nil {
				continue
			}
			if err := tx.Put(acct); err != nil {
				return fmt.Errorf("import account %s: %w", acct.Address, err)
			}
		}
		for _, check := range checks {
			if err := check(tx); err != nil {
				return fmt.Errorf("verify snapshot: %w", err)
			}
		}
		return nil
	})
}
