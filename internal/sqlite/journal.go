package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Record implements types.Journal.
func (b *Backend) Record(ctx context.Context, inv types.Invocation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrDetached
	}

	signers, err := json.Marshal(inv.Signers)
	if err != nil {
		return fmt.Errorf("encode signers: %w", err)
	}
	at := inv.At
	if at.IsZero() {
		at = time.Now()
	}
	var errText any
	if inv.Error != "" {
		errText = inv.Error
	}
	_, err = b.db.ExecContext(ctx, insertInvocation,
		inv.ID, inv.Name, string(signers), inv.Status, errText, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// Invocations implements types.Journal, newest first. limit <= 0 returns
// every entry.
func (b *Backend) Invocations(ctx context.Context, limit int) ([]types.Invocation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}

	query := selectInvocations
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []types.Invocation
	for rows.Next() {
		var (
			inv       types.Invocation
			signers   string
			errText   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&inv.ID, &inv.Name, &signers, &inv.Status, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if err := json.Unmarshal([]byte(signers), &inv.Signers); err != nil {
			return nil, fmt.Errorf("decode signers: %w", err)
		}
		inv.Error = errText.String
		if inv.At, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse invocation time: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return out, nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
