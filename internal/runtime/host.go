// Package runtime is the host that executes programs against a store.
//
// Every state-changing operation is one invocation: the host checks that
// each signer holds its private key, opens a store transaction, hands the
// program a Context and commits only if the program returns nil. Programs
// call each other synchronously through the same Context, so a failure
// anywhere in the call chain discards every write of the invocation.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/hookvault/internal/keys"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Signer holds a private key for an identity. *keys.Keypair implements it.
type Signer interface {
	Identity() types.Identity
	Sign(msg []byte) []byte
}

// Receipt identifies a committed invocation.
type Receipt struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Signers []types.Identity `json:"signers"`
}

// Host runs invocations against a store.
type Host struct {
	store  types.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewHost returns a host over an attached store. A nil logger discards
// output.
func NewHost(store types.Store, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{store: store, logger: logger, now: time.Now}
}

// Store returns the store the host executes against.
func (h *Host) Store() types.Store {
	return h.store
}

// Invoke runs fn as one atomic invocation signed by signers.
func (h *Host) Invoke(ctx context.Context, name string, signers []Signer, fn func(rc *Context) error) (Receipt, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Receipt{}, fmt.Errorf("invocation id: %w", err)
	}
	receipt := Receipt{ID: id.String(), Name: name}

	signed := make(map[types.Identity]bool, len(signers))
	challenge := []byte("hookvault.invoke:" + receipt.ID + ":" + name)
	for _, s := range signers {
		who := s.Identity()
		if !keys.Verify(who, challenge, s.Sign(challenge)) {
			return receipt, fmt.Errorf("%w: %s", types.ErrMissingSignature, who)
		}
		if !signed[who] {
			signed[who] = true
			receipt.Signers = append(receipt.Signers, who)
		}
	}

	logger := h.logger.With("invocation", receipt.ID, "name", name)
	err = h.store.Update(ctx, func(tx types.Tx) error {
		return fn(&Context{
			tx:      tx,
			signers: signed,
			logger:  logger,
		})
	})

	inv := types.Invocation{
		ID:      receipt.ID,
		Name:    name,
		Signers: receipt.Signers,
		Status:  types.InvocationCommitted,
		At:      h.now(),
	}
	if err != nil {
		inv.Status = types.InvocationAborted
		inv.Error = err.Error()
		logger.Warn("invocation aborted", "signers", receipt.Signers, "status", inv.Status, "error", err)
	} else {
		logger.Info("invocation committed", "signers", receipt.Signers, "status", inv.Status)
	}

	if j, ok := h.store.(types.Journal); ok {
		if jerr := j.Record(ctx, inv); jerr != nil {
			logger.Warn("journal record failed", "error", jerr)
		}
	}

	return receipt, err
}

// View runs fn against a read-only snapshot of the store.
func (h *Host) View(ctx context.Context, fn func(r types.Reader) error) error {
	return h.store.View(ctx, fn)
}
