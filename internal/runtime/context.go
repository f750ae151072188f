package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/mesh-intelligence/hookvault/internal/derive"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Context is a program's handle on the running invocation. It is only
// valid inside the fn passed to Host.Invoke.
//
// A Context names the executing program. Accounts are created, written and
// closed on behalf of that program only.
type Context struct {
	tx      types.Tx
	program types.Identity
	signers map[types.Identity]bool
	logger  *slog.Logger
}

// Program returns the executing program. It is the zero identity until a
// program is entered.
func (c *Context) Program() types.Identity {
	return c.program
}

// Enter returns a Context executing as program. Signers carry over.
func (c *Context) Enter(program types.Identity) *Context {
	next := *c
	next.program = program
	return &next
}

// IsSigner reports whether id signed the invocation or is a derived
// authority granted by SignWith.
func (c *Context) IsSigner(id types.Identity) bool {
	return c.signers[id]
}

// RequireSigner fails with ErrMissingSignature unless id signed.
func (c *Context) RequireSigner(id types.Identity) error {
	if !c.signers[id] {
		return fmt.Errorf("%w: %s", types.ErrMissingSignature, id)
	}
	return nil
}

// SignWith returns a Context in which the address named by proof is an
// additional signer. Only the program the address was derived for may
// present the proof.
func (c *Context) SignWith(proof derive.Proof) (*Context, error) {
	if proof.Program != c.program {
		return nil, fmt.Errorf("%w: proof belongs to %s, executing %s",
			types.ErrMissingSignature, proof.Program, c.program)
	}
	addr, err := proof.Address()
	if err != nil {
		return nil, fmt.Errorf("derived signer: %w", err)
	}
	next := *c
	next.signers = maps.Clone(c.signers)
	next.signers[addr] = true
	return &next, nil
}

// Reader exposes the invocation's view of the store for read-only helpers.
func (c *Context) Reader() types.Reader {
	return c.tx
}

// Load returns the account at addr.
func (c *Context) Load(addr types.Identity) (*types.Account, error) {
	return c.tx.Get(addr)
}

// Exists reports whether an account with data exists at addr.
func (c *Context) Exists(addr types.Identity) (bool, error) {
	acct, err := c.tx.Get(addr)
	if errors.Is(err, types.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acct.Exists(), nil
}

// Create allocates an account owned by the executing program. The new
// address must sign, either as a keypair or through SignWith.
func (c *Context) Create(addr types.Identity, data []byte) error {
	if c.program.IsZero() {
		return fmt.Errorf("%w: no program entered", types.ErrIllegalOwner)
	}
	if err := c.RequireSigner(addr); err != nil {
		return err
	}
	exists, err := c.Exists(addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", types.ErrAccountInUse, addr)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty account", types.ErrInvalidAccountData)
	}
	return c.tx.Put(&types.Account{Address: addr, Owner: c.program, Data: data})
}

// Store replaces the data of an account owned by the executing program.
func (c *Context) Store(addr types.Identity, data []byte) error {
	acct, err := c.owned(addr)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty account", types.ErrInvalidAccountData)
	}
	acct.Data = data
	return c.tx.Put(acct)
}

// Close deletes an account owned by the executing program.
func (c *Context) Close(addr types.Identity) error {
	if _, err := c.owned(addr); err != nil {
		return err
	}
	return c.tx.Delete(addr)
}

func (c *Context) owned(addr types.Identity) (*types.Account, error) {
	acct, err := c.tx.Get(addr)
	if err != nil {
		return nil, err
	}
	if acct.Owner != c.program {
		return nil, fmt.Errorf("%w: %s owned by %s", types.ErrIllegalOwner, addr, acct.Owner)
	}
	return acct, nil
}

// Logger returns the invocation logger tagged with the executing program.
func (c *Context) Logger() *slog.Logger {
	if c.program.IsZero() {
		return c.logger
	}
	return c.logger.With("program", c.program)
}
