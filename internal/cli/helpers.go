package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hookvault/internal/custody"
	"github.com/mesh-intelligence/hookvault/internal/keys"
	"github.com/mesh-intelligence/hookvault/internal/paths"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// openService attaches the configured store. The caller must Close it.
func (a *app) openService() (*custody.Service, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, userError(err)
	}
	svc, err := custody.Open(cfg, a.logger)
	if err != nil {
		return nil, opError("open store", err)
	}
	return svc, nil
}

// loadKey reads the named keypair from the keys directory, or from a path.
func (a *app) loadKey(name string) (*keys.Keypair, error) {
	if name == "" {
		return nil, userError(errors.New("a signing key is required (--key)"))
	}
	path, err := paths.KeyPath(a.resolvedConfigDir, name)
	if err != nil {
		return nil, userError(err)
	}
	k, err := keys.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, userError(fmt.Errorf("key %q not found (run vaultctl keygen %s)", name, name))
		}
		return nil, userError(fmt.Errorf("load key %q: %w", name, err))
	}
	return k, nil
}

// resolveIdentity accepts a base58 identity or the name of a local key.
func (a *app) resolveIdentity(arg string) (types.Identity, error) {
	if id, err := types.ParseIdentity(arg); err == nil {
		return id, nil
	}
	k, err := a.loadKey(arg)
	if err != nil {
		return types.ZeroIdentity, userError(fmt.Errorf("%q is neither an identity nor a key name", arg))
	}
	return k.Identity(), nil
}

func parseAmount(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, userError(fmt.Errorf("invalid amount %q", s))
	}
	return n, nil
}

// opError classifies an error returned by a vault operation.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", op, err)
	if isUserFacing(err) {
		return userError(wrapped)
	}
	return sysError(wrapped)
}

// userFacing lists outcomes caused by the caller rather than the system.
var userFacing = []error{
	types.ErrUnauthorized,
	types.ErrAlreadyInitialized,
	types.ErrAlreadyExists,
	types.ErrNotInitialized,
	types.ErrMissingSignature,
	types.ErrInvalidAmount,
	types.ErrOverflow,
	types.ErrUnderflow,
	types.ErrInsufficientFunds,
	types.ErrRecordNotFound,
	types.ErrInvalidMint,
	types.ErrInconsistentState,
	types.ErrVaultDestination,
	types.ErrNotWhitelisted,
	types.ErrNotTransferring,
	types.ErrInvalidWhitelistAccount,
	types.ErrRosterFull,
	types.ErrAccountListMismatch,
	types.ErrMembershipMismatch,
	types.ErrInsufficientBalance,
	types.ErrAccountNotFound,
	types.ErrInvalidIdentity,
}

func isUserFacing(err error) bool {
	for _, target := range userFacing {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// printResult writes v as indented JSON in --json mode, otherwise calls
// text.
func (a *app) printResult(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if !a.jsonMode {
		text(w)
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// printReceipt reports a committed invocation.
func (a *app) printReceipt(cmd *cobra.Command, r runtime.Receipt, msg string) error {
	return a.printResult(cmd, r, func(w io.Writer) {
		fmt.Fprintf(w, "%s (invocation %s)\n", msg, r.ID)
	})
}
