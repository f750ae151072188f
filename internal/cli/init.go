package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var keyName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the vault, its mint and the transfer hook",
		Long:  "Initialize the vault with the given key as admin. The admin alone\nmay mint and manage the allowlist.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := a.loadKey(keyName)
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			r, err := svc.Initialize(ctx, admin)
			if err != nil {
				return opError("init", err)
			}
			view, err := svc.Vault(ctx)
			if err != nil {
				return opError("init", err)
			}
			out := map[string]any{"receipt": r, "vault": view.Address, "mint": view.State.Mint, "admin": view.State.Admin, "membership": view.Membership}
			return a.printResult(cmd, out, func(w io.Writer) {
				fmt.Fprintln(w, "Vault initialized")
				fmt.Fprintln(w, "  vault:     ", view.Address)
				fmt.Fprintln(w, "  mint:      ", view.State.Mint)
				fmt.Fprintln(w, "  admin:     ", view.State.Admin)
				fmt.Fprintln(w, "  membership:", view.Membership)
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "admin", "admin key name or path")
	return cmd
}
