package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newWhitelistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage the transfer allowlist",
	}
	cmd.AddCommand(
		newWhitelistChangeCmd(a, "add", "Approve an identity", true),
		newWhitelistChangeCmd(a, "remove", "Revoke an identity", false),
		newWhitelistCheckCmd(a),
	)
	return cmd
}

func newWhitelistChangeCmd(a *app, use, short string, add bool) *cobra.Command {
	var keyName string
	cmd := &cobra.Command{
		Use:   use + " <identity|key>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := a.loadKey(keyName)
			if err != nil {
				return err
			}
			subject, err := a.resolveIdentity(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			op, msg := svc.RemoveFromWhitelist, "Removed"
			if add {
				op, msg = svc.AddToWhitelist, "Added"
			}
			r, err := op(cmd.Context(), admin, subject)
			if err != nil {
				return opError("whitelist "+use, err)
			}
			return a.printReceipt(cmd, r, fmt.Sprintf("%s %s", msg, subject))
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "admin", "admin key name or path")
	return cmd
}

func newWhitelistCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <identity|key>",
		Short: "Report whether an identity is approved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := a.resolveIdentity(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			ok, err := svc.IsMember(cmd.Context(), subject)
			if err != nil {
				return opError("whitelist check", err)
			}
			out := map[string]any{"identity": subject, "whitelisted": ok}
			return a.printResult(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s whitelisted: %t\n", subject, ok)
			})
		},
	}
}
