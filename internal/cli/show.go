package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display vault state",
	}
	cmd.AddCommand(newShowVaultCmd(a), newShowDepositCmd(a), newShowBalanceCmd(a))
	return cmd
}

func newShowVaultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vault",
		Short: "Display the vault record and every deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			view, err := svc.Vault(cmd.Context())
			if err != nil {
				return opError("show vault", err)
			}
			return a.printResult(cmd, view, func(w io.Writer) {
				fmt.Fprintf(w, "Vault:      %s\n", view.Address)
				fmt.Fprintf(w, "Admin:      %s\n", view.State.Admin)
				fmt.Fprintf(w, "Mint:       %s\n", view.State.Mint)
				fmt.Fprintf(w, "Membership: %s\n", view.Membership)
				fmt.Fprintf(w, "Balance:    %d\n", view.State.Balance)
				fmt.Fprintf(w, "Holdings:   %d\n", view.Holdings)
				if len(view.Deposits) > 0 {
					fmt.Fprintln(w, "\nDeposits:")
					for _, d := range view.Deposits {
						fmt.Fprintf(w, "  %s  %d\n", d.Owner, d.Amount)
					}
				}
			})
		},
	}
}

func newShowDepositCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <identity|key>",
		Short: "Display one depositor's recorded deposit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.resolveIdentity(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			amount, err := svc.DepositOf(cmd.Context(), user)
			if err != nil {
				return opError("show deposit", err)
			}
			out := map[string]any{"owner": user, "amount": amount}
			return a.printResult(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s deposited %d\n", user, amount)
			})
		},
	}
}

func newShowBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <identity|key>",
		Short: "Display a holder's asset balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.resolveIdentity(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			amount, err := svc.Balance(cmd.Context(), owner)
			if err != nil {
				return opError("show balance", err)
			}
			out := map[string]any{"owner": owner, "balance": amount}
			return a.printResult(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s holds %d\n", owner, amount)
			})
		},
	}
}
