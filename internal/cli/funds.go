package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hookvault/internal/custody"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
)

func newMintCmd(a *app) *cobra.Command {
	var keyName string
	cmd := &cobra.Command{
		Use:   "mint <identity|key> <amount>",
		Short: "Issue vault asset to a holder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := a.loadKey(keyName)
			if err != nil {
				return err
			}
			user, err := a.resolveIdentity(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			r, err := svc.MintIssue(cmd.Context(), admin, user, amount)
			if err != nil {
				return opError("mint", err)
			}
			return a.printReceipt(cmd, r, fmt.Sprintf("Minted %d to %s", amount, user))
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "admin", "admin key name or path")
	return cmd
}

// amountOp is a vault operation signed by one holder.
type amountOp func(svc *custody.Service, cmd *cobra.Command, user runtime.Signer, amount uint64) (runtime.Receipt, error)

func newAmountCmd(a *app, use, short, verb string, op amountOp) *cobra.Command {
	var keyName string
	cmd := &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.loadKey(keyName)
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			r, err := op(svc, cmd, user, amount)
			if err != nil {
				return opError(use, err)
			}
			return a.printReceipt(cmd, r, fmt.Sprintf("%s %d", verb, amount))
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "depositor key name or path")
	return cmd
}

func newDepositCmd(a *app) *cobra.Command {
	return newAmountCmd(a, "deposit", "Deposit into the vault", "Deposited",
		func(svc *custody.Service, cmd *cobra.Command, user runtime.Signer, amount uint64) (runtime.Receipt, error) {
			return svc.Deposit(cmd.Context(), user, amount)
		})
}

func newWithdrawCmd(a *app) *cobra.Command {
	return newAmountCmd(a, "withdraw", "Withdraw from the vault", "Withdrew",
		func(svc *custody.Service, cmd *cobra.Command, user runtime.Signer, amount uint64) (runtime.Receipt, error) {
			return svc.Withdraw(cmd.Context(), user, amount)
		})
}

func newTransferCmd(a *app) *cobra.Command {
	var keyName string
	cmd := &cobra.Command{
		Use:   "transfer <identity|key> <amount>",
		Short: "Send vault asset to another holder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.loadKey(keyName)
			if err != nil {
				return err
			}
			to, err := a.resolveIdentity(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			r, err := svc.Transfer(cmd.Context(), from, to, amount)
			if err != nil {
				return opError("transfer", err)
			}
			return a.printReceipt(cmd, r, fmt.Sprintf("Sent %d to %s", amount, to))
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "sender key name or path")
	return cmd
}
