package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <from> <to> [amount]",
		Short: "List the extra accounts a transfer must attach",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.resolveIdentity(args[0])
			if err != nil {
				return err
			}
			to, err := a.resolveIdentity(args[1])
			if err != nil {
				return err
			}
			var amount uint64
			if len(args) == 3 {
				if amount, err = parseAmount(args[2]); err != nil {
					return err
				}
			}
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			extras, err := svc.ResolveTransfer(cmd.Context(), from, to, amount)
			if err != nil {
				return opError("resolve", err)
			}
			return a.printResult(cmd, extras, func(w io.Writer) {
				for _, id := range extras {
					fmt.Fprintln(w, id)
				}
			})
		},
	}
}
