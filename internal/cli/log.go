package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newLogCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List recent invocations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			invs, err := svc.Invocations(cmd.Context(), limit)
			if err != nil {
				return sysError(err)
			}
			return a.printResult(cmd, invs, func(w io.Writer) {
				for _, inv := range invs {
					fmt.Fprintf(w, "%s  %-16s %-9s %s", inv.At.Format(time.DateTime), inv.Name, inv.Status, inv.ID)
					if inv.Error != "" {
						fmt.Fprintf(w, "  %s", inv.Error)
					}
					fmt.Fprintln(w)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries (0 for all)")
	return cmd
}
