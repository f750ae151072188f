package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a CBOR snapshot of every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return sysError(fmt.Errorf("create %s: %w", outPath, err))
				}
				defer f.Close()
				w = f
			}
			if err := svc.Export(cmd.Context(), w); err != nil {
				return sysError(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace every account with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return userError(err)
			}
			defer f.Close()

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Import(cmd.Context(), f); err != nil {
				return userError(err)
			}
			return a.printResult(cmd, map[string]string{"imported": args[0]}, func(w io.Writer) {
				fmt.Fprintln(w, "Imported", args[0])
			})
		},
	}
}
