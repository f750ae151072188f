package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hookvault/internal/custody"
)

const modulePath = "github.com/mesh-intelligence/hookvault"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vaultctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "vaultctl %s\nmodule: %s\n", custody.Version, modulePath)
			return nil
		},
	}
}
