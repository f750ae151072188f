package cli

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hookvault/internal/keys"
	"github.com/mesh-intelligence/hookvault/internal/paths"
)

func newKeygenCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen <name>",
		Short: "Generate a signing keypair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := paths.KeyPath(a.resolvedConfigDir, args[0])
			if err != nil {
				return userError(err)
			}
			k, err := keys.Generate(rand.Reader)
			if err != nil {
				return sysError(err)
			}
			if err := keys.Save(path, k, force); err != nil {
				if errors.Is(err, keys.ErrKeypairExists) {
					return userError(fmt.Errorf("key %q exists (use --force to replace)", args[0]))
				}
				return sysError(err)
			}
			out := map[string]string{"name": args[0], "identity": k.Identity().String(), "path": path}
			return a.printResult(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", args[0], k.Identity())
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}
