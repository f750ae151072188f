// Package cli implements vaultctl, the operator and depositor command line
// for hookvault.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/hookvault/internal/paths"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds global flag values and per-run state shared by subcommands.
type app struct {
	configDir  string
	dataDir    string
	backend    string
	membership string
	jsonMode   bool

	// Set by PersistentPreRunE.
	resolvedConfigDir string
	v                 *viper.Viper
	logger            *slog.Logger
}

// NewRootCmd creates the top-level "vaultctl" command with global flags and
// every subcommand registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "vaultctl",
		Short: "Operate a whitelist-gated custody vault",
		Long: "vaultctl runs a custody vault whose asset can only move when the\n" +
			"transfer hook's allowlist approves the source or destination owner.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/hookvault)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/hookvault)")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "account store backend: sqlite or memory")
	root.PersistentFlags().StringVar(&a.membership, "membership", "", "allowlist variant: registry or roster")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newKeygenCmd(a),
		newWhitelistCmd(a),
		newMintCmd(a),
		newDepositCmd(a),
		newWithdrawCmd(a),
		newTransferCmd(a),
		newShowCmd(a),
		newResolveCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newLogCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "vaultctl:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// setup resolves directories, loads config.yaml and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	dir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	v, err := loadConfig(dir)
	if err != nil {
		return sysError(err)
	}
	level, err := types.ParseLogLevel(v.GetString(cfgKeyLogLevel))
	if err != nil {
		return userError(fmt.Errorf("%s %q: %w", cfgKeyLogLevel, v.GetString(cfgKeyLogLevel), err))
	}
	a.resolvedConfigDir = dir
	a.v = v
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error {
	return &exitError{code: exitUserError, err: err}
}

func sysError(err error) error {
	return &exitError{code: exitSysError, err: err}
}

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitUserError
}
