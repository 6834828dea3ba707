// Package cli wires configuration, storage and transports into the
// spacebook command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRoot returns the root command with every subcommand attached.
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spacebook",
		Short:         "Space rental booking core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
