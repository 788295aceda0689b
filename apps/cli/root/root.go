package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Lumenboard admin CLI. Subcommands
// (bootstrap, workspace, etc.) are attached here.
var rootCmd = &cobra.Command{
	Use:           "lumenboard",
	Short:         "Lumenboard admin CLI",
	Long:          "Administrative utilities for Lumenboard (catalog bootstrap, workspace inspection).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
