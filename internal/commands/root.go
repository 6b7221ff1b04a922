// Package commands implements the babybudgetctl admin CLI.
package commands

import (
	"github.com/spf13/cobra"

	"babybudget/internal/cli"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "babybudgetctl",
		Short: "Administrative tasks for the babybudget service",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.LoadEnvFile(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before running")

	rootCmd.AddCommand(
		newMigrateCommand(),
		newCeilingCommand(),
		newTokenCommand(),
	)

	return rootCmd
}
