package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"babybudget/internal/config"
	"babybudget/internal/storage/sqlite"
)

func newMigrateCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = config.Load().SQLiteDBPath
			}
			if err := sqlite.RunMigrations(dbPath); err != nil {
				return fmt.Errorf("migrating %s: %w", dbPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied to %s\n", dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default: SQLITE_DB_PATH)")
	return cmd
}
