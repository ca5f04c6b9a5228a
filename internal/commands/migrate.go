package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetpro/internal/storage"
)

func newMigrateCommand(env Env) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			if err := storage.RunMigrations(dbPath); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(dbPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t) at %s\n", version, dirty, dbPath)
			return nil
		},
	}

	defaultPath := ""
	if env.Config != nil {
		defaultPath = env.Config.SQLiteDBPath
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultPath, "SQLite database path")

	return cmd
}
