package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aimd54/forum-trophies/internal/repository"
)

// MigrateCmd applies the SQL migrations.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(configPath(cmd))
			if err != nil {
				return err
			}

			if show, _ := cmd.Flags().GetBool("version"); show {
				version, dirty, err := repository.MigrationVersion(&cfg.Database.Postgres)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			}

			return repository.RunMigrations(&cfg.Database.Postgres, log.Component("migrate"))
		},
	}

	cmd.Flags().Bool("version", false, "print the applied migration version and exit")
	return cmd
}
