// Package cli implements the forum-trophies command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forum-trophies",
		Short: "Automatic trophy assignment for forum users",
		Long: `forum-trophies awards trophies to forum users whose statistics meet
each trophy's conditions. It runs assignment on a schedule, exposes an
admin API and manages trophy definitions.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (default: ./config.yaml, ./config/config.yaml)")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(AssignCmd())
	rootCmd.AddCommand(OutstandingCmd())
	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(SeedCmd())

	return rootCmd
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
