package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aimd54/forum-trophies/internal/clock"
	"github.com/aimd54/forum-trophies/internal/seed"
)

// SeedCmd creates trophies from a YAML definition file.
func SeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create missing trophies from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			if dryRun {
				if path == "" {
					return fmt.Errorf("--file is required with --dry-run")
				}
				return validateSeedFile(cmd, path)
			}

			a, err := newApp(cmd.Context(), configPath(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			if path == "" {
				path = a.cfg.Trophies.SeedFile
			}
			if path == "" {
				return fmt.Errorf("no seed file given (--file or trophies.seed_file)")
			}

			f, err := seed.Load(path)
			if err != nil {
				return err
			}

			report, err := seed.Apply(cmd.Context(), f, a.catalog, a.trophyRepo, a.log.Component("seed"))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d trophies created, %d already present\n", len(report.Created), len(report.Skipped))
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "seed file (default: trophies.seed_file)")
	cmd.Flags().Bool("dry-run", false, "validate the file without touching the database")
	return cmd
}

// validateSeedFile checks a seed file against the built-in condition types.
func validateSeedFile(cmd *cobra.Command, path string) error {
	f, err := seed.Load(path)
	if err != nil {
		return err
	}

	catalog, err := newCatalog(clock.Real())
	if err != nil {
		return err
	}

	if err := f.Validate(catalog); err != nil {
		return fmt.Errorf("invalid seed file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d trophies OK\n", path, len(f.Trophies))
	return nil
}
