package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aimd54/forum-trophies/internal/lock"
	"github.com/aimd54/forum-trophies/internal/service/trophies"
)

// AssignCmd runs one assignment.
func AssignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Run trophy assignment once",
		Long: `Awards every automatic trophy to the users that meet its conditions,
stopping after --max awards. Runs under the same lock as the scheduler.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			maxAssigns, _ := cmd.Flags().GetInt("max")

			a, err := newApp(cmd.Context(), configPath(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.scheduler.RunAssignment(cmd.Context(), maxAssigns)
			if errors.Is(err, lock.ErrLocked) {
				return fmt.Errorf("another assignment run is in progress")
			}
			if result != nil {
				printResult(cmd.OutOrStdout(), result)
			}
			return err
		},
	}

	cmd.Flags().Int("max", 0, "maximum awards in this run (default: trophies.max_assigns)")
	return cmd
}

func printResult(w io.Writer, result *trophies.AssignmentResult) {
	fmt.Fprintf(w, "Run %s: %d trophies awarded", result.RunID, result.Awarded)
	if result.CapReached {
		fmt.Fprintf(w, " (stopped at cap of %d)", result.MaxAssigns)
	}
	fmt.Fprintln(w)

	for _, pt := range result.PerTrophy {
		fmt.Fprintf(w, "  %-40s %d\n", pt.Title, pt.Awarded)
	}
}
