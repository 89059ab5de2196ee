package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// OutstandingCmd prints the outstanding assignment count.
func OutstandingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outstanding",
		Short: "Show how many awards the next uncapped run would make",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), configPath(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.trophies.OutstandingAssignmentCount(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d outstanding trophy assignments\n", count)
			return nil
		},
	}
}
