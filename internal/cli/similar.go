package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSimilarCmd creates the 'similar' command.
func NewSimilarCmd() *cobra.Command {
	var (
		userID  string
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "similar",
		Short: "List users with similar category preferences",
		Example: `  event-hub similar --user u-42
  event-hub similar --user u-42 --limit 10 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			eng, _, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			users := eng.SimilarUsers(ctx, userID, limit)
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, users)
			}

			if len(users) == 0 {
				fmt.Fprintln(out, "No similar users found.")
				return nil
			}
			fmt.Fprintf(out, "Users similar to %s:\n", userID)
			for i, u := range users {
				fmt.Fprintf(out, "%2d. %s\n", i+1, u)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum users")
	cmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
