package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/event-hub/internal/recommend"
)

// NewRecommendCmd creates the 'recommend' command.
func NewRecommendCmd() *cobra.Command {
	var (
		userID  string
		limit   int
		exclude []string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend events for a user",
		Long: `Blend content-based, collaborative and trending recommendations
for a user. Users without history still get trending events.`,
		Example: `  event-hub recommend --user u-42
  event-hub recommend --user u-42 --limit 5 --exclude evt-1,evt-2 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			eng, _, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			var reqCtx map[string]string
			if len(exclude) > 0 {
				reqCtx = map[string]string{recommend.ContextExcludeEvents: strings.Join(exclude, ",")}
			}

			items := eng.GetRecommendations(ctx, userID, limit, reqCtx)
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, items)
			}

			if len(items) == 0 {
				fmt.Fprintln(out, "No recommendations yet.")
				return nil
			}
			fmt.Fprintf(out, "Recommendations for %s (%d):\n\n", userID, len(items))
			for i, item := range items {
				fmt.Fprintf(out, "%2d. %-20s %.3f  %-13s %s\n", i+1, item.EventID, item.Score, item.Source, item.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum recommendations (default from config)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Event IDs to leave out")
	cmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
