package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/event-hub/internal/learning"
	"github.com/khanglvm/event-hub/internal/models"
)

// NewTrackCmd creates the 'track' command for recording a user action.
func NewTrackCmd() *cobra.Command {
	var (
		userID    string
		action    string
		eventID   string
		query     string
		sessionID string
		extra     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Record a user action in the behavior log",
		Long: `Append one behavior event. Actions are search, view, click,
purchase, like and share; other actions are stored with weight 1.0.`,
		Example: `  event-hub track --user u-42 --action purchase --event evt-1
  event-hub track --user u-42 --action search --query "jazz in austin"
  event-hub track --user u-42 --action view --event evt-7 --context page=home`,
		RunE: func(cmd *cobra.Command, args []string) error {
			at := models.ParseActionType(action)
			out := cmd.OutOrStdout()
			if !at.IsKnown() {
				fmt.Fprintf(out, "Warning: unknown action %q, it will count with weight 1.0\n", action)
			}

			ctx := commandContext(cmd)
			eng, _, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			ev := learning.NewBehaviorEvent(userID, at, eventID, query, sessionID)
			if len(extra) > 0 {
				ev.Context = extra
			}
			if !eng.TrackBehavior(ctx, ev) {
				return fmt.Errorf("failed to record %s for %s", at, userID)
			}

			fmt.Fprintf(out, "✓ Recorded %s for %s\n", at, userID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	cmd.Flags().StringVarP(&action, "action", "a", "", "Action type")
	cmd.Flags().StringVarP(&eventID, "event", "e", "", "Event ID the action refers to")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search text for search actions")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	cmd.Flags().StringToStringVar(&extra, "context", nil, "Extra context as key=value pairs")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}
