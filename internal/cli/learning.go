package cli

import (
	"github.com/spf13/cobra"
)

// NewLearningCmd creates the learning command group.
func NewLearningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Inspect and maintain the behavior log and search history",
		Long: `The engine learns from an append-only behavior log (searches, views,
clicks, purchases, likes and shares) and keeps a search history with
hashed queries for analytics.

Commands:
  status   Show storage statistics and the scoring weights in use
  export   Export recent behavior events as JSON
  cleanup  Drop search history older than storage.history_retention
  clear    Delete all search history (and optionally embeddings)

The behavior log itself is never deleted by these commands.`,
	}

	cmd.AddCommand(newLearningStatusCmd())
	cmd.AddCommand(newLearningExportCmd())
	cmd.AddCommand(newLearningCleanupCmd())
	cmd.AddCommand(newLearningClearCmd())

	return cmd
}
