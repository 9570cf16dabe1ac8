/*
Package main is the entry point for the event-hub CLI.

event-hub is the personalization engine of an event ticketing platform:
semantic search over the event catalog, recommendations blended from
content, collaborative and trending signals, and the behavior log they
learn from.

Usage:
  event-hub [command]

Available Commands:
  index        Load an event catalog and build the search indexes
  search       Search the event catalog
  recommend    Recommend events for a user
  track        Record a user action in the behavior log
  preferences  Show a user's derived preference profile
  similar      List users with similar category preferences
  learning     Inspect and maintain the behavior log and search history
  benchmark    Measure end-to-end search latency
  config       Create or inspect configuration
  version      Show version information

Examples:
  # Load a catalog
  event-hub index --catalog events.yaml

  # Personalized search
  event-hub search "cheap concerts in austin this weekend" --user u-42

  # Recommendations as JSON
  event-hub recommend --user u-42 --json
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/event-hub/internal/cli"
	"github.com/khanglvm/event-hub/internal/version"
)

// Version information is set via ldflags on the internal/version package.
func main() {
	rootCmd := &cobra.Command{
		Use:   "event-hub",
		Short: "Personalized event search and recommendations",
		Long: `event-hub ranks events for ticket buyers.

  • search     - natural-language search with intent filters and
                 preference re-ranking
  • recommend  - content-based, collaborative and trending picks
  • track      - the behavior log every score is learned from

Configuration lives in ~/.event-hub/config.yaml (see 'event-hub config init')
and can be overridden with EVENT_HUB_* environment variables.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.NewIndexCmd())
	rootCmd.AddCommand(cli.NewSearchCmd())
	rootCmd.AddCommand(cli.NewRecommendCmd())
	rootCmd.AddCommand(cli.NewTrackCmd())
	rootCmd.AddCommand(cli.NewPreferencesCmd())
	rootCmd.AddCommand(cli.NewSimilarCmd())
	rootCmd.AddCommand(cli.NewLearningCmd())
	rootCmd.AddCommand(cli.NewBenchmarkCmd())
	rootCmd.AddCommand(cli.NewConfigCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
