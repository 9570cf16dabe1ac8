package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/storage"
)

// newLearningStatusCmd shows storage statistics.
func newLearningStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show learning statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			store, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to read statistics: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Learning System Status")
			fmt.Fprintln(out, "======================")
			fmt.Fprintf(out, "Storage backend:   %s\n", cfg.Storage.Backend)
			if s, ok := store.(*storage.SQLiteStorage); ok {
				fmt.Fprintf(out, "Database:          %s (enabled: %t)\n", s.Path(), s.Enabled())
			}
			fmt.Fprintf(out, "Behavior events:   %d\n", stats.Behaviors)
			fmt.Fprintf(out, "Users:             %d\n", stats.Users)
			fmt.Fprintf(out, "Catalog events:    %d\n", stats.Events)
			fmt.Fprintf(out, "Searches recorded: %d\n", stats.Searches)
			fmt.Fprintf(out, "Embeddings stored: %d\n", stats.Embeddings)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Preference window: last %d days\n", cfg.Behavior.PreferenceWindowDays)
			fmt.Fprintf(out, "Trending window:   last %s\n", cfg.Recommend.TrendingWindow)
			fmt.Fprintln(out, "Action weights:")
			for _, a := range []models.ActionType{
				models.ActionSearch, models.ActionView, models.ActionClick,
				models.ActionPurchase, models.ActionLike, models.ActionShare,
			} {
				fmt.Fprintf(out, "  %-9s preference %.1f, collaborative %.1f\n", a, a.PreferenceWeight(), a.CollaborativeWeight())
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Note: Run 'event-hub learning export' to view the behavior log")

			return nil
		},
	}
}

// newLearningExportCmd exports recent behavior events as JSON.
func newLearningExportCmd() *cobra.Command {
	var (
		outputFile string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export behavior events as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			store, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
			events, err := store.BehaviorsSince(ctx, since)
			if err != nil {
				return fmt.Errorf("failed to read behavior log: %w", err)
			}
			records := exportRecords(events)

			if outputFile == "" {
				return writeJSON(cmd.OutOrStdout(), records)
			}

			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outputFile, err)
			}
			if err := writeJSON(f, records); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFile, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d events to %s\n", len(records), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().IntVarP(&days, "days", "d", 30, "Export events from the last N days")
	return cmd
}

// newLearningCleanupCmd applies the search history retention.
func newLearningCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Drop search history past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			store, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Cleanup(ctx, cfg.Storage.HistoryRetention); err != nil {
				return fmt.Errorf("failed to clean up search history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed search history older than %s\n", cfg.Storage.HistoryRetention)
			return nil
		},
	}
}

// newLearningClearCmd deletes search history and, on request, embeddings.
func newLearningClearCmd() *cobra.Command {
	var (
		yes        bool
		embeddings bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all search history",
		Long: `Delete every search history record. With --embeddings the vector
index snapshot and embedding cache are cleared as well; run
'event-hub index --rebuild' afterwards. The behavior log is kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, "This will delete all search history. Continue?") {
				fmt.Fprintln(out, "Cancelled")
				return nil
			}

			ctx := commandContext(cmd)
			eng, _, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.Storage().Cleanup(ctx, 0); err != nil {
				return fmt.Errorf("failed to clear search history: %w", err)
			}
			if embeddings {
				if err := eng.ClearIndex(ctx); err != nil {
					return fmt.Errorf("failed to clear embeddings: %w", err)
				}
			}

			fmt.Fprintln(out, "Learning data cleared successfully")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&embeddings, "embeddings", false, "Also clear stored embeddings")
	return cmd
}
