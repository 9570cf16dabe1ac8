package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/khanglvm/event-hub/internal/models"
)

// NewPreferencesCmd creates the 'preferences' command.
func NewPreferencesCmd() *cobra.Command {
	var (
		userID  string
		days    int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:     "preferences",
		Aliases: []string{"prefs"},
		Short:   "Show a user's derived preference profile",
		Long: `Derive category, location and price preferences from the user's
recent behavior. Nothing is stored; the profile is computed on demand.`,
		Example: `  event-hub preferences --user u-42
  event-hub prefs --user u-42 --days 7 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			eng, _, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			profile := eng.GetUserPreferences(ctx, userID, days)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), profile)
			}
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "Look-back window in days (default from config)")
	cmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func printProfile(w io.Writer, p models.PreferenceProfile) {
	fmt.Fprintf(w, "Preferences for %s\n", p.UserID)
	fmt.Fprintf(w, "  Interactions:  %d\n", p.TotalInteractions)
	fmt.Fprintf(w, "  Average price: $%.2f\n", p.AveragePricePreference)

	if p.IsEmpty() {
		fmt.Fprintln(w, "\nNo preferences yet.")
		return
	}

	printWeights(w, "Categories", p.Categories)
	printWeights(w, "Locations", p.Locations)
}

// printWeights lists weights in descending order, ties by name.
func printWeights(w io.Writer, title string, weights map[string]float64) {
	if len(weights) == 0 {
		return
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if weights[names[i]] != weights[names[j]] {
			return weights[names[i]] > weights[names[j]]
		}
		return names[i] < names[j]
	})

	fmt.Fprintf(w, "\n%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %.1f\n", name, weights[name])
	}
}
