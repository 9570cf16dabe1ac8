package cli

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/event-hub/internal/engine"
	"github.com/khanglvm/event-hub/internal/models"
)

// searchOptions are the flags of the 'search' command.
type searchOptions struct {
	user     string
	session  string
	location string
	category string
	minPrice float64
	maxPrice float64
	date     string
	jsonOut  bool
	priceSet bool
}

// NewSearchCmd creates the 'search' command.
func NewSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the event catalog",
		Long: `Search stored events with natural language.

Filters such as location, category, price and date are read from the
query itself ("cheap concerts in austin this weekend"). Explicit flags
take precedence over what the query says. With --user, results are
re-ranked by the user's preferences and the search is recorded in the
behavior log.`,
		Example: `  event-hub search "jazz in austin"
  event-hub search "tech conference" --user u-42 --max-price 200
  event-hub search concerts --category Music --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.priceSet = cmd.Flags().Changed("min-price") || cmd.Flags().Changed("max-price")
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "User ID for personalization")
	cmd.Flags().StringVar(&opts.session, "session", "", "Session ID recorded with the search")
	cmd.Flags().StringVarP(&opts.location, "location", "l", "", "Location filter (substring match)")
	cmd.Flags().StringVar(&opts.category, "category", "", "Category filter")
	cmd.Flags().Float64Var(&opts.minPrice, "min-price", 0, "Minimum ticket price")
	cmd.Flags().Float64Var(&opts.maxPrice, "max-price", math.Inf(1), "Maximum ticket price")
	cmd.Flags().StringVar(&opts.date, "date", "", "Only upcoming events (e.g. 'this weekend')")
	cmd.Flags().BoolVarP(&opts.jsonOut, "json", "j", false, "Output as JSON")

	return cmd
}

// searchContext maps flags onto an engine.SearchContext.
func (o searchOptions) searchContext(query string) engine.SearchContext {
	sc := engine.SearchContext{
		Query:     query,
		UserID:    o.user,
		SessionID: o.session,
		Location:  o.location,
		Category:  o.category,
		DateRange: o.date,
	}
	if o.priceSet {
		sc.PriceRange = &models.PriceRange{Min: o.minPrice, Max: o.maxPrice}
	}
	return sc
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.priceSet && opts.minPrice > opts.maxPrice {
		return fmt.Errorf("--min-price %.2f is above --max-price %.2f", opts.minPrice, opts.maxPrice)
	}

	ctx := commandContext(cmd)
	eng, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	resp := eng.SearchCatalog(ctx, opts.searchContext(query))
	if opts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), resp)
	}

	printSearchResponse(cmd.OutOrStdout(), resp)
	return nil
}

func printSearchResponse(w io.Writer, resp engine.SearchResponse) {
	fmt.Fprintln(w, resp.Explanation)
	if resp.Intent.HasFilters() {
		fmt.Fprintf(w, "  %s\n", resp.Intent.Summary())
	}
	fmt.Fprintln(w)

	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No matching events.")
		return
	}

	for i, r := range resp.Results {
		fmt.Fprintf(w, "%2d. %s (%s)\n", i+1, r.Event.Name, r.Event.ID)
		fmt.Fprintf(w, "    %s · %s · $%.2f", r.Event.Category, r.Event.Location, r.Event.Price)
		if !r.Event.Date.IsZero() {
			fmt.Fprintf(w, " · %s", r.Event.Date.Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    score %.3f (similarity %.3f, personalization %.3f)\n",
			r.FinalScore, r.SimilarityScore, r.PersonalizationScore)
	}

	if resp.TotalFound > len(resp.Results) {
		fmt.Fprintf(w, "\nShowing %d of %d matches.\n", len(resp.Results), resp.TotalFound)
	}
}
