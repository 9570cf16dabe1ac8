package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/event-hub/internal/benchmark"
)

// NewBenchmarkCmd creates the 'benchmark' command for search latency testing.
func NewBenchmarkCmd() *cobra.Command {
	var (
		iterations  int
		queriesFile string
		userID      string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure end-to-end search latency",
		Long: `Run a fixed set of queries through the full search pipeline against
the stored catalog and report latency percentiles.

The first iteration pays for embedding each query; later iterations are
served from the embedding cache.`,
		Example: `  # Run the built-in queries 5 times
  event-hub benchmark

  # Personalized, with your own queries (one per line)
  event-hub benchmark --user u-42 --queries queries.txt --iterations 20 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := benchmark.DefaultQueries
			if queriesFile != "" {
				var err error
				if queries, err = readQueries(queriesFile); err != nil {
					return err
				}
			}

			ctx := commandContext(cmd)
			eng, _, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			if eng.IndexedEvents() == 0 {
				return fmt.Errorf("the vector index is empty, run 'event-hub index' first")
			}

			res := benchmark.Run(ctx, eng, queries, iterations, userID)
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, res)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "╔══════════════════════════════════════════════════════════════╗")
			fmt.Fprintln(out, "║                 SEARCH LATENCY BENCHMARK                     ║")
			fmt.Fprintln(out, "╚══════════════════════════════════════════════════════════════╝")
			fmt.Fprintf(out, "  Queries:     %d × %d iterations (%d runs)\n", res.Queries, res.Iterations, res.Runs)
			fmt.Fprintf(out, "  Index size:  %d events\n", eng.IndexedEvents())
			fmt.Fprintf(out, "  Mean:        %v\n", res.Mean.Round(time.Microsecond))
			fmt.Fprintf(out, "  p50:         %v\n", res.P50.Round(time.Microsecond))
			fmt.Fprintf(out, "  p95:         %v\n", res.P95.Round(time.Microsecond))
			fmt.Fprintf(out, "  Max:         %v\n", res.Max.Round(time.Microsecond))
			fmt.Fprintf(out, "  Avg results: %.1f\n", res.AvgResults)
			for mode, n := range res.Modes {
				fmt.Fprintf(out, "  Mode %-8s %d\n", mode+":", n)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 5, "Passes over the query set")
	cmd.Flags().StringVar(&queriesFile, "queries", "", "File with one query per line")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Search as this user")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

// readQueries reads non-empty, non-comment lines.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queries: %w", err)
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries in %s", path)
	}
	return queries, nil
}
