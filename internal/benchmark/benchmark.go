/*
Package benchmark measures end-to-end search latency against a live engine.

Each query runs through the full pipeline (intent parsing, embedding,
vector or keyword retrieval, filtering, personalization and explanation)
so the numbers include cache hits after the first iteration.
*/
package benchmark

import (
	"context"
	"sort"
	"time"

	"github.com/khanglvm/event-hub/internal/engine"
)

// DefaultQueries exercise every intent signal at least once.
var DefaultQueries = []string{
	"jazz concerts in austin",
	"technology conference",
	"cheap music festivals this weekend",
	"art gallery exhibition",
	"free outdoor events near the park",
	"premium sports tickets next month",
}

// Searcher runs one search over the stored catalog.
type Searcher interface {
	SearchCatalog(ctx context.Context, sc engine.SearchContext) engine.SearchResponse
}

// Result summarizes a benchmark run.
type Result struct {
	Queries    int            `json:"queries"`
	Iterations int            `json:"iterations"`
	Runs       int            `json:"runs"`
	Mean       time.Duration  `json:"mean_ns"`
	P50        time.Duration  `json:"p50_ns"`
	P95        time.Duration  `json:"p95_ns"`
	Max        time.Duration  `json:"max_ns"`
	AvgResults float64        `json:"avg_results"`
	Modes      map[string]int `json:"modes"`
}

// Run searches every query iterations times, sequentially, as userID
// (anonymous when empty).
func Run(ctx context.Context, s Searcher, queries []string, iterations int, userID string) Result {
	if iterations <= 0 {
		iterations = 1
	}

	res := Result{
		Queries:    len(queries),
		Iterations: iterations,
		Modes:      make(map[string]int),
	}

	var (
		durations []time.Duration
		total     time.Duration
		results   int
	)
	for i := 0; i < iterations; i++ {
		for _, q := range queries {
			if ctx.Err() != nil {
				break
			}
			start := time.Now()
			resp := s.SearchCatalog(ctx, engine.SearchContext{Query: q, UserID: userID})
			elapsed := time.Since(start)

			durations = append(durations, elapsed)
			total += elapsed
			results += len(resp.Results)
			res.Modes[resp.Mode]++
		}
	}

	res.Runs = len(durations)
	if res.Runs == 0 {
		return res
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	res.Mean = total / time.Duration(res.Runs)
	res.P50 = Percentile(durations, 50)
	res.P95 = Percentile(durations, 95)
	res.Max = durations[len(durations)-1]
	res.AvgResults = float64(results) / float64(res.Runs)
	return res
}

// Percentile returns the nearest-rank percentile of sorted durations.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p/100*float64(len(sorted))+0.999999) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}
