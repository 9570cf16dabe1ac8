package benchmark

import (
	"context"
	"testing"
	"time"

	"github.com/khanglvm/event-hub/internal/engine"
)

type fakeSearcher struct {
	calls int
}

func (f *fakeSearcher) SearchCatalog(ctx context.Context, sc engine.SearchContext) engine.SearchResponse {
	f.calls++
	mode := engine.ModeVector
	results := []engine.SearchResult{{}, {}}
	if sc.Query == "nothing" {
		mode = engine.ModeEmpty
		results = nil
	}
	return engine.SearchResponse{Query: sc.Query, Mode: mode, Results: results}
}

func TestRun(t *testing.T) {
	s := &fakeSearcher{}
	res := Run(context.Background(), s, []string{"jazz", "nothing"}, 3, "")

	if s.calls != 6 || res.Runs != 6 {
		t.Errorf("expected 6 runs, got calls=%d runs=%d", s.calls, res.Runs)
	}
	if res.Modes[engine.ModeVector] != 3 || res.Modes[engine.ModeEmpty] != 3 {
		t.Errorf("unexpected modes %v", res.Modes)
	}
	if res.AvgResults != 1 {
		t.Errorf("expected 1 result on average, got %f", res.AvgResults)
	}
	if res.P50 > res.P95 || res.P95 > res.Max {
		t.Errorf("percentiles out of order: p50=%v p95=%v max=%v", res.P50, res.P95, res.Max)
	}
}

func TestRun_DefaultsIterations(t *testing.T) {
	s := &fakeSearcher{}
	res := Run(context.Background(), s, DefaultQueries, 0, "u1")
	if res.Iterations != 1 || res.Runs != len(DefaultQueries) {
		t.Errorf("expected one pass over the defaults, got %+v", res)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, &fakeSearcher{}, DefaultQueries, 5, "")
	if res.Runs != 0 || res.Mean != 0 {
		t.Errorf("expected no runs after cancellation, got %+v", res)
	}
}

func TestPercentile(t *testing.T) {
	var d []time.Duration
	for i := 1; i <= 20; i++ {
		d = append(d, time.Duration(i)*time.Millisecond)
	}

	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, 10 * time.Millisecond},
		{95, 19 * time.Millisecond},
		{100, 20 * time.Millisecond},
		{0, 1 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := Percentile(d, tt.p); got != tt.want {
			t.Errorf("p%.0f: expected %v, got %v", tt.p, tt.want, got)
		}
	}

	if Percentile(nil, 50) != 0 {
		t.Error("expected 0 for no samples")
	}
}
