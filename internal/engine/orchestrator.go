package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/explain"
	"github.com/khanglvm/event-hub/internal/intent"
	"github.com/khanglvm/event-hub/internal/learning"
	"github.com/khanglvm/event-hub/internal/metrics"
	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/recommend"
	"github.com/khanglvm/event-hub/internal/search"
	"github.com/khanglvm/event-hub/internal/storage"
)

// Retrieval modes reported in SearchResponse.Mode.
const (
	ModeVector  = "vector"
	ModeKeyword = "keyword"
	ModeEmpty   = "empty"
	ModeError   = "error"
)

// UnavailableMessage is the explanation of a search that failed unexpectedly.
const UnavailableMessage = "Search temporarily unavailable. Please try again."

// explainResults is how many top results are handed to the explainer.
const explainResults = 5

// SearchContext is one search request.
type SearchContext struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Explicit filters. Unset filters fall back to the parsed intent.
	Location   string             `json:"location,omitempty"`
	Category   string             `json:"category,omitempty"`
	PriceRange *models.PriceRange `json:"price_range,omitempty"`

	// DateRange restricts results to upcoming events when set.
	DateRange string `json:"date_range,omitempty"`
}

// SearchResult is one ranked event.
type SearchResult struct {
	Event                models.Event `json:"event"`
	SimilarityScore      float64      `json:"similarity_score"`
	PersonalizationScore float64      `json:"personalization_score"`
	FinalScore           float64      `json:"final_score"`
}

// SearchResponse is always well formed, even when the search failed.
type SearchResponse struct {
	SearchID    string              `json:"search_id"`
	Query       string              `json:"query"`
	Results     []SearchResult      `json:"results"`
	Intent      models.SearchIntent `json:"intent"`
	Explanation string              `json:"explanation"`
	TotalFound  int                 `json:"total_found"`
	Mode        string              `json:"mode"`
}

// VectorSearcher finds events by embedding similarity.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit int, minSimilarity float64) []search.Hit
}

// KeywordSearcher finds events by BM25 keyword relevance.
type KeywordSearcher interface {
	Search(query string, limit int) ([]search.Hit, error)
}

// PreferenceSource derives preference profiles.
type PreferenceSource interface {
	Preferences(ctx context.Context, userID string, days int) models.PreferenceProfile
}

// BehaviorQueue accepts fire-and-forget behavior events.
type BehaviorQueue interface {
	Enqueue(ev models.BehaviorEvent) bool
}

// SearchHistory records searches for analytics.
type SearchHistory interface {
	RecordSearch(ctx context.Context, rec storage.SearchRecord) error
}

// SearchConfig tunes the orchestrator.
type SearchConfig struct {
	CandidateLimit        int
	MinSimilarity         float64
	MaxResults            int
	SimilarityWeight      float64
	PersonalizationWeight float64
	Timeout               time.Duration
	IntentFilters         bool
	PreferenceDays        int
}

// DefaultSearchConfig returns the production defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		CandidateLimit:        20,
		MinSimilarity:         0.2,
		MaxResults:            10,
		SimilarityWeight:      0.7,
		PersonalizationWeight: 0.3,
		Timeout:               10 * time.Second,
		IntentFilters:         true,
	}
}

// Orchestrator runs the search pipeline: intent, vector retrieval,
// filtering, personalization and explanation.
type Orchestrator struct {
	vectors     VectorSearcher
	keywords    KeywordSearcher
	preferences PreferenceSource
	queue       BehaviorQueue
	history     SearchHistory
	explainer   *explain.Explainer
	cfg         SearchConfig
	now         func() time.Time
	log         zerolog.Logger
}

// OrchestratorDeps are the collaborators of an Orchestrator. Only Vectors
// and Explainer are required.
type OrchestratorDeps struct {
	Vectors     VectorSearcher
	Keywords    KeywordSearcher
	Preferences PreferenceSource
	Queue       BehaviorQueue
	History     SearchHistory
	Explainer   *explain.Explainer
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps OrchestratorDeps, cfg SearchConfig, log zerolog.Logger) *Orchestrator {
	defaults := DefaultSearchConfig()
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaults.CandidateLimit
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaults.MaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.SimilarityWeight == 0 && cfg.PersonalizationWeight == 0 {
		cfg.SimilarityWeight = defaults.SimilarityWeight
		cfg.PersonalizationWeight = defaults.PersonalizationWeight
	}

	return &Orchestrator{
		vectors:     deps.Vectors,
		keywords:    deps.Keywords,
		preferences: deps.Preferences,
		queue:       deps.Queue,
		history:     deps.History,
		explainer:   deps.Explainer,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "search").Logger(),
	}
}

// Search ranks candidates for sc. Events that are not in candidates are
// never returned. Search never fails: unexpected errors produce an empty
// response carrying UnavailableMessage.
func (o *Orchestrator) Search(ctx context.Context, sc SearchContext, candidates []models.Event) (resp SearchResponse) {
	start := time.Now()
	searchID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Str("search_id", searchID).Msg("search failed")
			resp = SearchResponse{
				SearchID:    searchID,
				Query:       sc.Query,
				Results:     []SearchResult{},
				Intent:      models.SearchIntent{Keywords: []string{}},
				Explanation: UnavailableMessage,
				Mode:        ModeError,
			}
		}
		metrics.SearchRequests.WithLabelValues(resp.Mode).Inc()
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	query := strings.TrimSpace(sc.Query)
	parsed := intent.Parse(query)

	resp = SearchResponse{
		SearchID: searchID,
		Query:    sc.Query,
		Results:  []SearchResult{},
		Intent:   parsed,
		Mode:     ModeEmpty,
	}

	if query != "" && len(candidates) > 0 {
		results, mode := o.retrieve(ctx, query, o.resolveFilters(sc, parsed), candidates)
		if sc.UserID != "" && len(results) > 0 {
			o.personalize(ctx, sc.UserID, results)
		}

		resp.TotalFound = len(results)
		if len(results) > o.cfg.MaxResults {
			results = results[:o.cfg.MaxResults]
		}
		resp.Results = results
		if len(results) > 0 {
			resp.Mode = mode
		}
	}

	resp.Explanation = o.explainer.Explain(ctx, explain.Request{
		Query:      sc.Query,
		Intent:     parsed,
		Results:    summarize(resp.Results, explainResults),
		TotalFound: resp.TotalFound,
		Keyword:    resp.Mode == ModeKeyword,
	})

	o.record(ctx, sc, resp)
	return resp
}

// retrieve runs vector search and falls back to keyword search when the
// vector index has nothing above the similarity floor.
func (o *Orchestrator) retrieve(ctx context.Context, query string, f filters, candidates []models.Event) ([]SearchResult, string) {
	lookup := make(map[string]models.Event, len(candidates))
	for _, ev := range candidates {
		lookup[ev.ID] = ev
	}

	hits := o.vectors.Search(ctx, query, o.cfg.CandidateLimit, o.cfg.MinSimilarity)
	if len(hits) > 0 {
		return o.filter(hits, f, lookup), ModeVector
	}

	if o.keywords == nil {
		return nil, ModeEmpty
	}
	hits, err := o.keywords.Search(query, o.cfg.CandidateLimit)
	if err != nil {
		o.log.Warn().Err(err).Msg("keyword fallback failed")
		return nil, ModeEmpty
	}
	return o.filter(hits, f, lookup), ModeKeyword
}

// filters are the constraints a result must satisfy.
type filters struct {
	location     string
	category     string
	price        *models.PriceRange
	upcomingOnly bool
}

// resolveFilters prefers explicit context filters and falls back to the
// parsed intent when enabled.
func (o *Orchestrator) resolveFilters(sc SearchContext, parsed models.SearchIntent) filters {
	f := filters{
		location:     strings.TrimSpace(sc.Location),
		category:     strings.TrimSpace(sc.Category),
		price:        sc.PriceRange,
		upcomingOnly: sc.DateRange != "",
	}
	if !o.cfg.IntentFilters {
		return f
	}
	if f.location == "" {
		f.location = parsed.Location
	}
	if f.category == "" {
		f.category = parsed.Category
	}
	if f.price == nil {
		f.price = parsed.PriceRange
	}
	if !f.upcomingOnly {
		f.upcomingOnly = parsed.Date != ""
	}
	return f
}

func (o *Orchestrator) filter(hits []search.Hit, f filters, lookup map[string]models.Event) []SearchResult {
	now := o.now()
	location := strings.ToLower(f.location)

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		ev, ok := lookup[hit.EntityID]
		if !ok {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(ev.Location), location) {
			continue
		}
		if f.category != "" && !strings.EqualFold(f.category, ev.Category) {
			continue
		}
		if f.price != nil && !f.price.Contains(ev.Price) {
			continue
		}
		if f.upcomingOnly && !ev.IsUpcoming(now) {
			continue
		}
		results = append(results, SearchResult{
			Event:           ev,
			SimilarityScore: hit.Score,
			FinalScore:      hit.Score,
		})
	}
	return results
}

// personalize blends similarity with the user's preference profile and
// re-sorts. Equal scores keep retrieval order.
func (o *Orchestrator) personalize(ctx context.Context, userID string, results []SearchResult) {
	if o.preferences == nil {
		return
	}
	profile := o.preferences.Preferences(ctx, userID, o.cfg.PreferenceDays)

	for i := range results {
		p := recommend.PersonalizationScore(results[i].Event, profile)
		results[i].PersonalizationScore = p
		results[i].FinalScore = o.cfg.SimilarityWeight*results[i].SimilarityScore + o.cfg.PersonalizationWeight*p
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
}

// record enqueues the search behavior and writes search history. Neither
// can fail the search.
func (o *Orchestrator) record(ctx context.Context, sc SearchContext, resp SearchResponse) {
	if sc.UserID != "" && o.queue != nil && strings.TrimSpace(sc.Query) != "" {
		ev := learning.NewBehaviorEvent(sc.UserID, models.ActionSearch, "", sc.Query, sc.SessionID)
		ev.Context = map[string]string{"search_id": resp.SearchID, "mode": resp.Mode}
		o.queue.Enqueue(ev)
	}

	if o.history == nil {
		return
	}
	rec := storage.SearchRecord{
		SearchID:     resp.SearchID,
		QueryHash:    storage.HashQuery(sc.Query),
		Timestamp:    o.now(),
		ResultsCount: len(resp.Results),
		Mode:         resp.Mode,
	}
	if sc.UserID != "" {
		rec.UserHash = storage.HashQuery(sc.UserID)
	}
	if err := o.history.RecordSearch(context.WithoutCancel(ctx), rec); err != nil {
		o.log.Warn().Err(err).Str("search_id", resp.SearchID).Msg("failed to record search history")
	}
}

func summarize(results []SearchResult, n int) []explain.Result {
	out := make([]explain.Result, 0, min(n, len(results)))
	for i, r := range results {
		if i == n {
			break
		}
		out = append(out, explain.Result{
			Name:     r.Event.Name,
			Category: r.Event.Category,
			Location: r.Event.Location,
			Price:    r.Event.Price,
		})
	}
	return out
}
