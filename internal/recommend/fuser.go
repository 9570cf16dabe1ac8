/*
Package recommend produces proactive event recommendations for a user.

Three independent sources feed one ranked list:

  - content based: upcoming events in the user's strongest categories,
    scored against the preference profile
  - collaborative: what behaviorally similar users bought, liked or shared
  - trending: events with the most interactions from the most users over
    the last week

Each source fails on its own. A broken source contributes nothing and the
others still produce results. Fusion deduplicates by event id keeping the
highest score, then sorts descending.
*/
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/event-hub/internal/learning"
	"github.com/khanglvm/event-hub/internal/metrics"
	"github.com/khanglvm/event-hub/internal/models"
)

// ContextExcludeEvents is the request context key listing event ids
// (comma separated) that must not be recommended.
const ContextExcludeEvents = "exclude_event_ids"

const (
	defaultLimit             = 10
	defaultTrendingWindow    = 7 * 24 * time.Hour
	defaultSimilarUsers      = 5
	defaultTopCategories     = 3
	defaultEventsPerCategory = 20
	positiveEventsPerUser    = 50
)

// BehaviorSource is the slice of the behavior store the fuser reads.
type BehaviorSource interface {
	Preferences(ctx context.Context, userID string, days int) models.PreferenceProfile
	SimilarUsers(ctx context.Context, userID string, limit int) []string
	PositiveEvents(ctx context.Context, userID string, limit int) []models.BehaviorEvent
	RecentEvents(ctx context.Context, window time.Duration) []models.BehaviorEvent
}

// Catalog looks up future events by category.
type Catalog interface {
	UpcomingEvents(ctx context.Context, category string, after time.Time, limit int) ([]models.Event, error)
}

// Config tunes the fuser. Zero values take defaults.
type Config struct {
	// NormalizeScores divides each source's scores by that source's
	// maximum so every fused score lies in [0,1].
	NormalizeScores bool

	TrendingWindow    time.Duration
	SimilarUsers      int
	TopCategories     int
	EventsPerCategory int

	// PreferenceDays is the profile window; 0 uses the store default.
	PreferenceDays int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		NormalizeScores:   true,
		TrendingWindow:    defaultTrendingWindow,
		SimilarUsers:      defaultSimilarUsers,
		TopCategories:     defaultTopCategories,
		EventsPerCategory: defaultEventsPerCategory,
	}
}

// Fuser combines content, collaborative and trending signals.
type Fuser struct {
	behavior BehaviorSource
	catalog  Catalog
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger
}

// New creates a fuser.
func New(behavior BehaviorSource, catalog Catalog, cfg Config, log zerolog.Logger) *Fuser {
	if cfg.TrendingWindow <= 0 {
		cfg.TrendingWindow = defaultTrendingWindow
	}
	if cfg.SimilarUsers <= 0 {
		cfg.SimilarUsers = defaultSimilarUsers
	}
	if cfg.TopCategories <= 0 {
		cfg.TopCategories = defaultTopCategories
	}
	if cfg.EventsPerCategory <= 0 {
		cfg.EventsPerCategory = defaultEventsPerCategory
	}

	return &Fuser{
		behavior: behavior,
		catalog:  catalog,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "recommend").Logger(),
	}
}

// step is one recommendation source.
type step struct {
	source models.RecommendationSource
	limit  int
	run    func(ctx context.Context, userID string, limit int) []models.RecommendationItem
}

// Recommend returns up to limit recommendations for userID. It never fails;
// a user without history still gets trending events.
func (f *Fuser) Recommend(ctx context.Context, userID string, limit int, reqCtx map[string]string) []models.RecommendationItem {
	if limit <= 0 {
		limit = defaultLimit
	}

	steps := []step{
		{models.SourceContentBased, max(1, limit/2), f.contentBased},
		{models.SourceCollaborative, max(1, limit/2), f.collaborative},
		{models.SourceTrending, max(1, limit/4), f.trending},
	}

	// Sources run concurrently; results are concatenated in step order so
	// the fused ranking does not depend on completion order.
	results := make([][]models.RecommendationItem, len(steps))
	var g errgroup.Group
	for i, s := range steps {
		g.Go(func() error {
			results[i] = f.runStep(ctx, s, userID)
			return nil
		})
	}
	_ = g.Wait()

	var all []models.RecommendationItem
	for _, items := range results {
		all = append(all, items...)
	}

	return Fuse(excludeEvents(all, reqCtx), limit)
}

// runStep isolates a source: panics and errors yield an empty list.
func (f *Fuser) runStep(ctx context.Context, s step, userID string) (items []models.RecommendationItem) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecommendationStepFailures.WithLabelValues(string(s.source)).Inc()
			f.log.Error().Interface("panic", r).Str("source", string(s.source)).Msg("recommendation step failed")
			items = nil
		}
	}()

	items = s.run(ctx, userID, s.limit)
	if f.cfg.NormalizeScores {
		normalize(items)
	}
	metrics.RecommendationItems.WithLabelValues(string(s.source)).Add(float64(len(items)))
	return items
}

func (f *Fuser) contentBased(ctx context.Context, userID string, limit int) []models.RecommendationItem {
	profile := f.behavior.Preferences(ctx, userID, f.cfg.PreferenceDays)
	if profile.IsEmpty() {
		return nil
	}

	now := f.now()
	seen := make(map[string]bool)
	var items []models.RecommendationItem

	for _, category := range topCategories(profile.Categories, f.cfg.TopCategories) {
		events, err := f.catalog.UpcomingEvents(ctx, category, now, f.cfg.EventsPerCategory)
		if err != nil {
			metrics.RecommendationStepFailures.WithLabelValues(string(models.SourceContentBased)).Inc()
			f.log.Warn().Err(err).Str("category", category).Msg("failed to load upcoming events")
			continue
		}
		for _, ev := range events {
			if seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			score := ContentScore(ev, profile, now)
			items = append(items, models.RecommendationItem{
				EventID:  ev.ID,
				Score:    score,
				RawScore: score,
				Reason:   fmt.Sprintf("Popular in %s", category),
				Source:   models.SourceContentBased,
			})
		}
	}

	return topItems(items, limit)
}

func (f *Fuser) collaborative(ctx context.Context, userID string, limit int) []models.RecommendationItem {
	similar := f.behavior.SimilarUsers(ctx, userID, f.cfg.SimilarUsers)
	if len(similar) == 0 {
		return nil
	}

	var events []models.BehaviorEvent
	for _, other := range similar {
		events = append(events, f.behavior.PositiveEvents(ctx, other, positiveEventsPerUser)...)
	}

	scores := learning.CollaborativeScores(events)
	items := make([]models.RecommendationItem, 0, min(limit, len(scores)))
	for _, s := range scores {
		if len(items) == limit {
			break
		}
		items = append(items, models.RecommendationItem{
			EventID:  s.EventID,
			Score:    s.Score,
			RawScore: s.Score,
			Reason:   "Users like you also liked this",
			Source:   models.SourceCollaborative,
		})
	}
	return items
}

func (f *Fuser) trending(ctx context.Context, _ string, limit int) []models.RecommendationItem {
	scores := learning.TrendingScores(f.behavior.RecentEvents(ctx, f.cfg.TrendingWindow))

	items := make([]models.RecommendationItem, 0, min(limit, len(scores)))
	for _, s := range scores {
		if len(items) == limit {
			break
		}
		items = append(items, models.RecommendationItem{
			EventID:  s.EventID,
			Score:    s.Score,
			RawScore: s.Score,
			Reason:   fmt.Sprintf("Trending - %d users interested", s.Users),
			Source:   models.SourceTrending,
		})
	}
	return items
}

// Fuse deduplicates items by event id keeping the highest score, sorts
// descending and truncates to limit. Equal scores keep input order.
func Fuse(items []models.RecommendationItem, limit int) []models.RecommendationItem {
	best := make(map[string]int, len(items))
	out := make([]models.RecommendationItem, 0, len(items))

	for _, item := range items {
		if item.EventID == "" {
			continue
		}
		if i, ok := best[item.EventID]; ok {
			if item.Score > out[i].Score {
				out[i] = item
			}
			continue
		}
		best[item.EventID] = len(out)
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// topCategories returns the n heaviest categories, ties by name.
func topCategories(weights map[string]float64, n int) []string {
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
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// topItems sorts by score descending and keeps the first limit items.
func topItems(items []models.RecommendationItem, limit int) []models.RecommendationItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// normalize scales scores by the largest one. RawScore is untouched.
func normalize(items []models.RecommendationItem) {
	var top float64
	for _, item := range items {
		if item.Score > top {
			top = item.Score
		}
	}
	if top <= 0 {
		return
	}
	for i := range items {
		items[i].Score /= top
	}
}

func excludeEvents(items []models.RecommendationItem, reqCtx map[string]string) []models.RecommendationItem {
	raw := strings.TrimSpace(reqCtx[ContextExcludeEvents])
	if raw == "" {
		return items
	}

	excluded := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			excluded[id] = true
		}
	}

	kept := items[:0]
	for _, item := range items {
		if !excluded[item.EventID] {
			kept = append(kept, item)
		}
	}
	return kept
}
