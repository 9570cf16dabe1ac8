package learning

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/event-hub/internal/metrics"
	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/storage"
)

const (
	// DefaultWindowDays is the trailing window of a preference profile.
	DefaultWindowDays = 30

	// DefaultSimilarityThreshold is the minimum similarity of a similar user.
	DefaultSimilarityThreshold = 0.3

	defaultWorkers = 4
)

// Options tunes a BehaviorStore.
type Options struct {
	WindowDays          int
	SimilarityThreshold float64

	// Workers bounds concurrent profile computations in SimilarUsers.
	Workers int
}

// BehaviorStore is the behavior log plus the profiles derived from it.
// Every method degrades to an empty result on storage failure.
type BehaviorStore struct {
	storage   storage.Storage
	window    int
	threshold float64
	workers   int
	now       func() time.Time
	log       zerolog.Logger
}

// NewBehaviorStore creates a BehaviorStore over s.
func NewBehaviorStore(s storage.Storage, opts Options, log zerolog.Logger) *BehaviorStore {
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultWindowDays
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	return &BehaviorStore{
		storage:   s,
		window:    opts.WindowDays,
		threshold: opts.SimilarityThreshold,
		workers:   opts.Workers,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With().Str("component", "behavior").Logger(),
	}
}

// Track appends ev to the log, stamping it with the current time when its
// timestamp is zero. It returns false on failure.
func (b *BehaviorStore) Track(ctx context.Context, ev models.BehaviorEvent) bool {
	ev = normalizeEvent(ev, b.now())
	if ev.UserID == "" {
		b.log.Warn().Str("action", string(ev.ActionType)).Msg("dropping behavior event without user")
		metrics.BehaviorEvents.WithLabelValues(actionLabel(ev.ActionType), "error").Inc()
		return false
	}

	if err := b.storage.AppendBehavior(ctx, ev); err != nil {
		b.log.Warn().Err(err).Str("user_id", ev.UserID).Msg("failed to record behavior")
		metrics.BehaviorEvents.WithLabelValues(actionLabel(ev.ActionType), "error").Inc()
		return false
	}

	metrics.BehaviorEvents.WithLabelValues(actionLabel(ev.ActionType), "ok").Inc()
	return true
}

// Preferences derives a user's profile from the last days of behavior
// (the configured window when days <= 0).
func (b *BehaviorStore) Preferences(ctx context.Context, userID string, days int) models.PreferenceProfile {
	if days <= 0 {
		days = b.window
	}
	profile := models.NewPreferenceProfile(userID)

	since := b.now().Add(-time.Duration(days) * 24 * time.Hour)
	events, err := b.storage.BehaviorsForUser(ctx, userID, since)
	if err != nil {
		b.log.Warn().Err(err).Str("user_id", userID).Msg("failed to load behavior history")
		return profile
	}
	profile.TotalInteractions = len(events)

	catalog := make(map[string]*models.Event)
	var priceSum float64
	var priced int

	for _, ev := range events {
		if !ev.HasEvent() {
			continue
		}

		event, seen := catalog[ev.EventID]
		if !seen {
			event, err = b.storage.GetEvent(ctx, ev.EventID)
			if err != nil {
				b.log.Warn().Err(err).Str("event_id", ev.EventID).Msg("failed to look up event")
			}
			catalog[ev.EventID] = event
		}
		if event == nil {
			continue
		}

		weight := ev.ActionType.PreferenceWeight()
		if event.Category != "" {
			profile.Categories[event.Category] += weight
		}
		if event.Location != "" {
			profile.Locations[event.Location] += weight
		}
		if event.Price > 0 {
			priceSum += event.Price
			priced++
		}
	}

	if priced > 0 {
		profile.AveragePricePreference = priceSum / float64(priced)
	}
	return profile
}

// SimilarUsers returns up to limit users whose category preferences are
// most similar to userID's, best first. Users at or below the similarity
// threshold are excluded.
func (b *BehaviorStore) SimilarUsers(ctx context.Context, userID string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	target := b.Preferences(ctx, userID, 0)
	if target.IsEmpty() {
		return []string{}
	}

	candidates, err := b.storage.UserIDs(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to list users")
		return []string{}
	}

	type scored struct {
		userID     string
		similarity float64
	}
	results := make([]scored, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, other := range candidates {
		if other == userID {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			profile := b.Preferences(gctx, other, 0)
			results[i] = scored{userID: other, similarity: categorySimilarity(target.Categories, profile.Categories)}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		b.log.Warn().Err(err).Str("user_id", userID).Msg("similar user search interrupted")
	}

	similar := make([]scored, 0, len(results))
	for _, r := range results {
		if r.userID != "" && r.similarity > b.threshold {
			similar = append(similar, r)
		}
	}

	sort.Slice(similar, func(i, j int) bool {
		if similar[i].similarity != similar[j].similarity {
			return similar[i].similarity > similar[j].similarity
		}
		return similar[i].userID < similar[j].userID
	})

	if len(similar) > limit {
		similar = similar[:limit]
	}

	out := make([]string, len(similar))
	for i, s := range similar {
		out[i] = s.userID
	}
	return out
}

// PositiveEvents returns a user's most recent purchases, likes and shares.
func (b *BehaviorStore) PositiveEvents(ctx context.Context, userID string, limit int) []models.BehaviorEvent {
	events, err := b.storage.BehaviorsByActions(ctx, userID, models.PositiveActions, limit)
	if err != nil {
		b.log.Warn().Err(err).Str("user_id", userID).Msg("failed to load positive actions")
		return []models.BehaviorEvent{}
	}
	return events
}

// RecentEvents returns every behavior event of the trailing window.
func (b *BehaviorStore) RecentEvents(ctx context.Context, window time.Duration) []models.BehaviorEvent {
	events, err := b.storage.BehaviorsSince(ctx, b.now().Add(-window))
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to load recent behavior")
		return []models.BehaviorEvent{}
	}
	return events
}

// categorySimilarity is the cosine of two category-weight maps restricted
// to the categories present in both; 0 when none are shared.
func categorySimilarity(a, b map[string]float64) float64 {
	common := make([]string, 0, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			common = append(common, k)
		}
	}
	if len(common) == 0 {
		return 0
	}
	sort.Strings(common)

	var dot, normA, normB float64
	for _, k := range common {
		dot += a[k] * b[k]
		normA += a[k] * a[k]
		normB += b[k] * b[k]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
