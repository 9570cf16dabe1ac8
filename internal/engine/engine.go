/*
Package engine is the public surface of the personalization engine.

An Engine wires the configured storage backend, embedder, vector and
keyword indexes, behavior store, recommendation fuser and explanation
generator together:

	eng, err := engine.New(ctx, cfg, logging.Logger())
	defer eng.Close()

	eng.IndexEvent(ctx, ev)
	resp := eng.Search(ctx, engine.SearchContext{Query: "jazz in austin"}, events)
	recs := eng.GetRecommendations(ctx, "user-1", 10, nil)
	eng.TrackBehaviorAsync(models.BehaviorEvent{UserID: "user-1", ActionType: models.ActionView, EventID: ev.ID})

None of these operations return errors. Failures degrade to empty or
default results and are logged.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/config"
	"github.com/khanglvm/event-hub/internal/embedding"
	"github.com/khanglvm/event-hub/internal/explain"
	"github.com/khanglvm/event-hub/internal/learning"
	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/recommend"
	"github.com/khanglvm/event-hub/internal/search"
	"github.com/khanglvm/event-hub/internal/storage"
	"github.com/khanglvm/event-hub/internal/storage/mongo"
)

// Engine is safe for concurrent use.
type Engine struct {
	cfg          *config.Config
	store        storage.Storage
	embedder     *embedding.Embedder
	vectors      *search.VectorIndex
	keywords     *search.KeywordIndex
	behavior     *learning.BehaviorStore
	tracker      *learning.Tracker
	fuser        *recommend.Fuser
	orchestrator *Orchestrator
	closers      []io.Closer
	log          zerolog.Logger
}

// New builds an Engine from cfg. Optional collaborators that cannot be
// reached (Redis, snapshot store, Vertex AI) are skipped with a warning.
// Only an unusable storage backend or embedder is an error.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Engine, error) {
	e := &Engine{cfg: cfg, log: log.With().Str("component", "engine").Logger()}

	store, err := OpenStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e.store = store

	embedder, err := newEmbedder(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	e.embedder = embedder

	snapshot := e.openSnapshot(cfg)
	e.vectors = search.NewVectorIndex(embedder, cfg.Index.TextFields, snapshot, log)
	if n, err := e.vectors.Restore(ctx); err != nil {
		e.log.Warn().Err(err).Msg("failed to restore vector index snapshot")
	} else if n > 0 {
		e.log.Debug().Int("embeddings", n).Msg("restored vector index")
	}

	if cfg.Index.KeywordFallback {
		e.keywords, err = search.NewKeywordIndex(log)
		if err != nil {
			e.log.Warn().Err(err).Msg("keyword index unavailable")
		} else if catalog, err := store.ListEvents(ctx); err == nil {
			if err := e.keywords.IndexEvents(catalog); err != nil {
				e.log.Warn().Err(err).Msg("failed to build keyword index")
			}
		}
	}

	e.behavior = learning.NewBehaviorStore(store, learning.Options{
		WindowDays:          cfg.Behavior.PreferenceWindowDays,
		SimilarityThreshold: cfg.Behavior.SimilarityThreshold,
		Workers:             cfg.Behavior.SimilarUserWorkers,
	}, log)

	e.tracker = learning.NewTracker(e.behavior, learning.TrackerConfig{
		QueueSize:     cfg.Behavior.QueueSize,
		BatchSize:     cfg.Behavior.BatchSize,
		FlushInterval: cfg.Behavior.FlushInterval,
	}, log)

	e.fuser = recommend.New(e.behavior, store, recommend.Config{
		NormalizeScores:   cfg.Recommend.NormalizeScores,
		TrendingWindow:    cfg.Recommend.TrendingWindow,
		SimilarUsers:      cfg.Recommend.SimilarUsers,
		TopCategories:     cfg.Recommend.TopCategories,
		EventsPerCategory: cfg.Recommend.EventsPerCategory,
	}, log)

	deps := OrchestratorDeps{
		Vectors:     e.vectors,
		Preferences: e.behavior,
		Queue:       e.tracker,
		History:     store,
		Explainer:   explain.New(e.newGenerator(ctx, cfg), explain.Config{Timeout: cfg.Explain.Timeout}, log),
	}
	if e.keywords != nil {
		deps.Keywords = e.keywords
	}
	e.orchestrator = NewOrchestrator(deps, SearchConfig{
		CandidateLimit:        cfg.Search.CandidateLimit,
		MinSimilarity:         cfg.Search.MinSimilarity,
		MaxResults:            cfg.Search.MaxResults,
		SimilarityWeight:      cfg.Search.SimilarityWeight,
		PersonalizationWeight: cfg.Search.PersonalizationWeight,
		Timeout:               cfg.Search.Timeout,
		IntentFilters:         cfg.Search.IntentFilters,
	}, log)

	return e, nil
}

// OpenStorage opens and initializes the configured storage backend. A
// SQLite store that fails to initialize is returned disabled rather than
// as an error.
func OpenStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.Storage, error) {
	var store storage.Storage
	switch cfg.Storage.Backend {
	case "memory":
		store = storage.NewMemoryStorage()
	case "mongo":
		store = mongo.New(cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, log)
	default:
		store = storage.NewStorage(cfg.DatabasePath(), log)
	}

	if err := store.Init(ctx); err != nil {
		// SQLite disables itself and keeps serving empty results.
		if _, ok := store.(*storage.SQLiteStorage); ok {
			return store, nil
		}
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Backend, err)
	}
	return store, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*embedding.Embedder, error) {
	ec := cfg.Embedding

	cache, err := embedding.NewCache(ec.CacheMaxEntries, ec.CacheTTL)
	if err != nil {
		return nil, err
	}

	opts := embedding.Options{
		Dimension:    ec.Dimension,
		Cache:        cache,
		BatchWorkers: ec.BatchWorkers,
	}

	if ec.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		rc, err := embedding.NewRedisCache(pingCtx, ec.RedisAddr, ec.RedisPrefix, ec.CacheTTL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis embedding cache unavailable, continuing without it")
		} else {
			opts.Redis = rc
		}
	}

	if ec.ProviderURL != "" {
		opts.Provider = embedding.NewHTTPProvider(embedding.HTTPProviderConfig{
			BaseURL:         ec.ProviderURL,
			APIKey:          ec.APIKey,
			Model:           ec.Model,
			Dimension:       ec.Dimension,
			Timeout:         ec.Timeout,
			RateLimit:       ec.RateLimit,
			RateBurst:       ec.RateBurst,
			BreakerFailures: ec.BreakerFailures,
			BreakerCooldown: ec.BreakerCooldown,
		}, log)
	}

	embedder, err := embedding.New(opts, log)
	if err != nil {
		cache.Close()
		return nil, err
	}
	return embedder, nil
}

// openSnapshot returns the configured snapshot store, or nil.
func (e *Engine) openSnapshot(cfg *config.Config) search.SnapshotStore {
	switch cfg.Index.SnapshotBackend {
	case "badger":
		snap, err := search.OpenBadgerSnapshot(cfg.SnapshotPath())
		if err != nil {
			e.log.Warn().Err(err).Msg("badger snapshot unavailable, vectors will not persist")
			return nil
		}
		e.closers = append(e.closers, snap)
		return snap
	case "sqlite":
		if s, ok := e.store.(*storage.SQLiteStorage); ok && s.Enabled() {
			return s
		}
		e.log.Debug().Str("backend", cfg.Storage.Backend).Msg("sqlite snapshot needs the sqlite backend, vectors will not persist")
		return nil
	default:
		return nil
	}
}

func (e *Engine) newGenerator(ctx context.Context, cfg *config.Config) explain.Generator {
	if cfg.Explain.Provider != "vertex" {
		return nil
	}
	gen, err := explain.NewVertexGenerator(ctx, cfg.Explain.Project, cfg.Explain.Location, cfg.Explain.Model)
	if err != nil {
		e.log.Warn().Err(err).Msg("vertex explanation generator unavailable, using template")
		return nil
	}
	e.closers = append(e.closers, gen)
	return gen
}

// IndexEvent stores ev in the catalog and indexes its text. It reports
// whether the vector index accepted the event.
func (e *Engine) IndexEvent(ctx context.Context, ev models.Event) bool {
	if err := e.store.UpsertEvent(ctx, ev); err != nil && !errors.Is(err, storage.ErrDisabled) {
		e.log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to store event")
	}

	if e.keywords != nil {
		if err := e.keywords.IndexEvents([]models.Event{ev}); err != nil {
			e.log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to index event keywords")
		}
	}

	return e.vectors.IndexEvent(ctx, ev)
}

// IndexCatalog re-indexes every stored event and returns how many the
// vector index accepted. Texts are embedded in one batch first so the
// per-event indexing hits the cache.
func (e *Engine) IndexCatalog(ctx context.Context) int {
	catalog, err := e.store.ListEvents(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to list catalog")
		return 0
	}

	texts := make([]string, len(catalog))
	for i, ev := range catalog {
		texts[i] = search.EventText(ev, e.cfg.Index.TextFields)
	}
	e.embedder.EmbedBatch(ctx, texts)

	if e.keywords != nil {
		if err := e.keywords.IndexEvents(catalog); err != nil {
			e.log.Warn().Err(err).Msg("failed to index catalog keywords")
		}
	}

	indexed := 0
	for _, ev := range catalog {
		if e.vectors.IndexEvent(ctx, ev) {
			indexed++
		}
	}
	return indexed
}

// Search ranks candidates for sc.
func (e *Engine) Search(ctx context.Context, sc SearchContext, candidates []models.Event) SearchResponse {
	return e.orchestrator.Search(ctx, sc, candidates)
}

// SearchCatalog searches over every stored event.
func (e *Engine) SearchCatalog(ctx context.Context, sc SearchContext) SearchResponse {
	catalog, err := e.store.ListEvents(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to list catalog")
	}
	return e.orchestrator.Search(ctx, sc, catalog)
}

// GetRecommendations returns up to limit recommendations (the configured
// default when limit <= 0).
func (e *Engine) GetRecommendations(ctx context.Context, userID string, limit int, reqCtx map[string]string) []models.RecommendationItem {
	if limit <= 0 {
		limit = e.cfg.Recommend.DefaultLimit
	}
	return e.fuser.Recommend(ctx, userID, limit, reqCtx)
}

// TrackBehavior writes ev synchronously.
func (e *Engine) TrackBehavior(ctx context.Context, ev models.BehaviorEvent) bool {
	return e.behavior.Track(ctx, ev)
}

// TrackBehaviorAsync queues ev without blocking the caller.
func (e *Engine) TrackBehaviorAsync(ev models.BehaviorEvent) bool {
	return e.tracker.Enqueue(ev)
}

// GetUserPreferences derives the user's profile over the last days (the
// configured window when days <= 0).
func (e *Engine) GetUserPreferences(ctx context.Context, userID string, days int) models.PreferenceProfile {
	return e.behavior.Preferences(ctx, userID, days)
}

// SimilarUsers returns users whose category preferences resemble userID's.
func (e *Engine) SimilarUsers(ctx context.Context, userID string, limit int) []string {
	return e.behavior.SimilarUsers(ctx, userID, limit)
}

// Storage exposes the backing store for maintenance commands.
func (e *Engine) Storage() storage.Storage {
	return e.store
}

// IndexedEvents returns the number of events in the vector index.
func (e *Engine) IndexedEvents() int {
	return e.vectors.Len()
}

// ClearIndex drops every embedding, including the snapshot.
func (e *Engine) ClearIndex(ctx context.Context) error {
	e.embedder.Cache().Clear()
	return e.vectors.Clear(ctx)
}

// Close drains the behavior queue and releases every backend.
func (e *Engine) Close() error {
	e.tracker.Stop()

	var errs []error
	if e.keywords != nil {
		errs = append(errs, e.keywords.Close())
	}
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, e.embedder.Close(), e.store.Close())

	return errors.Join(errs...)
}
