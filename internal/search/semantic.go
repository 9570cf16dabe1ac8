package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/metrics"
	"github.com/khanglvm/event-hub/internal/models"
)

// Embedder turns text into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	Dimension() int
}

// SnapshotStore persists embeddings so the index survives restarts.
type SnapshotStore interface {
	SaveEmbedding(ctx context.Context, emb models.TextEmbedding) error
	DeleteEmbedding(ctx context.Context, entityID string) error
	LoadEmbeddings(ctx context.Context) ([]models.TextEmbedding, error)
	ClearEmbeddings(ctx context.Context) error
}

// slot keeps the first insertion position of an entity for tie-breaking.
type slot struct {
	seq uint64
	emb *models.TextEmbedding
}

// VectorIndex stores one embedding per entity and answers similarity
// queries by linear scan. Writes replace the whole embedding pointer, so
// readers never observe a partial update.
type VectorIndex struct {
	embedder Embedder
	dim      int
	fields   []string
	snapshot SnapshotStore

	mu      sync.RWMutex
	entries map[string]*slot
	nextSeq uint64

	log zerolog.Logger
}

// NewVectorIndex creates an empty index. fields selects the event fields
// used by IndexEvent; snapshot may be nil.
func NewVectorIndex(embedder Embedder, fields []string, snapshot SnapshotStore, log zerolog.Logger) *VectorIndex {
	if len(fields) == 0 {
		fields = DefaultTextFields
	}
	return &VectorIndex{
		embedder: embedder,
		dim:      embedder.Dimension(),
		fields:   fields,
		snapshot: snapshot,
		entries:  make(map[string]*slot),
		log:      log.With().Str("component", "vector_index").Logger(),
	}
}

// Dimension returns the vector length of every stored embedding.
func (v *VectorIndex) Dimension() int {
	return v.dim
}

// IndexEvent embeds the event's text blob and stores it under the event ID.
func (v *VectorIndex) IndexEvent(ctx context.Context, ev models.Event) bool {
	return v.Index(ctx, ev.ID, EventText(ev, v.fields), ev.Metadata())
}

// Index embeds text and stores it under entityID, replacing any prior
// embedding. It returns false on failure and never panics.
func (v *VectorIndex) Index(ctx context.Context, entityID, text string, meta models.EmbeddingMetadata) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error().Interface("panic", r).Str("entity_id", entityID).Msg("indexing panicked")
			ok = false
		}
	}()

	if entityID == "" {
		v.log.Warn().Msg("refusing to index entity without id")
		return false
	}

	vec := v.embedder.Embed(ctx, text)
	if len(vec) != v.dim {
		v.log.Warn().Str("entity_id", entityID).Int("got", len(vec)).Int("want", v.dim).Msg("embedding has wrong dimension")
		return false
	}

	emb := &models.TextEmbedding{
		EntityID:   entityID,
		Vector:     vec,
		SourceText: text,
		CreatedAt:  time.Now().UTC(),
		Metadata:   meta,
	}
	v.put(emb)

	if v.snapshot != nil {
		if err := v.snapshot.SaveEmbedding(ctx, *emb); err != nil {
			v.log.Warn().Err(err).Str("entity_id", entityID).Msg("failed to snapshot embedding")
		}
	}
	return true
}

func (v *VectorIndex) put(emb *models.TextEmbedding) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, exists := v.entries[emb.EntityID]; exists {
		v.entries[emb.EntityID] = &slot{seq: s.seq, emb: emb}
	} else {
		v.entries[emb.EntityID] = &slot{seq: v.nextSeq, emb: emb}
		v.nextSeq++
	}
	metrics.VectorIndexSize.Set(float64(len(v.entries)))
}

// Search embeds the query once and returns at most limit hits with
// similarity >= minSimilarity, best first. Ties keep insertion order.
// It returns an empty slice on failure and never panics.
func (v *VectorIndex) Search(ctx context.Context, query string, limit int, minSimilarity float64) (hits []Hit) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error().Interface("panic", r).Msg("vector search panicked")
			hits = []Hit{}
		}
	}()

	if limit <= 0 {
		return []Hit{}
	}

	qvec := v.embedder.Embed(ctx, query)

	type scored struct {
		hit Hit
		seq uint64
	}

	v.mu.RLock()
	candidates := make([]scored, 0, len(v.entries))
	for _, s := range v.entries {
		score := cosineSimilarity(qvec, s.emb.Vector)
		if score < minSimilarity {
			continue
		}
		candidates = append(candidates, scored{
			hit: Hit{EntityID: s.emb.EntityID, Score: score, Metadata: s.emb.Metadata},
			seq: s.seq,
		})
	}
	v.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Score != candidates[j].hit.Score {
			return candidates[i].hit.Score > candidates[j].hit.Score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits = make([]Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.hit
	}
	return hits
}

// Get returns the embedding stored for entityID.
func (v *VectorIndex) Get(entityID string) (models.TextEmbedding, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s, ok := v.entries[entityID]
	if !ok {
		return models.TextEmbedding{}, false
	}
	return *s.emb, true
}

// Remove drops the embedding of entityID from the index and the snapshot.
func (v *VectorIndex) Remove(ctx context.Context, entityID string) bool {
	v.mu.Lock()
	_, ok := v.entries[entityID]
	delete(v.entries, entityID)
	metrics.VectorIndexSize.Set(float64(len(v.entries)))
	v.mu.Unlock()

	if ok && v.snapshot != nil {
		if err := v.snapshot.DeleteEmbedding(ctx, entityID); err != nil {
			v.log.Warn().Err(err).Str("entity_id", entityID).Msg("failed to delete embedding snapshot")
		}
	}
	return ok
}

// Len returns the number of indexed entities.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// Restore loads snapshotted embeddings in their saved order, skipping
// vectors whose dimension does not match the index. It returns how many
// embeddings were restored.
func (v *VectorIndex) Restore(ctx context.Context) (int, error) {
	if v.snapshot == nil {
		return 0, nil
	}

	embs, err := v.snapshot.LoadEmbeddings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load embedding snapshot: %w", err)
	}

	restored := 0
	for i := range embs {
		if len(embs[i].Vector) != v.dim {
			v.log.Warn().Str("entity_id", embs[i].EntityID).Int("got", len(embs[i].Vector)).
				Msg("skipping snapshot with wrong dimension")
			continue
		}
		v.put(&embs[i])
		restored++
	}
	return restored, nil
}

// Clear empties the index and its snapshot.
func (v *VectorIndex) Clear(ctx context.Context) error {
	v.mu.Lock()
	v.entries = make(map[string]*slot)
	v.nextSeq = 0
	metrics.VectorIndexSize.Set(0)
	v.mu.Unlock()

	if v.snapshot != nil {
		if err := v.snapshot.ClearEmbeddings(ctx); err != nil {
			return fmt.Errorf("failed to clear embedding snapshot: %w", err)
		}
	}
	return nil
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim))
}

// CosineSimilarity is the exported similarity metric.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
