package search

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/embedding"
	"github.com/khanglvm/event-hub/internal/models"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	a := []float32{1.0, 2.0, 3.0}
	b := []float32{1.0, 2.0, 3.0}

	similarity := cosineSimilarity(a, b)

	if math.Abs(similarity-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0 for identical vectors, got %f", similarity)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	a := []float32{1.0, 0.0}
	b := []float32{0.0, 1.0}

	similarity := cosineSimilarity(a, b)

	if similarity != 0.0 {
		t.Errorf("expected similarity 0.0 for orthogonal vectors, got %f", similarity)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	a := []float32{1.0, 2.0, 3.0}
	b := []float32{-1.0, -2.0, -3.0}

	similarity := cosineSimilarity(a, b)

	if math.Abs(similarity+1.0) > 1e-9 {
		t.Errorf("expected similarity -1.0 for opposite vectors, got %f", similarity)
	}
}

func TestCosineSimilarity_DifferentLengths(t *testing.T) {
	a := []float32{1.0, 2.0, 3.0}
	b := []float32{1.0, 2.0}

	if similarity := cosineSimilarity(a, b); similarity != 0.0 {
		t.Errorf("expected similarity 0.0 for different lengths, got %f", similarity)
	}
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	a := []float32{0.0, 0.0, 0.0}
	b := []float32{1.0, 2.0, 3.0}

	if similarity := cosineSimilarity(b, a); similarity != 0.0 {
		t.Errorf("expected similarity 0.0 for zero vector, got %f", similarity)
	}
}

func TestCosineSimilarity_Bounds(t *testing.T) {
	texts := []string{"jazz", "technology conference", "art art", "music festival outdoor", "x"}
	for _, ta := range texts {
		a := embedding.SeededEmbedding(ta, 64)
		for _, tb := range texts {
			b := embedding.SeededEmbedding(tb, 64)
			if s := cosineSimilarity(a, b); s < -1 || s > 1 {
				t.Errorf("similarity(%q, %q) = %f out of [-1, 1]", ta, tb, s)
			}
		}
	}
}

func newLexicalEmbedder(t *testing.T) *embedding.Embedder {
	t.Helper()

	cache, err := embedding.NewCache(1000, time.Hour)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	e, err := embedding.New(embedding.Options{Dimension: models.EmbeddingDimension, Cache: cache}, zerolog.Nop())
	if err != nil {
		t.Fatalf("embedding.New failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func scenarioEvents() []models.Event {
	return []models.Event{
		{ID: "jazz", Name: "Jazz Night", Category: "Music", Price: 20, Location: "Austin"},
		{ID: "ai", Name: "AI Summit", Category: "Technology", Price: 300, Location: "San Francisco"},
		{ID: "art", Name: "Art Walk", Category: "Arts", Price: 0, Description: "art gallery exhibition"},
	}
}

func TestVectorIndex_TechnologyQueryRanksSummitFirst(t *testing.T) {
	idx := NewVectorIndex(newLexicalEmbedder(t), nil, nil, zerolog.Nop())
	ctx := context.Background()

	for _, ev := range scenarioEvents() {
		if !idx.IndexEvent(ctx, ev) {
			t.Fatalf("failed to index %s", ev.ID)
		}
	}

	hits := idx.Search(ctx, "technology conference", 10, 0.0)
	if len(hits) == 0 {
		t.Fatal("expected results")
	}
	if hits[0].EntityID != "ai" {
		t.Errorf("expected AI Summit first, got %+v", hits)
	}
	if hits[0].Metadata.Category != "Technology" || hits[0].Metadata.Price != 300 {
		t.Errorf("unexpected metadata: %+v", hits[0].Metadata)
	}
}

func TestVectorIndex_MinSimilarityAndLimit(t *testing.T) {
	idx := NewVectorIndex(newLexicalEmbedder(t), nil, nil, zerolog.Nop())
	ctx := context.Background()

	for _, ev := range scenarioEvents() {
		idx.IndexEvent(ctx, ev)
	}

	for _, minSim := range []float64{-1, 0, 0.1, 0.5, 0.99} {
		for _, limit := range []int{0, 1, 2, 10} {
			hits := idx.Search(ctx, "music art technology", limit, minSim)
			if len(hits) > limit {
				t.Errorf("limit %d: got %d hits", limit, len(hits))
			}
			for _, h := range hits {
				if h.Score < minSim {
					t.Errorf("min %f: hit %s has score %f", minSim, h.EntityID, h.Score)
				}
			}
		}
	}
}

func TestVectorIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx := NewVectorIndex(newLexicalEmbedder(t), nil, nil, zerolog.Nop())
	ctx := context.Background()

	meta := models.EmbeddingMetadata{}
	for _, id := range []string{"c", "a", "b"} {
		idx.Index(ctx, id, "same text", meta)
	}
	// re-indexing keeps the original position
	idx.Index(ctx, "c", "same text", meta)

	hits := idx.Search(ctx, "same text", 10, 0)
	want := []string{"c", "a", "b"}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, id := range want {
		if hits[i].EntityID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, hits[i].EntityID)
		}
	}
}

func TestVectorIndex_Overwrite(t *testing.T) {
	idx := NewVectorIndex(newLexicalEmbedder(t), nil, nil, zerolog.Nop())
	ctx := context.Background()

	idx.Index(ctx, "e1", "music concert", models.EmbeddingMetadata{Category: "Music"})
	idx.Index(ctx, "e1", "sports match", models.EmbeddingMetadata{Category: "Sports"})

	if idx.Len() != 1 {
		t.Errorf("expected 1 entity after re-index, got %d", idx.Len())
	}
	emb, ok := idx.Get("e1")
	if !ok {
		t.Fatal("expected embedding to exist")
	}
	if emb.SourceText != "sports match" || emb.Metadata.Category != "Sports" {
		t.Errorf("expected replaced embedding, got %+v", emb)
	}
	if len(emb.Vector) != models.EmbeddingDimension {
		t.Errorf("expected dimension %d, got %d", models.EmbeddingDimension, len(emb.Vector))
	}
}

func TestVectorIndex_RejectsEmptyID(t *testing.T) {
	idx := NewVectorIndex(newLexicalEmbedder(t), nil, nil, zerolog.Nop())
	if idx.Index(context.Background(), "", "text", models.EmbeddingMetadata{}) {
		t.Error("expected indexing without id to fail")
	}
}

type panickyEmbedder struct{}

func (panickyEmbedder) Embed(context.Context, string) []float32 { panic("boom") }
func (panickyEmbedder) Dimension() int                          { return 8 }

func TestVectorIndex_NeverPanics(t *testing.T) {
	idx := NewVectorIndex(panickyEmbedder{}, nil, nil, zerolog.Nop())
	ctx := context.Background()

	if idx.Index(ctx, "e1", "text", models.EmbeddingMetadata{}) {
		t.Error("expected Index to report failure")
	}
	if hits := idx.Search(ctx, "text", 10, 0); hits == nil || len(hits) != 0 {
		t.Errorf("expected empty non-nil result, got %v", hits)
	}
}

func TestVectorIndex_EmptyQuery(t *testing.T) {
	idx := NewVectorIndex(newLexicalEmbedder(t), nil, nil, zerolog.Nop())
	ctx := context.Background()
	idx.Index(ctx, "e1", "music", models.EmbeddingMetadata{})

	// empty text embeds to the zero vector, whose similarity is 0
	hits := idx.Search(ctx, "", 10, 0.2)
	if len(hits) != 0 {
		t.Errorf("expected no hits for empty query, got %v", hits)
	}
}

func TestVectorIndex_Remove(t *testing.T) {
	idx := NewVectorIndex(newLexicalEmbedder(t), nil, nil, zerolog.Nop())
	ctx := context.Background()
	idx.Index(ctx, "e1", "music", models.EmbeddingMetadata{})

	if !idx.Remove(ctx, "e1") {
		t.Error("expected Remove to report existing entity")
	}
	if idx.Remove(ctx, "e1") {
		t.Error("expected second Remove to report missing entity")
	}
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d", idx.Len())
	}
}

func TestVectorIndex_ConcurrentWriters(t *testing.T) {
	idx := NewVectorIndex(newLexicalEmbedder(t), nil, nil, zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				idx.Index(ctx, "shared", "music concert", models.EmbeddingMetadata{})
				idx.Search(ctx, "music", 5, 0)
			}
		}()
	}
	wg.Wait()

	emb, ok := idx.Get("shared")
	if !ok || len(emb.Vector) != models.EmbeddingDimension {
		t.Errorf("expected intact embedding, got ok=%v len=%d", ok, len(emb.Vector))
	}
}

func TestEventText(t *testing.T) {
	ev := models.Event{Name: "Jazz Night", Description: "", Category: "Music", Tags: []string{"live"}}

	if got := EventText(ev, DefaultTextFields); got != "Jazz Night Music live" {
		t.Errorf("unexpected blob: %q", got)
	}
	if got := EventText(ev, []string{"category"}); got != "Music" {
		t.Errorf("unexpected blob: %q", got)
	}
}
