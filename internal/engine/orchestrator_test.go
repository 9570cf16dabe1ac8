package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/embedding"
	"github.com/khanglvm/event-hub/internal/explain"
	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/search"
	"github.com/khanglvm/event-hub/internal/storage"
)

// fakeVectors returns fixed hits, or panics when told to.
type fakeVectors struct {
	hits  []search.Hit
	panic bool
	calls int
}

func (f *fakeVectors) Search(ctx context.Context, query string, limit int, minSimilarity float64) []search.Hit {
	f.calls++
	if f.panic {
		panic("index corrupted")
	}
	if len(f.hits) > limit {
		return f.hits[:limit]
	}
	return f.hits
}

type fakeKeywords struct {
	hits []search.Hit
	err  error
}

func (f *fakeKeywords) Search(query string, limit int) ([]search.Hit, error) {
	return f.hits, f.err
}

type fakePreferences struct {
	profile models.PreferenceProfile
}

func (f fakePreferences) Preferences(context.Context, string, int) models.PreferenceProfile {
	return f.profile
}

type fakeQueue struct {
	mu     sync.Mutex
	events []models.BehaviorEvent
}

func (f *fakeQueue) Enqueue(ev models.BehaviorEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func templateExplainer() *explain.Explainer {
	return explain.New(nil, explain.Config{}, zerolog.Nop())
}

func scenarioEvents() []models.Event {
	future := time.Now().UTC().Add(48 * time.Hour)
	return []models.Event{
		{ID: "jazz", Name: "Jazz Night", Description: "Live jazz with local bands", Category: "Music", Location: "Austin", Price: 20, Date: future},
		{ID: "ai", Name: "AI Summit", Description: "Technology conference about machine learning", Category: "Technology", Location: "San Francisco", Price: 300, Date: future},
		{ID: "art", Name: "Art Walk", Description: "art gallery exhibition", Category: "Arts", Location: "Austin", Price: 0, Date: future},
	}
}

func newLexicalIndex(t *testing.T, events []models.Event) *search.VectorIndex {
	t.Helper()
	cache, err := embedding.NewCache(1000, 0)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	emb, err := embedding.New(embedding.Options{Dimension: models.EmbeddingDimension, Cache: cache}, zerolog.Nop())
	if err != nil {
		t.Fatalf("embedding.New failed: %v", err)
	}
	t.Cleanup(func() { emb.Close() })

	idx := search.NewVectorIndex(emb, nil, nil, zerolog.Nop())
	for _, ev := range events {
		if !idx.IndexEvent(context.Background(), ev) {
			t.Fatalf("failed to index %s", ev.ID)
		}
	}
	return idx
}

func hitsFor(ids ...string) []search.Hit {
	hits := make([]search.Hit, len(ids))
	for i, id := range ids {
		hits[i] = search.Hit{EntityID: id, Score: 1 - float64(i)*0.01}
	}
	return hits
}

func TestSearch_TechnologyScenario(t *testing.T) {
	events := scenarioEvents()
	cfg := DefaultSearchConfig()
	cfg.MinSimilarity = 0
	cfg.IntentFilters = false

	o := NewOrchestrator(OrchestratorDeps{
		Vectors:   newLexicalIndex(t, events),
		Explainer: templateExplainer(),
	}, cfg, zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "technology conference"}, events)
	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}
	if resp.Results[0].Event.ID != "ai" {
		t.Errorf("expected AI Summit first, got %s", resp.Results[0].Event.ID)
	}
	if resp.Mode != ModeVector {
		t.Errorf("expected vector mode, got %s", resp.Mode)
	}
	if resp.Intent.Category != "technology" {
		t.Errorf("expected parsed intent in the response, got %+v", resp.Intent)
	}
	want := fmt.Sprintf("Found %d events matching 'technology conference'", resp.TotalFound)
	if resp.Explanation != want {
		t.Errorf("expected %q, got %q", want, resp.Explanation)
	}
}

func TestSearch_IntentFiltersApply(t *testing.T) {
	events := scenarioEvents()
	o := NewOrchestrator(OrchestratorDeps{
		Vectors:   &fakeVectors{hits: hitsFor("jazz", "ai", "art")},
		Explainer: templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "free art in austin"}, events)
	if len(resp.Results) != 1 || resp.Results[0].Event.ID != "art" {
		t.Errorf("expected only the free Austin art event, got %+v", resp.Results)
	}
}

func TestSearch_ContextFilters(t *testing.T) {
	events := scenarioEvents()
	events = append(events, models.Event{ID: "old", Category: "Music", Location: "Austin TX", Price: 10, Date: time.Now().UTC().Add(-time.Hour)})
	all := hitsFor("jazz", "ai", "art", "old")

	tests := []struct {
		name string
		sc   SearchContext
		want []string
	}{
		{"location substring", SearchContext{Location: "AUSTIN"}, []string{"jazz", "art", "old"}},
		{"category exact", SearchContext{Category: "music"}, []string{"jazz", "old"}},
		{"price range", SearchContext{PriceRange: &models.PriceRange{Min: 10, Max: 100}}, []string{"jazz", "old"}},
		{"upcoming only", SearchContext{DateRange: "next week", Category: "Music"}, []string{"jazz"}},
		{"no filters", SearchContext{}, []string{"jazz", "ai", "art", "old"}},
	}

	for _, tt := range tests {
		o := NewOrchestrator(OrchestratorDeps{
			Vectors:   &fakeVectors{hits: all},
			Explainer: templateExplainer(),
		}, DefaultSearchConfig(), zerolog.Nop())

		tt.sc.Query = "events"
		resp := o.Search(context.Background(), tt.sc, events)

		var got []string
		for _, r := range resp.Results {
			got = append(got, r.Event.ID)
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestSearch_ExplicitFilterBeatsIntent(t *testing.T) {
	events := scenarioEvents()
	o := NewOrchestrator(OrchestratorDeps{
		Vectors:   &fakeVectors{hits: hitsFor("jazz", "ai", "art")},
		Explainer: templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "shows in austin", Location: "San Francisco", Category: "Technology"}, events)
	if len(resp.Results) != 1 || resp.Results[0].Event.ID != "ai" {
		t.Errorf("expected explicit filters to win, got %+v", resp.Results)
	}
}

func TestSearch_SkipsUnknownCandidates(t *testing.T) {
	o := NewOrchestrator(OrchestratorDeps{
		Vectors:   &fakeVectors{hits: hitsFor("ghost", "jazz")},
		Explainer: templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "anything"}, scenarioEvents())
	if len(resp.Results) != 1 || resp.Results[0].Event.ID != "jazz" {
		t.Errorf("expected only catalog events, got %+v", resp.Results)
	}

	resp = o.Search(context.Background(), SearchContext{Query: "anything"}, nil)
	if len(resp.Results) != 0 || resp.TotalFound != 0 || resp.Mode != ModeEmpty {
		t.Errorf("expected empty response without candidates, got %+v", resp)
	}
}

func TestSearch_Personalization(t *testing.T) {
	events := []models.Event{
		{ID: "a", Category: "Music", Price: 500},
		{ID: "b", Category: "Arts", Price: 40, Location: "Austin"},
	}
	profile := models.NewPreferenceProfile("u1")
	profile.Categories["Arts"] = 10
	profile.AveragePricePreference = 40

	o := NewOrchestrator(OrchestratorDeps{
		Vectors:     &fakeVectors{hits: []search.Hit{{EntityID: "a", Score: 0.5}, {EntityID: "b", Score: 0.45}}},
		Preferences: fakePreferences{profile: profile},
		Explainer:   templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())

	anonymous := o.Search(context.Background(), SearchContext{Query: "weekend plans"}, events)
	if anonymous.Results[0].Event.ID != "a" {
		t.Errorf("expected similarity order without a user, got %+v", anonymous.Results)
	}

	resp := o.Search(context.Background(), SearchContext{Query: "weekend plans", UserID: "u1"}, events)
	if resp.Results[0].Event.ID != "b" {
		t.Fatalf("expected personalization to promote b, got %+v", resp.Results)
	}
	// 0.7*0.45 + 0.3*(0.5 + 0.3)
	if got := resp.Results[0].FinalScore; got < 0.5549 || got > 0.5551 {
		t.Errorf("expected final score 0.555, got %f", got)
	}
	if got := resp.Results[0].PersonalizationScore; got < 0 || got > 1 {
		t.Errorf("personalization score out of range: %f", got)
	}
}

func TestSearch_TruncatesToMaxResults(t *testing.T) {
	var events []models.Event
	var ids []string
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("e%02d", i)
		events = append(events, models.Event{ID: id})
		ids = append(ids, id)
	}

	o := NewOrchestrator(OrchestratorDeps{
		Vectors:   &fakeVectors{hits: hitsFor(ids...)},
		Explainer: templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "anything"}, events)
	if len(resp.Results) != 10 {
		t.Errorf("expected 10 results, got %d", len(resp.Results))
	}
	if resp.TotalFound != 15 {
		t.Errorf("expected total_found 15, got %d", resp.TotalFound)
	}
	if resp.Explanation != "Found 15 events matching 'anything'" {
		t.Errorf("unexpected explanation %q", resp.Explanation)
	}
}

func TestSearch_KeywordFallback(t *testing.T) {
	o := NewOrchestrator(OrchestratorDeps{
		Vectors:   &fakeVectors{},
		Keywords:  &fakeKeywords{hits: []search.Hit{{EntityID: "art", Score: 1}}},
		Explainer: templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "walk"}, scenarioEvents())
	if resp.Mode != ModeKeyword || len(resp.Results) != 1 {
		t.Fatalf("expected keyword results, got %+v", resp)
	}
	if !strings.Contains(resp.Explanation, "keyword search") {
		t.Errorf("expected the explanation to mention keyword search, got %q", resp.Explanation)
	}

	broken := NewOrchestrator(OrchestratorDeps{
		Vectors:   &fakeVectors{},
		Keywords:  &fakeKeywords{err: errors.New("index closed")},
		Explainer: templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())
	if resp := broken.Search(context.Background(), SearchContext{Query: "walk"}, scenarioEvents()); len(resp.Results) != 0 {
		t.Errorf("expected empty results, got %+v", resp.Results)
	}
}

func TestSearch_RecoversPanics(t *testing.T) {
	o := NewOrchestrator(OrchestratorDeps{
		Vectors:   &fakeVectors{panic: true},
		Explainer: templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "jazz"}, scenarioEvents())
	if resp.Explanation != UnavailableMessage {
		t.Errorf("expected unavailable message, got %q", resp.Explanation)
	}
	if resp.Results == nil || len(resp.Results) != 0 || resp.TotalFound != 0 {
		t.Errorf("expected empty results, got %+v", resp)
	}
	if resp.Mode != ModeError || resp.Query != "jazz" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	vectors := &fakeVectors{hits: hitsFor("jazz")}
	o := NewOrchestrator(OrchestratorDeps{Vectors: vectors, Explainer: templateExplainer()}, DefaultSearchConfig(), zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "   "}, scenarioEvents())
	if len(resp.Results) != 0 || resp.Mode != ModeEmpty {
		t.Errorf("expected empty response, got %+v", resp)
	}
	if vectors.calls != 0 {
		t.Error("expected no vector search for an empty query")
	}
}

func TestSearch_RecordsBehaviorAndHistory(t *testing.T) {
	queue := &fakeQueue{}
	history := storage.NewMemoryStorage()

	o := NewOrchestrator(OrchestratorDeps{
		Vectors:   &fakeVectors{hits: hitsFor("jazz")},
		Queue:     queue,
		History:   history,
		Explainer: templateExplainer(),
	}, DefaultSearchConfig(), zerolog.Nop())

	resp := o.Search(context.Background(), SearchContext{Query: "jazz", UserID: "u1", SessionID: "s1"}, scenarioEvents())
	o.Search(context.Background(), SearchContext{Query: "jazz"}, scenarioEvents())

	if len(queue.events) != 1 {
		t.Fatalf("expected one behavior event for the signed-in search, got %d", len(queue.events))
	}
	ev := queue.events[0]
	if ev.ActionType != models.ActionSearch || ev.Query != "jazz" || ev.SessionID != "s1" {
		t.Errorf("unexpected behavior event %+v", ev)
	}
	if ev.Context["search_id"] != resp.SearchID {
		t.Errorf("expected search id in context, got %v", ev.Context)
	}

	records := history.Searches()
	if len(records) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(records))
	}
	if records[0].QueryHash != storage.HashQuery("jazz") || records[0].ResultsCount != 1 {
		t.Errorf("unexpected history record %+v", records[0])
	}
	if records[0].UserHash == "" || records[1].UserHash != "" {
		t.Errorf("expected user hash only for the signed-in search, got %+v", records)
	}
}
