package search

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/models"
)

func TestNewKeywordIndex(t *testing.T) {
	indexer, err := NewKeywordIndex(zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}
	defer indexer.Close()

	count, err := indexer.Count()
	if err != nil {
		t.Fatalf("failed to get count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty index, got %d", count)
	}
}

func TestKeywordIndex_IndexEvents(t *testing.T) {
	indexer, err := NewKeywordIndex(zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}
	defer indexer.Close()

	events := append(scenarioEvents(), models.Event{Name: "no id"})
	if err := indexer.IndexEvents(events); err != nil {
		t.Fatalf("failed to index events: %v", err)
	}

	count, err := indexer.Count()
	if err != nil {
		t.Fatalf("failed to get count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 indexed events, got %d", count)
	}
}

func TestKeywordIndex_Search(t *testing.T) {
	indexer, err := NewKeywordIndex(zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}
	defer indexer.Close()

	if err := indexer.IndexEvents(scenarioEvents()); err != nil {
		t.Fatalf("failed to index events: %v", err)
	}

	hits, err := indexer.Search("gallery exhibition", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].EntityID != "art" {
		t.Errorf("expected art walk first, got %s", hits[0].EntityID)
	}
	if hits[0].Score != 1.0 {
		t.Errorf("expected top hit normalized to 1.0, got %f", hits[0].Score)
	}
	if hits[0].Metadata.Category != "Arts" {
		t.Errorf("expected stored category, got %+v", hits[0].Metadata)
	}
}

func TestKeywordIndex_SearchMetadata(t *testing.T) {
	indexer, err := NewKeywordIndex(zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}
	defer indexer.Close()

	if err := indexer.IndexEvents(scenarioEvents()); err != nil {
		t.Fatalf("failed to index events: %v", err)
	}

	hits, err := indexer.Search("summit", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].EntityID != "ai" {
		t.Fatalf("expected only the summit, got %+v", hits)
	}
	if hits[0].Metadata.Price != 300 || hits[0].Metadata.Location != "San Francisco" {
		t.Errorf("unexpected metadata: %+v", hits[0].Metadata)
	}
}

func TestKeywordIndex_EmptyQuery(t *testing.T) {
	indexer, err := NewKeywordIndex(zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}
	defer indexer.Close()

	hits, err := indexer.Search("   ", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestKeywordIndex_Remove(t *testing.T) {
	indexer, err := NewKeywordIndex(zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}
	defer indexer.Close()

	if err := indexer.IndexEvents(scenarioEvents()); err != nil {
		t.Fatalf("failed to index events: %v", err)
	}
	if err := indexer.Remove("jazz"); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}

	hits, err := indexer.Search("jazz", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected removed event to be gone, got %+v", hits)
	}
}
