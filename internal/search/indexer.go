package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/models"
)

// KeywordIndex is the BM25 keyword index over event text.
type KeywordIndex struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	log        zerolog.Logger
}

// eventDocument is the bleve document of an event.
type eventDocument struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
	Tags        string  `json:"tags"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
}

// NewKeywordIndex creates an in-memory keyword index.
func NewKeywordIndex(log zerolog.Logger) (*KeywordIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &KeywordIndex{
		bleveIndex: index,
		log:        log.With().Str("component", "keyword_index").Logger(),
	}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	eventMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"name", "description", "category", "location", "tags"} {
		eventMapping.AddFieldMappingsAt(field, bleve.NewTextFieldMapping())
	}

	// stored for hit metadata, not searchable
	for _, field := range []string{"price", "rating"} {
		numeric := bleve.NewNumericFieldMapping()
		numeric.Index = false
		numeric.IncludeInAll = false
		eventMapping.AddFieldMappingsAt(field, numeric)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = eventMapping

	return indexMapping
}

func toDocument(ev models.Event) eventDocument {
	return eventDocument{
		Name:        ev.Name,
		Description: ev.Description,
		Category:    ev.Category,
		Location:    ev.Location,
		Tags:        ev.TextField("tags"),
		Price:       ev.Price,
		Rating:      ev.AverageRating,
	}
}

// IndexEvents indexes (or re-indexes) events in one batch.
func (k *KeywordIndex) IndexEvents(events []models.Event) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	batch := k.bleveIndex.NewBatch()

	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		if err := batch.Index(ev.ID, toDocument(ev)); err != nil {
			k.log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to index event")
		}
	}

	if err := k.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index events: %w", err)
	}

	return nil
}

// Remove deletes an event from the index.
func (k *KeywordIndex) Remove(eventID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.bleveIndex.Delete(eventID); err != nil {
		return fmt.Errorf("failed to delete %s: %w", eventID, err)
	}
	return nil
}

// Count returns the total number of indexed events.
func (k *KeywordIndex) Count() (uint64, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	docCount, err := k.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}

	return docCount, nil
}

// Close closes the index and releases resources.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.bleveIndex != nil {
		return k.bleveIndex.Close()
	}

	return nil
}

// buildMatchQuery creates a match query for BM25 search.
func (k *KeywordIndex) buildMatchQuery(searchText string) query.Query {
	return bleve.NewMatchQuery(searchText)
}
