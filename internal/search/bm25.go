package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"github.com/khanglvm/event-hub/internal/models"
)

var hitFields = []string{"category", "location", "price", "rating"}

// Search performs BM25 keyword search. Scores are min-max normalized to [0,1].
func (k *KeywordIndex) Search(queryText string, limit int) ([]Hit, error) {
	if strings.TrimSpace(queryText) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(k.buildMatchQuery(queryText), limit, 0, false)
	searchRequest.Fields = hitFields

	results, err := k.bleveIndex.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return normalizeScores(convertBleveResults(results)), nil
}

// convertBleveResults converts Bleve search results to hits.
func convertBleveResults(results *bleve.SearchResult) []Hit {
	hits := make([]Hit, 0, len(results.Hits))

	for _, h := range results.Hits {
		category, _ := h.Fields["category"].(string)
		location, _ := h.Fields["location"].(string)
		price, _ := h.Fields["price"].(float64)
		rating, _ := h.Fields["rating"].(float64)

		hits = append(hits, Hit{
			EntityID: h.ID,
			Score:    h.Score,
			Metadata: models.EmbeddingMetadata{
				Category: category,
				Price:    price,
				Location: location,
				Rating:   rating,
			},
		})
	}

	return hits
}
