/*
Package search implements retrieval over indexed events.

VectorIndex holds one embedding per event and answers cosine-similarity
queries by linear scan. KeywordIndex is a BM25 index over the same text,
used as a fallback when vector search finds nothing.
*/
package search

import (
	"strings"

	"github.com/khanglvm/event-hub/internal/models"
)

// Hit is a single search result with relevance score.
type Hit struct {
	EntityID string                   `json:"entity_id"`
	Score    float64                  `json:"score"`
	Metadata models.EmbeddingMetadata `json:"metadata"`
}

// DefaultTextFields are the event fields concatenated into the indexing blob.
var DefaultTextFields = []string{"name", "description", "category", "location", "tags"}

// EventText builds the indexing blob of an event from the given fields,
// skipping empty ones.
func EventText(ev models.Event, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(ev.TextField(f)); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
