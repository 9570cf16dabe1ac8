package models

import "time"

// EmbeddingDimension is the default vector length D.
const EmbeddingDimension = 384

// EmbeddingMetadata is the fixed metadata stored next to an event embedding.
type EmbeddingMetadata struct {
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Location string  `json:"location"`
	Rating   float64 `json:"rating"`
}

// TextEmbedding is an indexed entity vector. It is immutable once created;
// re-indexing replaces it wholesale.
type TextEmbedding struct {
	// EntityID is the indexed entity (event) identifier.
	EntityID string `json:"entity_id"`

	// Vector has exactly the index dimension.
	Vector []float32 `json:"vector"`

	// SourceText is the blob that was embedded.
	SourceText string `json:"source_text"`

	// CreatedAt is when the embedding was generated.
	CreatedAt time.Time `json:"created_at"`

	// Metadata is the event metadata at indexing time.
	Metadata EmbeddingMetadata `json:"metadata"`
}
