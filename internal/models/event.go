/*
Package models holds the records shared by the personalization engine.

Event records come from the surrounding ticketing system; behavior events,
embeddings, preference profiles, intents and recommendation items are
produced by the engine itself.
*/
package models

import (
	"strings"
	"time"
)

// Event is an event catalog record supplied by the ticketing system.
type Event struct {
	// ID is the opaque event identifier.
	ID string `json:"id" yaml:"id" bson:"id"`

	// Name is the display name of the event.
	Name string `json:"name" yaml:"name" bson:"name"`

	// Description is the free-text description.
	Description string `json:"description" yaml:"description" bson:"description"`

	// Category is the catalog category (e.g. "Music").
	Category string `json:"category" yaml:"category" bson:"category"`

	// Location is the venue or city.
	Location string `json:"location" yaml:"location" bson:"location"`

	// Price is the base ticket price.
	Price float64 `json:"price" yaml:"price" bson:"price"`

	// AvailableTickets is the number of unsold tickets.
	AvailableTickets int `json:"available_tickets" yaml:"available_tickets" bson:"available_tickets"`

	// TotalTickets is the capacity of the event.
	TotalTickets int `json:"total_tickets" yaml:"total_tickets" bson:"total_tickets"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty" yaml:"tags" bson:"tags"`

	// AverageRating is the mean review rating (0-5).
	AverageRating float64 `json:"average_rating" yaml:"average_rating" bson:"average_rating"`

	// Date is when the event takes place.
	Date time.Time `json:"date" yaml:"date" bson:"date"`

	// CreatedAt is when the event was listed.
	CreatedAt time.Time `json:"created_at" yaml:"created_at" bson:"created_at"`
}

// AvailabilityRatio returns available/total tickets, 0 when capacity is unknown.
func (e Event) AvailabilityRatio() float64 {
	if e.TotalTickets <= 0 {
		return 0
	}
	return float64(e.AvailableTickets) / float64(e.TotalTickets)
}

// IsUpcoming reports whether the event starts at or after now.
func (e Event) IsUpcoming(now time.Time) bool {
	return !e.Date.Before(now)
}

// Metadata returns the structured metadata stored next to the event embedding.
func (e Event) Metadata() EmbeddingMetadata {
	return EmbeddingMetadata{
		Category: e.Category,
		Price:    e.Price,
		Location: e.Location,
		Rating:   e.AverageRating,
	}
}

// TextField returns the named text field used to build the indexing blob.
// Unknown field names return "".
func (e Event) TextField(name string) string {
	switch strings.ToLower(name) {
	case "name":
		return e.Name
	case "description":
		return e.Description
	case "category":
		return e.Category
	case "location":
		return e.Location
	case "tags":
		return strings.Join(e.Tags, " ")
	default:
		return ""
	}
}
