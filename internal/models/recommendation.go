package models

import (
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// RecommendationSource tags which signal produced a recommendation.
type RecommendationSource string

const (
	SourceContentBased  RecommendationSource = "content_based"
	SourceCollaborative RecommendationSource = "collaborative"
	SourceTrending      RecommendationSource = "trending"
)

// RecommendationItem is one ranked recommendation.
type RecommendationItem struct {
	EventID string               `json:"event_id"`
	Score   float64              `json:"score"`
	Reason  string               `json:"reason"`
	Source  RecommendationSource `json:"source"`

	// RawScore is the score before per-source normalization.
	RawScore float64 `json:"raw_score"`
}

// PriceRange is an inclusive price band. Max may be +Inf.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether price lies within the band.
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}

// Unbounded reports whether the band has no upper limit.
func (r PriceRange) Unbounded() bool {
	return math.IsInf(r.Max, 1)
}

// priceRangeJSON encodes an unbounded Max as null; JSON has no infinity.
type priceRangeJSON struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max"`
}

// MarshalJSON implements json.Marshaler.
func (r PriceRange) MarshalJSON() ([]byte, error) {
	out := priceRangeJSON{Min: r.Min}
	if !r.Unbounded() {
		out.Max = &r.Max
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. A missing or null max is +Inf.
func (r *PriceRange) UnmarshalJSON(data []byte) error {
	var in priceRangeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Min = in.Min
	r.Max = math.Inf(1)
	if in.Max != nil {
		r.Max = *in.Max
	}
	return nil
}

// SearchIntent is the structured filter bundle parsed from a query.
type SearchIntent struct {
	Type       string      `json:"type"`
	Location   string      `json:"location,omitempty"`
	Date       string      `json:"date,omitempty"`
	Category   string      `json:"category,omitempty"`
	PriceRange *PriceRange `json:"price_range,omitempty"`
	Keywords   []string    `json:"keywords"`
}

// HasFilters reports whether any structured filter was extracted.
func (i SearchIntent) HasFilters() bool {
	return i.Location != "" || i.Date != "" || i.Category != "" || i.PriceRange != nil
}

// Summary renders the intent in one line for prompts and logs.
func (i SearchIntent) Summary() string {
	var b strings.Builder
	b.WriteString("Intent: ")
	if i.Type == "" {
		b.WriteString("general")
	} else {
		b.WriteString(i.Type)
	}
	if i.Location != "" {
		b.WriteString(", Location: " + i.Location)
	}
	if i.Category != "" {
		b.WriteString(", Category: " + i.Category)
	}
	if i.Date != "" {
		b.WriteString(", Date: " + i.Date)
	}
	return b.String()
}
