package storage

import (
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/models"
)

// SearchRecord represents a search query for analytics.
type SearchRecord struct {
	// SearchID is a unique identifier for this search (UUID).
	SearchID string `json:"search_id" bson:"search_id"`

	// QueryHash is the SHA256 hash of the search query for privacy.
	QueryHash string `json:"query_hash" bson:"query_hash"`

	// UserHash is the SHA256 hash of the user id, empty for anonymous searches.
	UserHash string `json:"user_hash,omitempty" bson:"user_hash,omitempty"`

	// Timestamp is when the search was performed.
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	// ResultsCount is the number of results returned.
	ResultsCount int `json:"results_count" bson:"results_count"`

	// Mode is the retrieval mode that produced the results (vector or keyword).
	Mode string `json:"mode" bson:"mode"`
}

// Stats are row counts reported by `learning status`.
type Stats struct {
	Behaviors  int `json:"behaviors"`
	Users      int `json:"users"`
	Events     int `json:"events"`
	Searches   int `json:"searches"`
	Embeddings int `json:"embeddings"`
}

// behaviorRow is the user_behaviors table layout.
type behaviorRow struct {
	ID         int64          `db:"id"`
	UserID     string         `db:"user_id"`
	ActionType string         `db:"action_type"`
	EventID    sql.NullString `db:"event_id"`
	Query      sql.NullString `db:"query"`
	Timestamp  int64          `db:"timestamp"`
	SessionID  sql.NullString `db:"session_id"`
	Context    sql.NullString `db:"context"`
}

func newBehaviorRow(ev models.BehaviorEvent) behaviorRow {
	row := behaviorRow{
		UserID:     ev.UserID,
		ActionType: string(ev.ActionType),
		EventID:    nullString(ev.EventID),
		Query:      nullString(ev.Query),
		Timestamp:  toUnix(ev.Timestamp),
		SessionID:  nullString(ev.SessionID),
	}
	if len(ev.Context) > 0 {
		if data, err := json.Marshal(ev.Context); err == nil {
			row.Context = nullString(string(data))
		}
	}
	return row
}

func (r behaviorRow) toModel(log zerolog.Logger) models.BehaviorEvent {
	ev := models.BehaviorEvent{
		UserID:     r.UserID,
		ActionType: models.ActionType(r.ActionType),
		EventID:    r.EventID.String,
		Query:      r.Query.String,
		Timestamp:  fromUnix(r.Timestamp),
		SessionID:  r.SessionID.String,
	}
	if r.Context.Valid && r.Context.String != "" {
		if err := json.Unmarshal([]byte(r.Context.String), &ev.Context); err != nil {
			log.Warn().Err(err).Int64("row", r.ID).Msg("dropping unreadable behavior context")
		}
	}
	return ev
}

// eventRow is the events table layout.
type eventRow struct {
	ID               string  `db:"id"`
	Name             string  `db:"name"`
	Description      string  `db:"description"`
	Category         string  `db:"category"`
	Location         string  `db:"location"`
	Price            float64 `db:"price"`
	AvailableTickets int     `db:"available_tickets"`
	TotalTickets     int     `db:"total_tickets"`
	Tags             string  `db:"tags"`
	AverageRating    float64 `db:"average_rating"`
	Date             int64   `db:"date"`
	CreatedAt        int64   `db:"created_at"`
}

func newEventRow(ev models.Event) eventRow {
	tags := "[]"
	if len(ev.Tags) > 0 {
		if data, err := json.Marshal(ev.Tags); err == nil {
			tags = string(data)
		}
	}
	return eventRow{
		ID:               ev.ID,
		Name:             ev.Name,
		Description:      ev.Description,
		Category:         ev.Category,
		Location:         ev.Location,
		Price:            ev.Price,
		AvailableTickets: ev.AvailableTickets,
		TotalTickets:     ev.TotalTickets,
		Tags:             tags,
		AverageRating:    ev.AverageRating,
		Date:             toUnix(ev.Date),
		CreatedAt:        toUnix(ev.CreatedAt),
	}
}

func (r eventRow) toModel() models.Event {
	ev := models.Event{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		Category:         r.Category,
		Location:         r.Location,
		Price:            r.Price,
		AvailableTickets: r.AvailableTickets,
		TotalTickets:     r.TotalTickets,
		AverageRating:    r.AverageRating,
		Date:             fromUnix(r.Date),
		CreatedAt:        fromUnix(r.CreatedAt),
	}
	_ = json.Unmarshal([]byte(r.Tags), &ev.Tags)
	return ev
}

// embeddingRow is the event_embeddings table layout.
type embeddingRow struct {
	EventID    string `db:"event_id"`
	Vector     string `db:"vector"`
	SourceText string `db:"source_text"`
	Metadata   string `db:"metadata"`
	CreatedAt  int64  `db:"created_at"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
