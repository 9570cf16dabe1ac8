/*
Package storage persists the behavior log, the event catalog, search history
and embedding snapshots.

The SQLite implementation lives at ~/.event-hub/event-hub.db and uses
modernc.org/sqlite (a pure Go, CGo-free implementation) through sqlx. If the
database cannot be opened the storage disables itself: reads return empty
results and writes report ErrDisabled, so callers degrade instead of failing.

The behavior log is append-only. Nothing in this package updates or deletes
a behavior row.
*/
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/khanglvm/event-hub/internal/models"
)

// ErrDisabled is returned by writes when the backing store failed to initialize.
var ErrDisabled = errors.New("storage disabled")

// Storage defines the interface for persistent storage operations.
type Storage interface {
	// Init opens the backend and runs migrations.
	Init(ctx context.Context) error

	// AppendBehavior appends one behavior event to the log.
	AppendBehavior(ctx context.Context, ev models.BehaviorEvent) error

	// BehaviorsForUser returns a user's events with timestamp >= since, oldest first.
	BehaviorsForUser(ctx context.Context, userID string, since time.Time) ([]models.BehaviorEvent, error)

	// BehaviorsByActions returns a user's most recent events of the given actions.
	BehaviorsByActions(ctx context.Context, userID string, actions []models.ActionType, limit int) ([]models.BehaviorEvent, error)

	// BehaviorsSince returns every event with timestamp >= since, oldest first.
	BehaviorsSince(ctx context.Context, since time.Time) ([]models.BehaviorEvent, error)

	// UserIDs returns the distinct users present in the log, sorted.
	UserIDs(ctx context.Context) ([]string, error)

	// UpsertEvent inserts or replaces a catalog event.
	UpsertEvent(ctx context.Context, ev models.Event) error

	// GetEvent returns the event or nil when it does not exist.
	GetEvent(ctx context.Context, id string) (*models.Event, error)

	// UpcomingEvents returns up to limit events of a category dated after the given time.
	UpcomingEvents(ctx context.Context, category string, after time.Time, limit int) ([]models.Event, error)

	// ListEvents returns the whole catalog ordered by id.
	ListEvents(ctx context.Context) ([]models.Event, error)

	// RecordSearch records a search for analytics.
	RecordSearch(ctx context.Context, rec SearchRecord) error

	// Stats reports row counts.
	Stats(ctx context.Context) (Stats, error)

	// Cleanup removes search history older than retention.
	Cleanup(ctx context.Context, retention time.Duration) error

	// Close releases the backend.
	Close() error
}

// HashQuery creates a SHA256 hash of a query string for privacy.
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:])
}

// toUnix stores zero times as 0 so they survive the round trip.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
