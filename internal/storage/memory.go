package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/khanglvm/event-hub/internal/models"
)

// MemoryStorage is a process-local Storage used by the memory backend and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	behaviors []models.BehaviorEvent
	events    map[string]models.Event
	searches  []SearchRecord
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{events: make(map[string]models.Event)}
}

// Init is a no-op.
func (m *MemoryStorage) Init(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStorage) Close() error { return nil }

// AppendBehavior appends one behavior event to the log.
func (m *MemoryStorage) AppendBehavior(ctx context.Context, ev models.BehaviorEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors = append(m.behaviors, cloneBehavior(ev))
	return nil
}

// BehaviorsForUser returns a user's events with timestamp >= since, oldest first.
func (m *MemoryStorage) BehaviorsForUser(ctx context.Context, userID string, since time.Time) ([]models.BehaviorEvent, error) {
	return m.filterBehaviors(func(ev models.BehaviorEvent) bool {
		return ev.UserID == userID && !ev.Timestamp.Before(since)
	}), nil
}

// BehaviorsByActions returns a user's most recent events of the given actions.
func (m *MemoryStorage) BehaviorsByActions(ctx context.Context, userID string, actions []models.ActionType, limit int) ([]models.BehaviorEvent, error) {
	wanted := make(map[models.ActionType]bool, len(actions))
	for _, a := range actions {
		wanted[a] = true
	}

	out := m.filterBehaviors(func(ev models.BehaviorEvent) bool {
		return ev.UserID == userID && wanted[ev.ActionType]
	})

	// newest first, matching ORDER BY timestamp DESC, id DESC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// BehaviorsSince returns every event with timestamp >= since, oldest first.
func (m *MemoryStorage) BehaviorsSince(ctx context.Context, since time.Time) ([]models.BehaviorEvent, error) {
	return m.filterBehaviors(func(ev models.BehaviorEvent) bool {
		return !ev.Timestamp.Before(since)
	}), nil
}

// UserIDs returns the distinct users present in the log, sorted.
func (m *MemoryStorage) UserIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	ids := []string{}
	for _, ev := range m.behaviors {
		if !seen[ev.UserID] {
			seen[ev.UserID] = true
			ids = append(ids, ev.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// filterBehaviors returns matches in timestamp order, ties by append order.
func (m *MemoryStorage) filterBehaviors(keep func(models.BehaviorEvent) bool) []models.BehaviorEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.BehaviorEvent{}
	for _, ev := range m.behaviors {
		if keep(ev) {
			out = append(out, cloneBehavior(ev))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// UpsertEvent inserts or replaces a catalog event.
func (m *MemoryStorage) UpsertEvent(ctx context.Context, ev models.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Tags = append([]string(nil), ev.Tags...)
	m.events[ev.ID] = ev
	return nil
}

// GetEvent returns the event or nil when it does not exist.
func (m *MemoryStorage) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// UpcomingEvents returns up to limit events of a category dated after the given time.
func (m *MemoryStorage) UpcomingEvents(ctx context.Context, category string, after time.Time, limit int) ([]models.Event, error) {
	all, _ := m.ListEvents(ctx)

	out := []models.Event{}
	for _, ev := range all {
		if strings.EqualFold(ev.Category, category) && ev.Date.After(after) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListEvents returns the whole catalog ordered by id.
func (m *MemoryStorage) ListEvents(ctx context.Context) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecordSearch records a search for analytics.
func (m *MemoryStorage) RecordSearch(ctx context.Context, rec SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, rec)
	return nil
}

// Searches returns recorded searches.
func (m *MemoryStorage) Searches() []SearchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SearchRecord(nil), m.searches...)
}

// Stats reports row counts.
func (m *MemoryStorage) Stats(ctx context.Context) (Stats, error) {
	users, _ := m.UserIDs(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Behaviors: len(m.behaviors),
		Users:     len(users),
		Events:    len(m.events),
		Searches:  len(m.searches),
	}, nil
}

// Cleanup removes search history older than retention.
func (m *MemoryStorage) Cleanup(ctx context.Context, retention time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	kept := m.searches[:0]
	for _, rec := range m.searches {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	m.searches = kept
	return nil
}

func cloneBehavior(ev models.BehaviorEvent) models.BehaviorEvent {
	if ev.Context != nil {
		ctx := make(map[string]string, len(ev.Context))
		for k, v := range ev.Context {
			ctx[k] = v
		}
		ev.Context = ctx
	}
	return ev
}
