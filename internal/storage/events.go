package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/khanglvm/event-hub/internal/models"
)

const eventColumns = `id, name, description, category, location, price, available_tickets,
	total_tickets, tags, average_rating, date, created_at`

// UpsertEvent inserts or replaces a catalog event.
func (s *SQLiteStorage) UpsertEvent(ctx context.Context, ev models.Event) error {
	if !s.enabled || s.db == nil {
		return ErrDisabled
	}
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO events (`+eventColumns+`)
		VALUES (:id, :name, :description, :category, :location, :price, :available_tickets,
			:total_tickets, :tags, :average_rating, :date, :created_at)
	`, newEventRow(ev))
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", ev.ID, err)
	}
	return nil
}

// GetEvent returns the event or nil when it does not exist.
func (s *SQLiteStorage) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if !s.enabled || s.db == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var row eventRow
	err := s.db.GetContext(ctx, &row, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}

	ev := row.toModel()
	return &ev, nil
}

// UpcomingEvents returns up to limit events of a category dated after the given time.
func (s *SQLiteStorage) UpcomingEvents(ctx context.Context, category string, after time.Time, limit int) ([]models.Event, error) {
	return s.selectEvents(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE category = ? COLLATE NOCASE AND date > ?
		ORDER BY date ASC, id ASC
		LIMIT ?
	`, category, toUnix(after), limit)
}

// ListEvents returns the whole catalog ordered by id.
func (s *SQLiteStorage) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.selectEvents(ctx, "SELECT "+eventColumns+" FROM events ORDER BY id")
}

func (s *SQLiteStorage) selectEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	if !s.enabled || s.db == nil {
		return []models.Event{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toModel())
	}
	return events, nil
}
