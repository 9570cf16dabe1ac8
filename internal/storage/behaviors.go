package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/khanglvm/event-hub/internal/models"
)

const behaviorColumns = "id, user_id, action_type, event_id, query, timestamp, session_id, context"

// AppendBehavior appends one behavior event to the log.
func (s *SQLiteStorage) AppendBehavior(ctx context.Context, ev models.BehaviorEvent) error {
	if !s.enabled || s.db == nil {
		return ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO user_behaviors (user_id, action_type, event_id, query, timestamp, session_id, context)
		VALUES (:user_id, :action_type, :event_id, :query, :timestamp, :session_id, :context)
	`, newBehaviorRow(ev))
	if err != nil {
		return fmt.Errorf("failed to append behavior: %w", err)
	}
	return nil
}

// BehaviorsForUser returns a user's events with timestamp >= since, oldest first.
func (s *SQLiteStorage) BehaviorsForUser(ctx context.Context, userID string, since time.Time) ([]models.BehaviorEvent, error) {
	return s.selectBehaviors(ctx, `
		SELECT `+behaviorColumns+` FROM user_behaviors
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC, id ASC
	`, userID, toUnix(since))
}

// BehaviorsByActions returns a user's most recent events of the given actions.
func (s *SQLiteStorage) BehaviorsByActions(ctx context.Context, userID string, actions []models.ActionType, limit int) ([]models.BehaviorEvent, error) {
	if len(actions) == 0 || limit <= 0 {
		return []models.BehaviorEvent{}, nil
	}

	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}

	query, args, err := sqlx.In(`
		SELECT `+behaviorColumns+` FROM user_behaviors
		WHERE user_id = ? AND action_type IN (?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, userID, names, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build action query: %w", err)
	}

	return s.selectBehaviors(ctx, query, args...)
}

// BehaviorsSince returns every event with timestamp >= since, oldest first.
func (s *SQLiteStorage) BehaviorsSince(ctx context.Context, since time.Time) ([]models.BehaviorEvent, error) {
	return s.selectBehaviors(ctx, `
		SELECT `+behaviorColumns+` FROM user_behaviors
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, id ASC
	`, toUnix(since))
}

// UserIDs returns the distinct users present in the log, sorted.
func (s *SQLiteStorage) UserIDs(ctx context.Context) ([]string, error) {
	if !s.enabled || s.db == nil {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, "SELECT DISTINCT user_id FROM user_behaviors ORDER BY user_id"); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStorage) selectBehaviors(ctx context.Context, query string, args ...any) ([]models.BehaviorEvent, error) {
	if !s.enabled || s.db == nil {
		return []models.BehaviorEvent{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []behaviorRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query behaviors: %w", err)
	}

	events := make([]models.BehaviorEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toModel(s.log))
	}
	return events, nil
}
