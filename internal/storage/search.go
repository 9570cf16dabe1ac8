package storage

import (
	"context"
	"fmt"
	"time"
)

// RecordSearch records a search query for analytics. Failures are logged,
// never returned: analytics must not affect the search response.
func (s *SQLiteStorage) RecordSearch(ctx context.Context, rec SearchRecord) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (search_id, query_hash, user_hash, timestamp, results_count, mode)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.SearchID, rec.QueryHash, rec.UserHash, toUnix(rec.Timestamp), rec.ResultsCount, rec.Mode)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to record search")
	}

	return nil
}

// Stats reports row counts.
func (s *SQLiteStorage) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if !s.enabled || s.db == nil {
		return st, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Behaviors, "SELECT COUNT(*) FROM user_behaviors"},
		{&st.Users, "SELECT COUNT(DISTINCT user_id) FROM user_behaviors"},
		{&st.Events, "SELECT COUNT(*) FROM events"},
		{&st.Searches, "SELECT COUNT(*) FROM search_history"},
		{&st.Embeddings, "SELECT COUNT(*) FROM event_embeddings"},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return st, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return st, nil
}

// Cleanup removes search history older than retention. The behavior log is
// append-only and is never pruned here.
func (s *SQLiteStorage) Cleanup(ctx context.Context, retention time.Duration) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := toUnix(time.Now().Add(-retention))

	if _, err := s.db.ExecContext(ctx, "DELETE FROM search_history WHERE timestamp < ?", cutoff); err != nil {
		s.log.Warn().Err(err).Msg("failed to cleanup search_history")
	}

	// Vacuum to reclaim space
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		s.log.Warn().Err(err).Msg("failed to vacuum database")
	}

	return nil
}

// ClearSearchHistory removes every search record.
func (s *SQLiteStorage) ClearSearchHistory(ctx context.Context) error {
	if !s.enabled || s.db == nil {
		return ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM search_history"); err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	return nil
}
