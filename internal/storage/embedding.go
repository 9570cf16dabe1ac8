package storage

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/khanglvm/event-hub/internal/models"
)

// SaveEmbedding snapshots an event embedding, replacing any previous one.
func (s *SQLiteStorage) SaveEmbedding(ctx context.Context, emb models.TextEmbedding) error {
	if !s.enabled || s.db == nil {
		return ErrDisabled
	}

	vector, err := json.Marshal(emb.Vector)
	if err != nil {
		return fmt.Errorf("failed to marshal vector: %w", err)
	}
	meta, err := json.Marshal(emb.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// upsert keeps the rowid so restores preserve first-insertion order
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO event_embeddings (event_id, vector, source_text, metadata, created_at)
		VALUES (:event_id, :vector, :source_text, :metadata, :created_at)
		ON CONFLICT(event_id) DO UPDATE SET
			vector = excluded.vector,
			source_text = excluded.source_text,
			metadata = excluded.metadata,
			created_at = excluded.created_at
	`, embeddingRow{
		EventID:    emb.EntityID,
		Vector:     string(vector),
		SourceText: emb.SourceText,
		Metadata:   string(meta),
		CreatedAt:  toUnix(emb.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}
	return nil
}

// DeleteEmbedding removes a snapshotted embedding.
func (s *SQLiteStorage) DeleteEmbedding(ctx context.Context, entityID string) error {
	if !s.enabled || s.db == nil {
		return ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM event_embeddings WHERE event_id = ?", entityID); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

// LoadEmbeddings returns every snapshotted embedding in insertion order.
func (s *SQLiteStorage) LoadEmbeddings(ctx context.Context) ([]models.TextEmbedding, error) {
	if !s.enabled || s.db == nil {
		return []models.TextEmbedding{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []embeddingRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT event_id, vector, source_text, metadata, created_at
		FROM event_embeddings ORDER BY rowid
	`); err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	out := make([]models.TextEmbedding, 0, len(rows))
	for _, r := range rows {
		emb := models.TextEmbedding{
			EntityID:   r.EventID,
			SourceText: r.SourceText,
			CreatedAt:  fromUnix(r.CreatedAt),
		}
		if err := json.Unmarshal([]byte(r.Vector), &emb.Vector); err != nil {
			s.log.Warn().Err(err).Str("event_id", r.EventID).Msg("skipping unreadable embedding")
			continue
		}
		if err := json.Unmarshal([]byte(r.Metadata), &emb.Metadata); err != nil {
			s.log.Warn().Err(err).Str("event_id", r.EventID).Msg("skipping embedding with unreadable metadata")
			continue
		}
		out = append(out, emb)
	}
	return out, nil
}

// ClearEmbeddings removes every snapshotted embedding.
func (s *SQLiteStorage) ClearEmbeddings(ctx context.Context) error {
	if !s.enabled || s.db == nil {
		return ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM event_embeddings"); err != nil {
		return fmt.Errorf("failed to clear embeddings: %w", err)
	}
	return nil
}
