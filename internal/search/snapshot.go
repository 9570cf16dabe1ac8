package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/khanglvm/event-hub/internal/models"
)

// Key prefixes for BadgerDB storage
const (
	embeddingKeyPrefix = "embedding:"
	sequenceKey        = "meta:embedding_seq"
)

// snapshotRecord is the stored value; Seq preserves first-insertion order.
type snapshotRecord struct {
	Seq       uint64               `json:"seq"`
	Embedding models.TextEmbedding `json:"embedding"`
}

// BadgerSnapshot implements SnapshotStore on an embedded BadgerDB.
type BadgerSnapshot struct {
	db *badger.DB

	// serializes writers so the sequence counter never conflicts
	mu sync.Mutex
}

// OpenBadgerSnapshot opens (or creates) a snapshot directory. An empty
// path opens an in-memory store.
func OpenBadgerSnapshot(path string) (*BadgerSnapshot, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &BadgerSnapshot{db: db}, nil
}

// SaveEmbedding stores emb, keeping the sequence of an existing entry.
func (s *BadgerSnapshot) SaveEmbedding(ctx context.Context, emb models.TextEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(embeddingKeyPrefix + emb.EntityID)

		var seq uint64
		item, err := txn.Get(key)
		switch {
		case err == nil:
			var prev snapshotRecord
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &prev) }); err != nil {
				return fmt.Errorf("read previous snapshot: %w", err)
			}
			seq = prev.Seq
		case errors.Is(err, badger.ErrKeyNotFound):
			seq, err = nextSequence(txn)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("get snapshot: %w", err)
		}

		data, err := json.Marshal(snapshotRecord{Seq: seq, Embedding: emb})
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		return txn.Set(key, data)
	})
}

func nextSequence(txn *badger.Txn) (uint64, error) {
	var seq uint64

	item, err := txn.Get([]byte(sequenceKey))
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("get sequence: %w", err)
	}
	if err == nil {
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &seq) }); err != nil {
			return 0, fmt.Errorf("read sequence: %w", err)
		}
	}

	next, err := json.Marshal(seq + 1)
	if err != nil {
		return 0, err
	}
	if err := txn.Set([]byte(sequenceKey), next); err != nil {
		return 0, fmt.Errorf("set sequence: %w", err)
	}
	return seq, nil
}

// DeleteEmbedding removes an entity's snapshot.
func (s *BadgerSnapshot) DeleteEmbedding(ctx context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(embeddingKeyPrefix + entityID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		return nil
	})
}

// LoadEmbeddings returns every snapshot in first-insertion order.
func (s *BadgerSnapshot) LoadEmbeddings(ctx context.Context) ([]models.TextEmbedding, error) {
	var records []snapshotRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(embeddingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec snapshotRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode snapshot %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	out := make([]models.TextEmbedding, len(records))
	for i, rec := range records {
		out[i] = rec.Embedding
	}
	return out, nil
}

// ClearEmbeddings drops every snapshot and resets the sequence.
func (s *BadgerSnapshot) ClearEmbeddings(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropPrefix([]byte(embeddingKeyPrefix)); err != nil {
		return fmt.Errorf("drop snapshots: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(sequenceKey))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// Close closes the database.
func (s *BadgerSnapshot) Close() error {
	return s.db.Close()
}
