package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sqlx.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
	log      zerolog.Logger
}

// NewStorage creates a SQLite storage at dbPath. The file and its directory
// are created by Init.
func NewStorage(dbPath string, log zerolog.Logger) *SQLiteStorage {
	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: dbPath != "",
		log:     log.With().Str("component", "storage").Str("backend", "sqlite").Logger(),
	}
}

// Init initializes the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops (graceful degradation).
func (s *SQLiteStorage) Init(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		fail := func(err error) {
			initErr = err
			s.enabled = false
			s.log.Warn().Err(err).Str("path", s.dbPath).Msg("storage disabled")
		}

		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			fail(fmt.Errorf("failed to create db directory: %w", err))
			return
		}

		db, err := sqlx.Open("sqlite", s.dbPath)
		if err != nil {
			fail(fmt.Errorf("failed to open database: %w", err))
			return
		}
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		s.db = db

		if err := db.PingContext(ctx); err != nil {
			fail(fmt.Errorf("failed to ping database: %w", err))
			return
		}

		if err := s.runMigrations(ctx); err != nil {
			fail(fmt.Errorf("failed to run migrations: %w", err))
			return
		}
	})

	return initErr
}

// Enabled reports whether the database is usable.
func (s *SQLiteStorage) Enabled() bool {
	return s.enabled && s.db != nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// runMigrations executes database schema migrations.
func (s *SQLiteStorage) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return err
	}

	var version int
	if err := s.db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "behavior_log", stmts: migration001BehaviorLog},
		{version: 2, name: "event_catalog", stmts: migration002EventCatalog},
		{version: 3, name: "search_history", stmts: migration003SearchHistory},
		{version: 4, name: "event_embeddings", stmts: migration004EventEmbeddings},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		s.log.Info().Int("version", m.version).Str("name", m.name).Msg("running migration")

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migration001BehaviorLog = []string{
	`CREATE TABLE IF NOT EXISTS user_behaviors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		event_id TEXT,
		query TEXT,
		timestamp INTEGER NOT NULL,
		session_id TEXT,
		context TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_behaviors_user_ts ON user_behaviors(user_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_behaviors_ts ON user_behaviors(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_behaviors_event ON user_behaviors(event_id)`,
}

var migration002EventCatalog = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		available_tickets INTEGER NOT NULL DEFAULT 0,
		total_tickets INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		average_rating REAL NOT NULL DEFAULT 0,
		date INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_category_date ON events(category COLLATE NOCASE, date)`,
}

var migration003SearchHistory = []string{
	`CREATE TABLE IF NOT EXISTS search_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		search_id TEXT NOT NULL UNIQUE,
		query_hash TEXT NOT NULL,
		user_hash TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL,
		results_count INTEGER NOT NULL,
		mode TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_search_history_timestamp ON search_history(timestamp DESC)`,
}

var migration004EventEmbeddings = []string{
	`CREATE TABLE IF NOT EXISTS event_embeddings (
		event_id TEXT PRIMARY KEY,
		vector TEXT NOT NULL,
		source_text TEXT NOT NULL,
		metadata TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
}
