/*
Package config handles loading and saving event-hub configuration.

Configuration is layered: built-in defaults, then an optional YAML file,
then EVENT_HUB_* environment variables. Nested keys use a double
underscore in environment variables:

	EVENT_HUB_SEARCH__MIN_SIMILARITY=0.25
	EVENT_HUB_STORAGE__BACKEND=memory

Schema (YAML):

	data_dir: ~/.event-hub
	logging:   {level: info, format: console}
	storage:   {backend: sqlite, path: "", history_retention: 720h}
	embedding: {dimension: 384, provider_url: "", cache_ttl: 24h}
	index:     {text_fields: [name, description, category, location, tags]}
	behavior:  {preference_window_days: 30, similarity_threshold: 0.3}
	search:    {candidate_limit: 20, min_similarity: 0.2, max_results: 10, intent_filters: true}
	recommend: {default_limit: 10, normalize_scores: true}
	explain:   {provider: template}
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the root configuration structure.
type Config struct {
	// DataDir holds the database, snapshots and exports.
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	Logging   LoggingConfig   `koanf:"logging" yaml:"logging"`
	Storage   StorageConfig   `koanf:"storage" yaml:"storage"`
	Embedding EmbeddingConfig `koanf:"embedding" yaml:"embedding"`
	Index     IndexConfig     `koanf:"index" yaml:"index"`
	Behavior  BehaviorConfig  `koanf:"behavior" yaml:"behavior"`
	Search    SearchConfig    `koanf:"search" yaml:"search"`
	Recommend RecommendConfig `koanf:"recommend" yaml:"recommend"`
	Explain   ExplainConfig   `koanf:"explain" yaml:"explain"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller" yaml:"caller"`
}

// StorageConfig selects where the behavior log and event catalog live.
type StorageConfig struct {
	// Backend is one of sqlite, memory or mongo.
	Backend string `koanf:"backend" yaml:"backend" validate:"oneof=sqlite memory mongo"`

	// Path is the SQLite file. Empty means <data_dir>/event-hub.db.
	Path string `koanf:"path" yaml:"path"`

	MongoURI      string `koanf:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database" yaml:"mongo_database"`

	// HistoryRetention bounds search history. Behavior events are never pruned.
	HistoryRetention time.Duration `koanf:"history_retention" yaml:"history_retention" validate:"gte=0"`
}

// EmbeddingConfig configures the text embedder and its caches.
type EmbeddingConfig struct {
	Dimension int `koanf:"dimension" yaml:"dimension" validate:"gt=0"`

	// ProviderURL is the base URL of an OpenAI-compatible embeddings API.
	// Empty disables the provider and the lexical embedding becomes primary.
	ProviderURL string        `koanf:"provider_url" yaml:"provider_url" validate:"omitempty,url"`
	APIKey      string        `koanf:"api_key" yaml:"api_key"`
	Model       string        `koanf:"model" yaml:"model"`
	Timeout     time.Duration `koanf:"timeout" yaml:"timeout" validate:"gt=0"`

	// RateLimit is provider requests per second, 0 for unlimited.
	RateLimit float64 `koanf:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" yaml:"rate_burst" validate:"gte=0"`

	// BreakerFailures is the consecutive failure count that opens the breaker.
	BreakerFailures uint32        `koanf:"breaker_failures" yaml:"breaker_failures" validate:"gt=0"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" yaml:"breaker_cooldown" validate:"gt=0"`

	CacheMaxEntries int64         `koanf:"cache_max_entries" yaml:"cache_max_entries" validate:"gt=0"`
	CacheTTL        time.Duration `koanf:"cache_ttl" yaml:"cache_ttl" validate:"gte=0"`

	// RedisAddr enables the shared cache tier when set.
	RedisAddr   string `koanf:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `koanf:"redis_prefix" yaml:"redis_prefix"`

	BatchWorkers int `koanf:"batch_workers" yaml:"batch_workers" validate:"gt=0"`
}

// IndexConfig configures how events are turned into index text.
type IndexConfig struct {
	TextFields []string `koanf:"text_fields" yaml:"text_fields" validate:"min=1,dive,oneof=name description category location tags"`

	// SnapshotBackend persists embeddings across runs: badger, sqlite or none.
	SnapshotBackend string `koanf:"snapshot_backend" yaml:"snapshot_backend" validate:"oneof=badger sqlite none"`
	SnapshotPath    string `koanf:"snapshot_path" yaml:"snapshot_path"`

	// KeywordFallback enables BM25 search when vector search finds nothing.
	KeywordFallback bool `koanf:"keyword_fallback" yaml:"keyword_fallback"`
}

// BehaviorConfig configures preference modeling and the async tracker.
type BehaviorConfig struct {
	PreferenceWindowDays int           `koanf:"preference_window_days" yaml:"preference_window_days" validate:"gt=0"`
	SimilarityThreshold  float64       `koanf:"similarity_threshold" yaml:"similarity_threshold" validate:"gte=0,lte=1"`
	SimilarUserWorkers   int           `koanf:"similar_user_workers" yaml:"similar_user_workers" validate:"gt=0"`
	QueueSize            int           `koanf:"queue_size" yaml:"queue_size" validate:"gt=0"`
	BatchSize            int           `koanf:"batch_size" yaml:"batch_size" validate:"gt=0"`
	FlushInterval        time.Duration `koanf:"flush_interval" yaml:"flush_interval" validate:"gt=0"`
}

// SearchConfig configures the search pipeline.
type SearchConfig struct {
	CandidateLimit        int           `koanf:"candidate_limit" yaml:"candidate_limit" validate:"gt=0"`
	MinSimilarity         float64       `koanf:"min_similarity" yaml:"min_similarity" validate:"gte=-1,lte=1"`
	MaxResults            int           `koanf:"max_results" yaml:"max_results" validate:"gt=0"`
	SimilarityWeight      float64       `koanf:"similarity_weight" yaml:"similarity_weight" validate:"gte=0,lte=1"`
	PersonalizationWeight float64       `koanf:"personalization_weight" yaml:"personalization_weight" validate:"gte=0,lte=1"`
	Timeout               time.Duration `koanf:"timeout" yaml:"timeout" validate:"gt=0"`

	// IntentFilters applies filters parsed from the query text when the
	// caller did not set the corresponding filter explicitly.
	IntentFilters bool `koanf:"intent_filters" yaml:"intent_filters"`
}

// RecommendConfig configures the recommendation fuser.
type RecommendConfig struct {
	DefaultLimit      int           `koanf:"default_limit" yaml:"default_limit" validate:"gt=0"`
	NormalizeScores   bool          `koanf:"normalize_scores" yaml:"normalize_scores"`
	TrendingWindow    time.Duration `koanf:"trending_window" yaml:"trending_window" validate:"gt=0"`
	SimilarUsers      int           `koanf:"similar_users" yaml:"similar_users" validate:"gt=0"`
	TopCategories     int           `koanf:"top_categories" yaml:"top_categories" validate:"gt=0"`
	EventsPerCategory int           `koanf:"events_per_category" yaml:"events_per_category" validate:"gt=0"`
}

// ExplainConfig selects the explanation generator.
type ExplainConfig struct {
	// Provider is template or vertex.
	Provider string        `koanf:"provider" yaml:"provider" validate:"oneof=template vertex"`
	Project  string        `koanf:"project" yaml:"project"`
	Location string        `koanf:"location" yaml:"location"`
	Model    string        `koanf:"model" yaml:"model"`
	Timeout  time.Duration `koanf:"timeout" yaml:"timeout" validate:"gt=0"`
}

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		dataDir = ".event-hub"
	}

	return &Config{
		DataDir: dataDir,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Backend:          "sqlite",
			MongoDatabase:    "event_hub",
			HistoryRetention: 30 * 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			Dimension:       384,
			Model:           "text-embedding-3-small",
			Timeout:         5 * time.Second,
			RateLimit:       10,
			RateBurst:       5,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
			CacheMaxEntries: 10000,
			CacheTTL:        24 * time.Hour,
			RedisPrefix:     "event-hub:embedding:",
			BatchWorkers:    4,
		},
		Index: IndexConfig{
			TextFields:      []string{"name", "description", "category", "location", "tags"},
			SnapshotBackend: "sqlite",
			KeywordFallback: true,
		},
		Behavior: BehaviorConfig{
			PreferenceWindowDays: 30,
			SimilarityThreshold:  0.3,
			SimilarUserWorkers:   4,
			QueueSize:            1000,
			BatchSize:            10,
			FlushInterval:        50 * time.Millisecond,
		},
		Search: SearchConfig{
			CandidateLimit:        20,
			MinSimilarity:         0.2,
			MaxResults:            10,
			SimilarityWeight:      0.7,
			PersonalizationWeight: 0.3,
			Timeout:               10 * time.Second,
			IntentFilters:         true,
		},
		Recommend: RecommendConfig{
			DefaultLimit:      10,
			NormalizeScores:   true,
			TrendingWindow:    7 * 24 * time.Hour,
			SimilarUsers:      5,
			TopCategories:     3,
			EventsPerCategory: 20,
		},
		Explain: ExplainConfig{
			Provider: "template",
			Location: "us-central1",
			Model:    "gemini-1.5-flash",
			Timeout:  5 * time.Second,
		},
	}
}

// GetDefaultDataDir returns ~/.event-hub
func GetDefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".event-hub"), nil
}

// GetDefaultConfigPath returns ~/.event-hub/config.yaml
func GetDefaultConfigPath() (string, error) {
	dir, err := GetDefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DatabasePath resolves the SQLite path.
func (c *Config) DatabasePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "event-hub.db")
}

// SnapshotPath resolves the badger snapshot directory.
func (c *Config) SnapshotPath() string {
	if c.Index.SnapshotPath != "" {
		return c.Index.SnapshotPath
	}
	return filepath.Join(c.DataDir, "snapshots")
}
