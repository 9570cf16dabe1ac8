package config

import (
	"strings"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	if err := NewConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "unknown text field",
			mutate: func(c *Config) { c.Index.TextFields = []string{"name", "organizer"} },
			want:   "index.text_fields",
		},
		{
			name:   "empty text fields",
			mutate: func(c *Config) { c.Index.TextFields = nil },
			want:   "index.text_fields",
		},
		{
			name:   "zero dimension",
			mutate: func(c *Config) { c.Embedding.Dimension = 0 },
			want:   "embedding.dimension",
		},
		{
			name:   "bad provider url",
			mutate: func(c *Config) { c.Embedding.ProviderURL = "not a url" },
			want:   "embedding.provider_url",
		},
		{
			name:   "similarity threshold above one",
			mutate: func(c *Config) { c.Behavior.SimilarityThreshold = 1.5 },
			want:   "behavior.similarity_threshold",
		},
		{
			name:   "mongo without uri",
			mutate: func(c *Config) { c.Storage.Backend = "mongo"; c.Index.SnapshotBackend = "badger" },
			want:   "storage.mongo_uri",
		},
		{
			name:   "vertex without project",
			mutate: func(c *Config) { c.Explain.Provider = "vertex" },
			want:   "explain.project",
		},
		{
			name:   "sqlite snapshots without sqlite storage",
			mutate: func(c *Config) { c.Storage.Backend = "memory" },
			want:   "index.snapshot_backend",
		},
		{
			name: "zero weights",
			mutate: func(c *Config) {
				c.Search.SimilarityWeight = 0
				c.Search.PersonalizationWeight = 0
			},
			want: "weights",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestConfigPaths(t *testing.T) {
	cfg := NewConfig()
	cfg.DataDir = "/tmp/eh"

	if got := cfg.DatabasePath(); got != "/tmp/eh/event-hub.db" {
		t.Errorf("unexpected database path: %s", got)
	}
	if got := cfg.SnapshotPath(); got != "/tmp/eh/snapshots" {
		t.Errorf("unexpected snapshot path: %s", got)
	}

	cfg.Storage.Path = "/var/lib/eh.db"
	if got := cfg.DatabasePath(); got != "/var/lib/eh.db" {
		t.Errorf("explicit path should win, got %s", got)
	}
}
