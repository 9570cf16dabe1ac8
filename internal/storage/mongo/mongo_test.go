package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/storage"
)

func TestUninitializedDegrades(t *testing.T) {
	s := New("mongodb://127.0.0.1:1", "event_hub_test", zerolog.Nop())
	ctx := context.Background()

	if err := s.AppendBehavior(ctx, models.BehaviorEvent{UserID: "u"}); !errors.Is(err, storage.ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
	if evs, err := s.BehaviorsForUser(ctx, "u", time.Time{}); err != nil || len(evs) != 0 {
		t.Errorf("expected empty read, got %v, %v", evs, err)
	}
	if ev, err := s.GetEvent(ctx, "e1"); ev != nil || err != nil {
		t.Errorf("expected nil, nil, got %v, %v", ev, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close should be a no-op, got %v", err)
	}
}

// TestMongoRoundTrip needs a live server: EVENT_HUB_TEST_MONGO_URI=mongodb://localhost:27017
func TestMongoRoundTrip(t *testing.T) {
	uri := os.Getenv("EVENT_HUB_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("EVENT_HUB_TEST_MONGO_URI not set")
	}

	dbName := "event_hub_test_" + uuid.NewString()[:8]
	s := New(uri, dbName, zerolog.Nop())
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() {
		_ = s.client.Database(dbName).Drop(context.Background())
		_ = s.Close()
	})

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.UpsertEvent(ctx, models.Event{ID: "e1", Name: "Jazz Night", Category: "Music", Price: 20, Date: now.Add(time.Hour)}); err != nil {
		t.Fatalf("UpsertEvent failed: %v", err)
	}
	if err := s.AppendBehavior(ctx, models.BehaviorEvent{UserID: "u1", ActionType: models.ActionLike, EventID: "e1", Timestamp: now}); err != nil {
		t.Fatalf("AppendBehavior failed: %v", err)
	}

	upcoming, err := s.UpcomingEvents(ctx, "Music", now, 20)
	if err != nil || len(upcoming) != 1 {
		t.Fatalf("expected 1 upcoming event, got %d (%v)", len(upcoming), err)
	}

	liked, err := s.BehaviorsByActions(ctx, "u1", models.PositiveActions, 50)
	if err != nil || len(liked) != 1 {
		t.Fatalf("expected 1 positive action, got %d (%v)", len(liked), err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Users != 1 || stats.Events != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
