package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/storage"
)

// errorStorage fails every call.
type errorStorage struct {
	storage.Storage
}

var errBoom = errors.New("database is locked")

func (errorStorage) AppendBehavior(context.Context, models.BehaviorEvent) error { return errBoom }
func (errorStorage) BehaviorsForUser(context.Context, string, time.Time) ([]models.BehaviorEvent, error) {
	return nil, errBoom
}
func (errorStorage) BehaviorsByActions(context.Context, string, []models.ActionType, int) ([]models.BehaviorEvent, error) {
	return nil, errBoom
}
func (errorStorage) BehaviorsSince(context.Context, time.Time) ([]models.BehaviorEvent, error) {
	return nil, errBoom
}
func (errorStorage) UserIDs(context.Context) ([]string, error) { return nil, errBoom }

func newTestStore(t *testing.T) (*BehaviorStore, *storage.MemoryStorage) {
	t.Helper()
	mem := storage.NewMemoryStorage()
	return NewBehaviorStore(mem, Options{}, zerolog.Nop()), mem
}

func upsert(t *testing.T, mem *storage.MemoryStorage, events ...models.Event) {
	t.Helper()
	for _, ev := range events {
		if err := mem.UpsertEvent(context.Background(), ev); err != nil {
			t.Fatalf("UpsertEvent failed: %v", err)
		}
	}
}

func TestTrack_AssignsTimestamp(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()

	before := time.Now().UTC()
	if !store.Track(ctx, models.BehaviorEvent{UserID: "u1", ActionType: "View", EventID: "e1"}) {
		t.Fatal("expected Track to succeed")
	}

	events, _ := mem.BehaviorsForUser(ctx, "u1", time.Time{})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp.Before(before) {
		t.Errorf("expected timestamp assigned at write time, got %v", events[0].Timestamp)
	}
	if events[0].ActionType != models.ActionView {
		t.Errorf("expected normalized action, got %q", events[0].ActionType)
	}
}

func TestTrack_KeepsSuppliedTimestamp(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.Track(ctx, models.BehaviorEvent{UserID: "u1", ActionType: models.ActionClick, Timestamp: ts})

	events, _ := mem.BehaviorsForUser(ctx, "u1", time.Time{})
	if len(events) != 1 || !events[0].Timestamp.Equal(ts) {
		t.Errorf("expected supplied timestamp %v, got %+v", ts, events)
	}
}

func TestTrack_Failures(t *testing.T) {
	store, _ := newTestStore(t)
	if store.Track(context.Background(), models.BehaviorEvent{ActionType: models.ActionView}) {
		t.Error("expected Track without user to fail")
	}

	failing := NewBehaviorStore(errorStorage{}, Options{}, zerolog.Nop())
	if failing.Track(context.Background(), models.BehaviorEvent{UserID: "u1", ActionType: models.ActionView}) {
		t.Error("expected Track to report storage failure")
	}
}

func TestPreferences_Scenario(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	upsert(t, mem, models.Event{ID: "gig", Category: "Music", Location: "Austin", Price: 50})

	old := time.Now().UTC().AddDate(0, 0, -45)
	tracked := []models.BehaviorEvent{
		{UserID: "U", ActionType: models.ActionView, EventID: "gig"},
		{UserID: "U", ActionType: models.ActionView, EventID: "gig"},
		{UserID: "U", ActionType: models.ActionPurchase, EventID: "gig"},
		{UserID: "U", ActionType: models.ActionLike, EventID: "gig", Timestamp: old},
		{UserID: "U", ActionType: models.ActionShare, EventID: "gig", Timestamp: old},
	}
	for _, ev := range tracked {
		if !store.Track(ctx, ev) {
			t.Fatalf("failed to track %+v", ev)
		}
	}

	p := store.Preferences(ctx, "U", 30)
	if len(p.Categories) != 1 || p.Categories["Music"] != 7.0 {
		t.Errorf("expected categories {Music: 7}, got %v", p.Categories)
	}
	if p.Locations["Austin"] != 7.0 {
		t.Errorf("expected locations {Austin: 7}, got %v", p.Locations)
	}
	if p.AveragePricePreference != 50.0 {
		t.Errorf("expected average price 50, got %f", p.AveragePricePreference)
	}
	if p.TotalInteractions != 3 {
		t.Errorf("expected 3 interactions, got %d", p.TotalInteractions)
	}
}

func TestPreferences_Defaults(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	upsert(t, mem, models.Event{ID: "free", Category: "Arts", Price: 0})

	store.Track(ctx, models.BehaviorEvent{UserID: "u1", ActionType: models.ActionSearch, Query: "art"})
	store.Track(ctx, models.BehaviorEvent{UserID: "u1", ActionType: models.ActionClick, EventID: "free"})
	store.Track(ctx, models.BehaviorEvent{UserID: "u1", ActionType: "bookmark", EventID: "free"})
	store.Track(ctx, models.BehaviorEvent{UserID: "u1", ActionType: models.ActionView, EventID: "deleted"})

	p := store.Preferences(ctx, "u1", 0)
	if p.AveragePricePreference != models.DefaultAveragePrice {
		t.Errorf("expected default price, got %f", p.AveragePricePreference)
	}
	// click 2.0 + unknown action 1.0
	if p.Categories["Arts"] != 3.0 {
		t.Errorf("expected Arts weight 3, got %v", p.Categories)
	}
	if p.TotalInteractions != 4 {
		t.Errorf("expected all fetched events counted, got %d", p.TotalInteractions)
	}
	for k, w := range p.Categories {
		if w < 0 {
			t.Errorf("negative weight for %s: %f", k, w)
		}
	}
}

func TestPreferences_StorageFailure(t *testing.T) {
	store := NewBehaviorStore(errorStorage{}, Options{}, zerolog.Nop())

	p := store.Preferences(context.Background(), "u1", 30)
	if !p.IsEmpty() || p.TotalInteractions != 0 {
		t.Errorf("expected zero profile, got %+v", p)
	}
	if p.Categories == nil || p.Locations == nil {
		t.Error("expected initialized maps")
	}
}

func TestSimilarUsers_EmptyProfile(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	upsert(t, mem, models.Event{ID: "gig", Category: "Music"})
	store.Track(ctx, models.BehaviorEvent{UserID: "other", ActionType: models.ActionLike, EventID: "gig"})

	users := store.SimilarUsers(ctx, "newcomer", 5)
	if users == nil || len(users) != 0 {
		t.Errorf("expected empty non-nil list, got %v", users)
	}
}

func TestSimilarUsers_Ranking(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	upsert(t, mem,
		models.Event{ID: "gig", Category: "Music"},
		models.Event{ID: "summit", Category: "Technology"},
		models.Event{ID: "match", Category: "Sports"},
	)

	track := func(user string, action models.ActionType, eventID string) {
		if !store.Track(ctx, models.BehaviorEvent{UserID: user, ActionType: action, EventID: eventID}) {
			t.Fatalf("failed to track %s", user)
		}
	}

	// target: Music 5, Technology 1
	track("target", models.ActionPurchase, "gig")
	track("target", models.ActionView, "summit")
	// twin: same proportions
	track("twin", models.ActionPurchase, "gig")
	track("twin", models.ActionView, "summit")
	// skewed: Music 1, Technology 5
	track("skewed", models.ActionView, "gig")
	track("skewed", models.ActionPurchase, "summit")
	// stranger: no shared categories
	track("stranger", models.ActionPurchase, "match")

	users := store.SimilarUsers(ctx, "target", 10)
	if len(users) != 2 {
		t.Fatalf("expected twin and skewed, got %v", users)
	}
	if users[0] != "twin" || users[1] != "skewed" {
		t.Errorf("expected [twin skewed], got %v", users)
	}

	if limited := store.SimilarUsers(ctx, "target", 1); len(limited) != 1 || limited[0] != "twin" {
		t.Errorf("expected [twin] with limit 1, got %v", limited)
	}
}

func TestSimilarUsers_Threshold(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()
	upsert(t, mem,
		models.Event{ID: "a", Category: "Music"},
		models.Event{ID: "b", Category: "Technology"},
	)

	// target: Music 5, Technology 1
	store.Track(ctx, models.BehaviorEvent{UserID: "target", ActionType: models.ActionPurchase, EventID: "a"})
	store.Track(ctx, models.BehaviorEvent{UserID: "target", ActionType: models.ActionView, EventID: "b"})
	// opposite: Music 1, Technology 25 -> cosine ~0.23
	store.Track(ctx, models.BehaviorEvent{UserID: "opposite", ActionType: models.ActionView, EventID: "a"})
	for i := 0; i < 5; i++ {
		store.Track(ctx, models.BehaviorEvent{UserID: "opposite", ActionType: models.ActionPurchase, EventID: "b"})
	}

	users := store.SimilarUsers(ctx, "target", 5)
	if len(users) != 0 {
		t.Errorf("expected users below threshold to be excluded, got %v", users)
	}
}

func TestSimilarUsers_StorageFailure(t *testing.T) {
	store := NewBehaviorStore(errorStorage{}, Options{}, zerolog.Nop())
	if users := store.SimilarUsers(context.Background(), "u1", 5); len(users) != 0 {
		t.Errorf("expected empty result, got %v", users)
	}
}

func TestCategorySimilarity(t *testing.T) {
	a := map[string]float64{"Music": 3, "Arts": 4}
	b := map[string]float64{"Music": 6, "Arts": 8, "Sports": 100}

	if s := categorySimilarity(a, b); s < 0.999999 || s > 1.000001 {
		t.Errorf("expected 1.0 over shared keys, got %f", s)
	}
	if s := categorySimilarity(a, map[string]float64{"Sports": 1}); s != 0 {
		t.Errorf("expected 0 without shared keys, got %f", s)
	}
	if s := categorySimilarity(map[string]float64{}, b); s != 0 {
		t.Errorf("expected 0 for empty profile, got %f", s)
	}
}

func TestPositiveAndRecentEvents(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Track(ctx, models.BehaviorEvent{UserID: "u1", ActionType: models.ActionView, EventID: "a"})
	store.Track(ctx, models.BehaviorEvent{UserID: "u1", ActionType: models.ActionLike, EventID: "b"})
	store.Track(ctx, models.BehaviorEvent{UserID: "u2", ActionType: models.ActionShare, EventID: "c",
		Timestamp: time.Now().UTC().AddDate(0, 0, -10)})

	positive := store.PositiveEvents(ctx, "u1", 10)
	if len(positive) != 1 || positive[0].EventID != "b" {
		t.Errorf("expected only the like, got %+v", positive)
	}

	recent := store.RecentEvents(ctx, 7*24*time.Hour)
	if len(recent) != 2 {
		t.Errorf("expected 2 events in the last week, got %d", len(recent))
	}

	failing := NewBehaviorStore(errorStorage{}, Options{}, zerolog.Nop())
	if got := failing.RecentEvents(ctx, time.Hour); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}
