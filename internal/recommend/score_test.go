package recommend

import (
	"math"
	"testing"
	"time"

	"github.com/khanglvm/event-hub/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestContentScore(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	profile := models.NewPreferenceProfile("u1")
	profile.Categories["Music"] = 7
	profile.AveragePricePreference = 50

	ev := models.Event{
		Category:         "Music",
		Price:            75,
		AverageRating:    4,
		AvailableTickets: 30,
		TotalTickets:     60,
		CreatedAt:        now.AddDate(0, 0, -15),
	}

	// 0.4*7 + 0.2*0.5 + 0.2*0.8 + 0.1*0.5 + 0.1*0.5
	want := 2.8 + 0.1 + 0.16 + 0.05 + 0.05
	if got := ContentScore(ev, profile, now); !almostEqual(got, want) {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestContentScore_Unbounded(t *testing.T) {
	profile := models.NewPreferenceProfile("u1")
	profile.Categories["Music"] = 20

	if got := ContentScore(models.Event{Category: "Music"}, profile, time.Now()); got <= 1 {
		t.Errorf("expected raw category weight to push the score above 1, got %f", got)
	}
}

func TestPersonalizationScore(t *testing.T) {
	profile := models.NewPreferenceProfile("u1")
	profile.Categories["Music"] = 3
	profile.Categories["Arts"] = 1
	profile.Locations["Austin"] = 2
	profile.AveragePricePreference = 40

	tests := []struct {
		name string
		ev   models.Event
		want float64
	}{
		{"full match", models.Event{Category: "Music", Price: 40, Location: "Downtown austin, TX"}, 0.5*0.75 + 0.3 + 0.2},
		{"category only", models.Event{Category: "Arts", Price: 500}, 0.5 * 0.25},
		{"unknown category", models.Event{Category: "Sports", Price: 20}, 0.3 * 0.5},
		{"nothing", models.Event{Category: "Sports", Price: 1000, Location: "Boston"}, 0},
	}

	for _, tt := range tests {
		if got := PersonalizationScore(tt.ev, profile); !almostEqual(got, tt.want) {
			t.Errorf("%s: expected %f, got %f", tt.name, tt.want, got)
		}
	}
}

func TestPersonalizationScore_Capped(t *testing.T) {
	profile := models.NewPreferenceProfile("u1")
	profile.Categories["Music"] = 0.5
	profile.Locations["Austin"] = 1
	profile.AveragePricePreference = 10

	// category share 0.5/max(0.5,1) keeps the sum below 1 here
	got := PersonalizationScore(models.Event{Category: "Music", Price: 10, Location: "Austin"}, profile)
	if got > 1 || got < 0 {
		t.Errorf("expected score within [0,1], got %f", got)
	}
}

func TestFreshness(t *testing.T) {
	now := time.Now()
	if f := freshness(time.Time{}, now); f != 0 {
		t.Errorf("expected 0 for unknown listing date, got %f", f)
	}
	if f := freshness(now, now); f != 1 {
		t.Errorf("expected 1 for a new listing, got %f", f)
	}
	if f := freshness(now.AddDate(0, 0, -45), now); f != 0 {
		t.Errorf("expected 0 after the window, got %f", f)
	}
}
