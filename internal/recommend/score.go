package recommend

import (
	"math"
	"strings"
	"time"

	"github.com/khanglvm/event-hub/internal/models"
)

// Content score weights.
const (
	contentCategoryWeight     = 0.4
	contentPriceWeight        = 0.2
	contentRatingWeight       = 0.2
	contentAvailabilityWeight = 0.1
	contentFreshnessWeight    = 0.1

	freshnessWindowDays = 30.0
	maxRating           = 5.0
)

// Personalization score weights.
const (
	personalCategoryWeight = 0.5
	personalPriceWeight    = 0.3
	personalLocationBoost  = 0.2
)

// ContentScore scores an event against a preference profile. The category
// term uses the raw accumulated weight, so the result is unbounded above.
func ContentScore(ev models.Event, p models.PreferenceProfile, now time.Time) float64 {
	score := contentCategoryWeight * p.Categories[ev.Category]
	score += contentPriceWeight * priceCloseness(ev.Price, p.AveragePricePreference)
	score += contentRatingWeight * (ev.AverageRating / maxRating)
	score += contentAvailabilityWeight * ev.AvailabilityRatio()
	score += contentFreshnessWeight * freshness(ev.CreatedAt, now)
	return score
}

// PersonalizationScore scores an event against a preference profile in
// [0,1]: category share, price closeness and a location match boost.
func PersonalizationScore(ev models.Event, p models.PreferenceProfile) float64 {
	var score float64

	if w, ok := p.Categories[ev.Category]; ok {
		score += personalCategoryWeight * w / math.Max(p.TotalCategoryWeight(), 1)
	}

	score += personalPriceWeight * priceCloseness(ev.Price, p.AveragePricePreference)

	location := strings.ToLower(ev.Location)
	for loc := range p.Locations {
		if loc != "" && strings.Contains(location, strings.ToLower(loc)) {
			score += personalLocationBoost
			break
		}
	}

	return math.Min(score, 1.0)
}

// priceCloseness is 1 at the preferred price, falling linearly to 0.
func priceCloseness(price, preferred float64) float64 {
	diff := math.Abs(price-preferred) / math.Max(preferred, 1)
	return math.Max(0, 1-diff)
}

// freshness decays from 1 at listing time to 0 after 30 days; unknown
// listing dates score 0.
func freshness(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	days := math.Floor(now.Sub(createdAt).Hours() / 24)
	return math.Max(0, 1-days/freshnessWindowDays)
}
