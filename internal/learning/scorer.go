package learning

import (
	"sort"

	"github.com/khanglvm/event-hub/internal/models"
)

// EventScore is an event with its aggregated behavior score.
type EventScore struct {
	EventID      string
	Score        float64
	Interactions int
	Users        int
}

// TrendingScores ranks events by interaction count times distinct user
// count. Events without an event ID are ignored.
func TrendingScores(events []models.BehaviorEvent) []EventScore {
	users := make(map[string]map[string]struct{})

	scores := aggregate(events, func(ev models.BehaviorEvent, s *EventScore) bool {
		s.Interactions++
		if users[ev.EventID] == nil {
			users[ev.EventID] = make(map[string]struct{})
		}
		users[ev.EventID][ev.UserID] = struct{}{}
		return true
	})

	for i := range scores {
		scores[i].Users = len(users[scores[i].EventID])
		scores[i].Score = float64(scores[i].Interactions * scores[i].Users)
	}
	return rankScores(scores)
}

// CollaborativeScores sums the collaborative weight of positive actions
// (purchase, like, share) per event. Other actions are ignored.
func CollaborativeScores(events []models.BehaviorEvent) []EventScore {
	positive := make(map[models.ActionType]bool, len(models.PositiveActions))
	for _, a := range models.PositiveActions {
		positive[a] = true
	}

	users := make(map[string]map[string]struct{})
	scores := aggregate(events, func(ev models.BehaviorEvent, s *EventScore) bool {
		if !positive[ev.ActionType] {
			return false
		}
		s.Interactions++
		s.Score += ev.ActionType.CollaborativeWeight()
		if users[ev.EventID] == nil {
			users[ev.EventID] = make(map[string]struct{})
		}
		users[ev.EventID][ev.UserID] = struct{}{}
		return true
	})

	for i := range scores {
		scores[i].Users = len(users[scores[i].EventID])
	}
	return rankScores(scores)
}

// aggregate folds events into per-event scores in order of first
// appearance. add reports whether the event contributed.
func aggregate(events []models.BehaviorEvent, add func(models.BehaviorEvent, *EventScore) bool) []EventScore {
	index := make(map[string]int)
	scores := make([]EventScore, 0)

	for _, ev := range events {
		if !ev.HasEvent() {
			continue
		}
		i, ok := index[ev.EventID]
		if !ok {
			var s EventScore
			s.EventID = ev.EventID
			if !add(ev, &s) {
				continue
			}
			index[ev.EventID] = len(scores)
			scores = append(scores, s)
			continue
		}
		add(ev, &scores[i])
	}
	return scores
}

// rankScores sorts by score descending; ties keep first-appearance order.
func rankScores(scores []EventScore) []EventScore {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}
