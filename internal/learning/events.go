/*
Package learning models user behavior.

BehaviorStore appends interactions to the behavior log and derives
preference profiles and user similarity from it. Tracker puts a
non-blocking queue in front of the store so request paths never wait on
a write.
*/
package learning

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/event-hub/internal/models"
)

// NewBehaviorEvent creates a behavior event stamped with the current time.
func NewBehaviorEvent(userID string, action models.ActionType, eventID, query, sessionID string) models.BehaviorEvent {
	return models.BehaviorEvent{
		UserID:     userID,
		ActionType: action,
		EventID:    eventID,
		Query:      query,
		SessionID:  sessionID,
		Timestamp:  time.Now().UTC(),
	}
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// normalizeEvent trims identifiers, normalizes the action and assigns
// the timestamp when the caller left it zero.
func normalizeEvent(ev models.BehaviorEvent, now time.Time) models.BehaviorEvent {
	ev.UserID = strings.TrimSpace(ev.UserID)
	ev.EventID = strings.TrimSpace(ev.EventID)
	ev.ActionType = models.ParseActionType(string(ev.ActionType))
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	return ev
}

// actionLabel bounds metric label cardinality for unknown actions.
func actionLabel(a models.ActionType) string {
	if a.IsKnown() {
		return string(a)
	}
	return "other"
}
