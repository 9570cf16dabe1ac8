package models

import (
	"strings"
	"time"
)

// ActionType is the kind of user interaction recorded in the behavior log.
type ActionType string

const (
	ActionSearch   ActionType = "search"
	ActionView     ActionType = "view"
	ActionClick    ActionType = "click"
	ActionPurchase ActionType = "purchase"
	ActionLike     ActionType = "like"
	ActionShare    ActionType = "share"
)

// preferenceWeights is the action weight table used for preference profiles.
var preferenceWeights = map[ActionType]float64{
	ActionView:     1.0,
	ActionClick:    2.0,
	ActionSearch:   1.5,
	ActionPurchase: 5.0,
	ActionLike:     3.0,
	ActionShare:    2.5,
}

// collaborativeWeights scores positive interactions of similar users.
var collaborativeWeights = map[ActionType]float64{
	ActionPurchase: 3.0,
	ActionLike:     2.0,
	ActionShare:    1.5,
}

// PositiveActions are the actions that count as endorsements in collaborative filtering.
var PositiveActions = []ActionType{ActionPurchase, ActionLike, ActionShare}

// ParseActionType normalizes a raw action string. Unknown values are kept
// as-is so the log stays faithful; they weigh 1.0.
func ParseActionType(s string) ActionType {
	return ActionType(strings.ToLower(strings.TrimSpace(s)))
}

// PreferenceWeight returns the preference-profile weight of the action (1.0 if unknown).
func (a ActionType) PreferenceWeight() float64 {
	if w, ok := preferenceWeights[a]; ok {
		return w
	}
	return 1.0
}

// CollaborativeWeight returns the collaborative-filtering weight of the action (1.0 if unknown).
func (a ActionType) CollaborativeWeight() float64 {
	if w, ok := collaborativeWeights[a]; ok {
		return w
	}
	return 1.0
}

// IsKnown reports whether the action is one of the enumerated types.
func (a ActionType) IsKnown() bool {
	_, ok := preferenceWeights[a]
	return ok
}

// BehaviorEvent is one append-only entry of the behavior log.
type BehaviorEvent struct {
	// UserID is the opaque user identifier.
	UserID string `json:"user_id" bson:"user_id"`

	// ActionType is what the user did.
	ActionType ActionType `json:"action_type" bson:"action_type"`

	// EventID references the catalog event, empty for queries without a target.
	EventID string `json:"event_id,omitempty" bson:"event_id,omitempty"`

	// Query is the raw search text for search actions.
	Query string `json:"query,omitempty" bson:"query,omitempty"`

	// Timestamp is assigned at write time when zero.
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	// SessionID groups events of one visit.
	SessionID string `json:"session_id,omitempty" bson:"session_id,omitempty"`

	// Context carries free-form request context (page, referrer...).
	Context map[string]string `json:"context,omitempty" bson:"context,omitempty"`
}

// HasEvent reports whether the behavior references a catalog event.
func (b BehaviorEvent) HasEvent() bool {
	return b.EventID != ""
}

// PreferenceProfile is derived from a user's recent behavior. It is never stored.
type PreferenceProfile struct {
	UserID                 string             `json:"user_id"`
	Categories             map[string]float64 `json:"categories"`
	Locations              map[string]float64 `json:"locations"`
	AveragePricePreference float64            `json:"average_price_preference"`
	TotalInteractions      int                `json:"total_interactions"`
}

// DefaultAveragePrice is used when the user never touched a priced event.
const DefaultAveragePrice = 100.0

// NewPreferenceProfile returns an empty profile with initialized maps.
func NewPreferenceProfile(userID string) PreferenceProfile {
	return PreferenceProfile{
		UserID:                 userID,
		Categories:             make(map[string]float64),
		Locations:              make(map[string]float64),
		AveragePricePreference: DefaultAveragePrice,
	}
}

// IsEmpty reports whether the profile carries no category signal.
func (p PreferenceProfile) IsEmpty() bool {
	return len(p.Categories) == 0
}

// TotalCategoryWeight sums all category weights.
func (p PreferenceProfile) TotalCategoryWeight() float64 {
	var total float64
	for _, w := range p.Categories {
		total += w
	}
	return total
}
