// Package mongo implements storage.Storage on MongoDB, using the
// user_behaviors and events collections of the ticketing platform database.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/storage"
)

const (
	behaviorsCollection = "user_behaviors"
	eventsCollection    = "events"
	searchesCollection  = "search_history"
)

// Storage is a MongoDB-backed storage.Storage.
type Storage struct {
	uri    string
	dbName string
	log    zerolog.Logger

	client    *mongo.Client
	behaviors *mongo.Collection
	events    *mongo.Collection
	searches  *mongo.Collection
}

var _ storage.Storage = (*Storage)(nil)

// New returns a Storage that connects on Init.
func New(uri, dbName string, log zerolog.Logger) *Storage {
	return &Storage{
		uri:    uri,
		dbName: dbName,
		log:    log.With().Str("component", "storage").Str("backend", "mongo").Logger(),
	}
}

// Init connects, pings and ensures indexes.
func (s *Storage) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(s.uri).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(10).
		SetMinPoolSize(1)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(s.dbName)
	s.client = client
	s.behaviors = db.Collection(behaviorsCollection)
	s.events = db.Collection(eventsCollection)
	s.searches = db.Collection(searchesCollection)

	return s.ensureIndexes(ctx)
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	if _, err := s.behaviors.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("by_user_ts"),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("by_ts"),
		},
	}); err != nil {
		return fmt.Errorf("failed to create behavior indexes: %w", err)
	}

	if _, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("uniq_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("by_category_date"),
		},
	}); err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}

	return nil
}

// Close disconnects the client.
func (s *Storage) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Storage) ready() bool {
	return s.client != nil
}

// AppendBehavior appends one behavior event to the log.
func (s *Storage) AppendBehavior(ctx context.Context, ev models.BehaviorEvent) error {
	if !s.ready() {
		return storage.ErrDisabled
	}
	if _, err := s.behaviors.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("failed to append behavior: %w", err)
	}
	return nil
}

// BehaviorsForUser returns a user's events with timestamp >= since, oldest first.
func (s *Storage) BehaviorsForUser(ctx context.Context, userID string, since time.Time) ([]models.BehaviorEvent, error) {
	return s.findBehaviors(ctx,
		bson.M{"user_id": userID, "timestamp": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
}

// BehaviorsByActions returns a user's most recent events of the given actions.
func (s *Storage) BehaviorsByActions(ctx context.Context, userID string, actions []models.ActionType, limit int) ([]models.BehaviorEvent, error) {
	if len(actions) == 0 || limit <= 0 {
		return []models.BehaviorEvent{}, nil
	}
	return s.findBehaviors(ctx,
		bson.M{"user_id": userID, "action_type": bson.M{"$in": actions}},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(limit)))
}

// BehaviorsSince returns every event with timestamp >= since, oldest first.
func (s *Storage) BehaviorsSince(ctx context.Context, since time.Time) ([]models.BehaviorEvent, error) {
	return s.findBehaviors(ctx,
		bson.M{"timestamp": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
}

func (s *Storage) findBehaviors(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.BehaviorEvent, error) {
	if !s.ready() {
		return []models.BehaviorEvent{}, nil
	}

	cur, err := s.behaviors.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query behaviors: %w", err)
	}
	out := []models.BehaviorEvent{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode behaviors: %w", err)
	}
	return out, nil
}

// UserIDs returns the distinct users present in the log, sorted.
func (s *Storage) UserIDs(ctx context.Context) ([]string, error) {
	if !s.ready() {
		return []string{}, nil
	}

	raw, err := s.behaviors.Distinct(ctx, "user_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// UpsertEvent inserts or replaces a catalog event.
func (s *Storage) UpsertEvent(ctx context.Context, ev models.Event) error {
	if !s.ready() {
		return storage.ErrDisabled
	}
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}
	_, err := s.events.ReplaceOne(ctx, bson.M{"id": ev.ID}, ev, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", ev.ID, err)
	}
	return nil
}

// GetEvent returns the event or nil when it does not exist.
func (s *Storage) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if !s.ready() {
		return nil, nil
	}

	var ev models.Event
	err := s.events.FindOne(ctx, bson.M{"id": id}).Decode(&ev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return &ev, nil
}

// UpcomingEvents returns up to limit events of a category dated after the given time.
func (s *Storage) UpcomingEvents(ctx context.Context, category string, after time.Time, limit int) ([]models.Event, error) {
	return s.findEvents(ctx,
		bson.M{"category": category, "date": bson.M{"$gt": after}},
		options.Find().
			SetSort(bson.D{{Key: "date", Value: 1}, {Key: "id", Value: 1}}).
			SetLimit(int64(limit)))
}

// ListEvents returns the whole catalog ordered by id.
func (s *Storage) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.findEvents(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
}

func (s *Storage) findEvents(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Event, error) {
	if !s.ready() {
		return []models.Event{}, nil
	}

	cur, err := s.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	out := []models.Event{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return out, nil
}

// RecordSearch records a search for analytics. Failures are logged only.
func (s *Storage) RecordSearch(ctx context.Context, rec storage.SearchRecord) error {
	if !s.ready() {
		return nil
	}
	if _, err := s.searches.InsertOne(ctx, rec); err != nil {
		s.log.Warn().Err(err).Msg("failed to record search")
	}
	return nil
}

// Stats reports document counts.
func (s *Storage) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	if !s.ready() {
		return st, nil
	}

	counts := []struct {
		dst *int
		col *mongo.Collection
	}{
		{&st.Behaviors, s.behaviors},
		{&st.Events, s.events},
		{&st.Searches, s.searches},
	}
	for _, c := range counts {
		n, err := c.col.CountDocuments(ctx, bson.M{})
		if err != nil {
			return st, fmt.Errorf("failed to count %s: %w", c.col.Name(), err)
		}
		*c.dst = int(n)
	}

	users, err := s.UserIDs(ctx)
	if err != nil {
		return st, err
	}
	st.Users = len(users)
	return st, nil
}

// Cleanup removes search history older than retention.
func (s *Storage) Cleanup(ctx context.Context, retention time.Duration) error {
	if !s.ready() {
		return nil
	}
	cutoff := time.Now().Add(-retention)
	if _, err := s.searches.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}}); err != nil {
		s.log.Warn().Err(err).Msg("failed to cleanup search_history")
	}
	return nil
}
