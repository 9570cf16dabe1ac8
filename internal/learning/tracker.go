package learning

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/khanglvm/event-hub/internal/metrics"
	"github.com/khanglvm/event-hub/internal/models"
)

const (
	// defaultQueueSize is the buffer size for the event queue.
	// If full, events are dropped (non-blocking).
	defaultQueueSize = 1000

	// defaultBatchSize is the number of events that triggers an immediate flush.
	defaultBatchSize = 10

	// defaultFlushInterval is how often pending events are flushed.
	defaultFlushInterval = 50 * time.Millisecond

	// flushTimeout bounds one batch write.
	flushTimeout = 10 * time.Second
)

// Sink receives tracked behavior events.
type Sink interface {
	Track(ctx context.Context, ev models.BehaviorEvent) bool
}

// TrackerConfig tunes the background queue.
type TrackerConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}

// Tracker records behavior in the background with non-blocking writes.
type Tracker struct {
	sink       Sink
	eventQueue chan models.BehaviorEvent
	batchSize  int
	interval   time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	enabled    bool
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewTracker creates a tracker and starts its background worker.
func NewTracker(sink Sink, cfg TrackerConfig, log zerolog.Logger) *Tracker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}

	t := &Tracker{
		sink:       sink,
		eventQueue: make(chan models.BehaviorEvent, cfg.QueueSize),
		batchSize:  cfg.BatchSize,
		interval:   cfg.FlushInterval,
		stopChan:   make(chan struct{}),
		enabled:    sink != nil,
		log:        log.With().Str("component", "tracker").Logger(),
	}

	t.wg.Add(1)
	go t.processEvents()

	return t
}

// Enqueue queues ev without blocking and reports whether it was accepted.
// The timestamp is fixed here so queueing delay does not shift it.
func (t *Tracker) Enqueue(ev models.BehaviorEvent) bool {
	if !t.IsEnabled() {
		return false
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	select {
	case <-t.stopChan:
		return false
	default:
	}

	select {
	case t.eventQueue <- ev:
		return true
	default:
		metrics.TrackerDropped.Inc()
		t.log.Warn().Str("user_id", ev.UserID).Str("action", string(ev.ActionType)).Msg("behavior queue full, dropping event")
		return false
	}
}

// Stop gracefully shuts down the tracker, flushing remaining events.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
}

// Disable disables tracking (events are ignored).
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

// Enable enables tracking.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = t.sink != nil
}

// IsEnabled returns whether tracking is enabled.
func (t *Tracker) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// QueueLen returns the current number of events in the queue.
func (t *Tracker) QueueLen() int {
	return len(t.eventQueue)
}

// processEvents runs in the background, batching and flushing events.
func (t *Tracker) processEvents() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	batch := make([]models.BehaviorEvent, 0, t.batchSize)

	for {
		select {
		case event := <-t.eventQueue:
			batch = append(batch, event)
			if len(batch) >= t.batchSize {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-t.stopChan:
			// drain what is already queued, then exit
			for {
				select {
				case event := <-t.eventQueue:
					batch = append(batch, event)
					if len(batch) >= t.batchSize {
						t.flush(batch)
						batch = batch[:0]
					}
				default:
					t.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of events to the sink.
func (t *Tracker) flush(events []models.BehaviorEvent) {
	if len(events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	failed := 0
	for _, event := range events {
		if !t.sink.Track(ctx, event) {
			failed++
		}
	}
	if failed > 0 {
		t.log.Warn().Int("failed", failed).Int("batch", len(events)).Msg("some behavior events were not recorded")
	}
}
