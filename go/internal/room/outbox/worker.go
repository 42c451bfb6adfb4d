package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	RoomID         string
	QueueSize      int
	MaxRetries     int
	RetryDelay     time.Duration
	PublishTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RoomID:         "default",
		QueueSize:      1024,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

// Worker publishes room events off the coordinator goroutine. Record never
// blocks; events that do not fit in the queue are dropped.
type Worker struct {
	publisher EventPublisher
	config    Config
	metrics   MetricsCollector
	clock     clockwork.Clock
	logger    zerolog.Logger
	queue     chan OutboxEvent

	processed atomic.Uint64
	lastEvent atomic.Int64

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a worker. In production, use clockwork.NewRealClock(). In tests, a FakeClock.
func NewWorker(publisher EventPublisher, cfg Config, metrics MetricsCollector, clock clockwork.Clock) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Worker{
		publisher: publisher,
		config:    cfg,
		metrics:   metrics,
		clock:     clock,
		logger:    log.With().Str("component", "outbox").Str("room_id", cfg.RoomID).Logger(),
		queue:     make(chan OutboxEvent, cfg.QueueSize),
		stopChan:  make(chan struct{}),
	}
}

// Record queues a room event for publication
func (w *Worker) Record(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal room event")
		return
	}

	event := OutboxEvent{
		ID:        uuid.New(),
		RoomID:    w.config.RoomID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: w.clock.Now(),
	}

	select {
	case w.queue <- event:
		w.metrics.RecordQueueDepth(len(w.queue))
	default:
		w.metrics.RecordDropped(eventType)
		w.logger.Warn().Str("event_type", eventType).Msg("outbox queue full, dropping event")
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info().
		Int("queue_size", w.config.QueueSize).
		Int("max_retries", w.config.MaxRetries).
		Msg("outbox worker started")

	return nil
}

// Stop publishes what is already queued, once each, then returns
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	w.logger.Info().Uint64("processed", w.processed.Load()).Msg("outbox worker stopped")
	return nil
}

// Running reports whether the worker loop is active
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns the number of published events and when the last one went out
func (w *Worker) Stats() (uint64, time.Time) {
	var last time.Time
	if ns := w.lastEvent.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return w.processed.Load(), last
}

// Pending is the number of queued events
func (w *Worker) Pending() int {
	return len(w.queue)
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case <-w.stopChan:
			w.drain()
			return
		case event := <-w.queue:
			w.metrics.RecordQueueDepth(len(w.queue))
			if err := w.publishWithRetry(ctx, event); err != nil {
				w.logger.Error().
					Err(err).
					Str("event_id", event.ID.String()).
					Str("event_type", event.EventType).
					Msg("failed to publish event")
				continue
			}
			w.markSent()
		}
	}
}

// drain makes a single attempt for every queued event
func (w *Worker) drain() {
	for {
		select {
		case event := <-w.queue:
			if err := w.publishOnce(context.Background(), event); err != nil {
				w.logger.Warn().
					Err(err).
					Str("event_id", event.ID.String()).
					Str("event_type", event.EventType).
					Msg("dropping event on shutdown")
				continue
			}
			w.markSent()
		default:
			w.metrics.RecordQueueDepth(0)
			return
		}
	}
}

func (w *Worker) markSent() {
	w.processed.Add(1)
	w.lastEvent.Store(w.clock.Now().UnixNano())
}

func (w *Worker) publishOnce(ctx context.Context, event OutboxEvent) error {
	if w.config.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.PublishTimeout)
		defer cancel()
	}
	return w.publisher.Publish(ctx, event)
}

func (w *Worker) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.stopChan:
				return fmt.Errorf("worker stopping: %w", lastErr)
			case <-w.clock.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := w.publishOnce(ctx, event); err != nil {
			lastErr = err
			w.metrics.RecordPublishAttempt(event.EventType, attempt+1, false)
			w.logger.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}

		w.metrics.RecordPublishAttempt(event.EventType, attempt+1, true)
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
