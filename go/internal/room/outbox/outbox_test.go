package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

type memoryPublisher struct {
	mu       sync.Mutex
	events   []OutboxEvent
	failures int
}

func (p *memoryPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *memoryPublisher) published() []OutboxEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OutboxEvent(nil), p.events...)
}

type brokerState bool

func (b brokerState) Connected() bool { return bool(b) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RoomID = "lobby"
	cfg.QueueSize = 8
	return cfg
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(labels)
}

func TestWorkerPublishesRecordedEvents(t *testing.T) {
	pub := &memoryPublisher{}
	fake := clockwork.NewFakeClock()
	w := NewWorker(pub, testConfig(), nil, fake)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	w.Record(events.RoomVideoLoaded, events.VideoLoadedPayload{VideoID: "abc", Timestamp: 12.5})

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)

	ev := pub.published()[0]
	require.Equal(t, "lobby", ev.RoomID)
	require.Equal(t, events.RoomVideoLoaded, ev.EventType)
	require.Equal(t, fake.Now(), ev.CreatedAt)

	var payload events.VideoLoadedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, "abc", payload.VideoID)

	processed, last := w.Stats()
	require.Equal(t, uint64(1), processed)
	require.False(t, last.IsZero())
}

func TestWorkerRetriesFailedPublish(t *testing.T) {
	pub := &memoryPublisher{failures: 2}
	fake := clockwork.NewFakeClock()
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	w := NewWorker(pub, testConfig(), metrics, fake)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	w.Record(events.RoomHardReload, events.HardReloadPayload{Manual: true})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for attempt := 1; attempt <= 2; attempt++ {
		require.NoError(t, fake.BlockUntilContext(ctx, 1))
		fake.Advance(time.Duration(attempt) * time.Second)
	}

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)

	for _, attempt := range []string{"1", "2"} {
		require.Equal(t, 1.0, counterValue(t, reg, "watchroom_outbox_publish_attempts_total",
			map[string]string{"event_type": events.RoomHardReload, "attempt": attempt, "status": "failure"}))
	}
	require.Equal(t, 1.0, counterValue(t, reg, "watchroom_outbox_publish_attempts_total",
		map[string]string{"event_type": events.RoomHardReload, "attempt": "3", "status": "success"}))
}

func TestWorkerGivesUpAfterMaxRetries(t *testing.T) {
	pub := &memoryPublisher{failures: 100}
	fake := clockwork.NewFakeClock()
	cfg := testConfig()
	cfg.MaxRetries = 1
	w := NewWorker(pub, cfg, nil, fake)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	w.Record(events.RoomVideoClosed, events.VideoClosedPayload{VideoID: "abc"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fake.BlockUntilContext(ctx, 1))
	fake.Advance(time.Second)

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return pub.failures == 98
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, pub.published())
}

func TestRecordDropsWhenQueueFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.QueueSize = 1
	w := NewWorker(&memoryPublisher{}, cfg, metrics, clockwork.NewFakeClock())

	w.Record(events.RoomClientJoined, events.ClientPresencePayload{ClientID: "a"})
	w.Record(events.RoomClientJoined, events.ClientPresencePayload{ClientID: "b"})

	require.Equal(t, 1, w.Pending())
	require.Equal(t, 1.0, counterValue(t, reg, "watchroom_outbox_events_dropped_total",
		map[string]string{"event_type": events.RoomClientJoined}))
}

func TestStopPublishesQueuedEvents(t *testing.T) {
	pub := &memoryPublisher{}
	w := NewWorker(pub, testConfig(), nil, clockwork.NewFakeClock())

	for i := 0; i < 3; i++ {
		w.Record(events.RoomVolumeChanged, events.VolumeChangedPayload{Level: float64(i)})
	}
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	require.Len(t, pub.published(), 3)
	require.Error(t, w.Stop())
}

func TestMultiPublisherFansOut(t *testing.T) {
	a := &memoryPublisher{}
	b := &memoryPublisher{failures: 1}
	multi := NewMultiPublisher(a, b, NewLogPublisher())

	ev := OutboxEvent{RoomID: "lobby", EventType: events.RoomVideoEnded, Payload: []byte(`{}`)}
	require.Error(t, multi.Publish(context.Background(), ev))
	require.Len(t, a.published(), 1)
	require.Empty(t, b.published())

	require.NoError(t, multi.Publish(context.Background(), ev))
	require.Len(t, b.published(), 1)
}

func TestMetricPublisherCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	pub := NewMetricPublisher(&memoryPublisher{failures: 1}, metrics)
	ev := OutboxEvent{EventType: events.RoomConverged, Payload: []byte(`{}`)}
	require.Error(t, pub.Publish(context.Background(), ev))
	require.NoError(t, pub.Publish(context.Background(), ev))

	for _, s := range []string{"success", "failure"} {
		require.Equal(t, 1.0, counterValue(t, reg, "watchroom_outbox_events_processed_total",
			map[string]string{"event_type": events.RoomConverged, "status": s}))
	}

	_, err = NewPrometheusMetrics(reg)
	require.Error(t, err, "collectors register once per registry")
}

func TestSubjectAndEnvelope(t *testing.T) {
	ev := OutboxEvent{
		RoomID:    "lobby",
		EventType: events.RoomVideoLoaded,
		Payload:   []byte(`{"video_id":"abc"}`),
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.Equal(t, "room.events.lobby.VideoLoaded", Subject("room.events", ev))

	data, err := envelopeFor(ev)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, "lobby", env.RoomID)
	require.Equal(t, events.RoomVideoLoaded, env.EventType)
	require.JSONEq(t, `{"video_id":"abc"}`, string(env.Payload))
	require.True(t, env.Timestamp.Equal(ev.CreatedAt))

	sc := streamConfig(DefaultJetStreamConfig())
	require.Equal(t, []string{"room.events.>"}, sc.Subjects)
	require.True(t, isStreamConfigEqual(sc, sc))
}

func TestHealthChecker(t *testing.T) {
	fake := clockwork.NewFakeClock()
	w := NewWorker(&memoryPublisher{}, testConfig(), nil, fake)

	checker := NewHealthChecker(w, brokerState(false), nil, fake, time.Minute)
	status := checker.Check(context.Background())
	require.False(t, status.Healthy)
	require.Len(t, status.Errors, 2)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	checker = NewHealthChecker(w, brokerState(true), nil, fake, time.Minute)
	rec := httptest.NewRecorder()
	checker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/outbox", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Healthy)
	require.True(t, body.WorkerRunning)
	require.True(t, body.BrokerConnected)
}
