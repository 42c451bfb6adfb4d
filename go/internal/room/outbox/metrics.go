package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordQueueDepth(depth int)
	RecordPublishAttempt(eventType string, attempt int, success bool)
	RecordDropped(eventType string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventProcessed(eventType string, success bool, duration time.Duration) {}
func (NoOpMetricsCollector) RecordQueueDepth(depth int)                                                  {}
func (NoOpMetricsCollector) RecordPublishAttempt(eventType string, attempt int, success bool)            {}
func (NoOpMetricsCollector) RecordDropped(eventType string)                                              {}

// MetricPublisher wraps an EventPublisher with metrics collection
type MetricPublisher struct {
	publisher EventPublisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher EventPublisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, event)

	p.metrics.RecordEventProcessed(event.EventType, err == nil, time.Since(start))
	return err
}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	eventCounter    *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	publishAttempts *prometheus.CounterVec
	dropped         *prometheus.CounterVec
}

// NewPrometheusMetrics creates the outbox collectors and registers them with reg
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		eventCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchroom",
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Room events handed to the publisher, by type and status.",
		}, []string{"event_type", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "watchroom",
			Subsystem: "outbox",
			Name:      "publish_duration_seconds",
			Help:      "Time spent publishing one room event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchroom",
			Subsystem: "outbox",
			Name:      "queue_depth",
			Help:      "Room events waiting to be published.",
		}),
		publishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchroom",
			Subsystem: "outbox",
			Name:      "publish_attempts_total",
			Help:      "Publish attempts, by type, attempt number and status.",
		}, []string{"event_type", "attempt", "status"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchroom",
			Subsystem: "outbox",
			Name:      "events_dropped_total",
			Help:      "Room events dropped because the queue was full.",
		}, []string{"event_type"}),
	}

	for _, c := range []prometheus.Collector{m.eventCounter, m.eventDuration, m.queueDepth, m.publishAttempts, m.dropped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	m.eventCounter.WithLabelValues(eventType, status(success)).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *PrometheusMetrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	m.publishAttempts.WithLabelValues(eventType, strconv.Itoa(attempt), status(success)).Inc()
}

func (m *PrometheusMetrics) RecordDropped(eventType string) {
	m.dropped.WithLabelValues(eventType).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
