package main

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/watchroom/go/clients/media_info_client"
	"github.com/mcdev12/watchroom/go/internal/netclock"
	"github.com/mcdev12/watchroom/go/internal/room/coordinator"
	"github.com/mcdev12/watchroom/go/internal/room/gateway"
	"github.com/mcdev12/watchroom/go/internal/room/history"
	"github.com/mcdev12/watchroom/go/internal/room/metrics"
	"github.com/mcdev12/watchroom/go/internal/room/outbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Gateway      *gateway.Service
	Outbox       *outbox.Worker
	OutboxHealth *outbox.HealthChecker
	History      *history.Handler // nil unless history is enabled
	Registry     *prometheus.Registry

	broker *outbox.JetStreamPublisher
}

func setupServices(cfg *Config, env ServerConfig, database *sql.DB) (*Services, error) {
	// Wire up dependency injection chain
	// Connections → Publishers → Outbox → Coordinator → Runner → Gateway
	clock := clockwork.NewRealClock()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	roomMetrics, err := metrics.NewRoomMetrics(registry)
	if err != nil {
		return nil, err
	}
	outboxMetrics, err := outbox.NewPrometheusMetrics(registry)
	if err != nil {
		return nil, err
	}

	// Publishers
	publishers := []outbox.EventPublisher{outbox.NewLogPublisher()}

	var broker *outbox.JetStreamPublisher
	if env.NATSURL != "" {
		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.URL = env.NATSURL
		broker, err = outbox.NewJetStreamPublisher(jsCfg)
		if err != nil {
			// The room works without a broker, events still reach the log and history
			log.Warn().Err(err).Str("url", env.NATSURL).Msg("NATS unavailable, room events will not be streamed")
			broker = nil
		} else {
			publishers = append(publishers, broker)
		}
	}

	var historyHandler *history.Handler
	if database != nil {
		repo := history.NewRepository(database)
		publishers = append(publishers, repo)
		historyHandler = history.NewHandler(repo, env.RoomID)
	}

	publisher := outbox.NewMetricPublisher(outbox.NewMultiPublisher(publishers...), outboxMetrics)
	worker := outbox.NewWorker(publisher, cfg.outboxConfig(env.RoomID), outboxMetrics, clock)

	var brokerConn outbox.BrokerConn
	if broker != nil {
		brokerConn = broker
	}
	var pinger outbox.Pinger
	if database != nil {
		pinger = database
	}
	health := outbox.NewHealthChecker(worker, brokerConn, pinger, clock, 5*time.Minute)

	// Room
	cm := gateway.NewConnectionManager(cfg.connectionConfig())
	coord, err := coordinator.New(cfg.Room, coordinator.Dependencies{
		Clock:       netclock.NewServer(clock),
		Broadcaster: cm,
		Fetcher:     media_info_client.NewMediaInfoClient(env.MediaInfoURL, env.MediaInfoAPIKey),
		Recorder:    worker,
		Metrics:     roomMetrics,
	})
	if err != nil {
		return nil, err
	}
	runner := coordinator.NewRunner(coord, clock)

	return &Services{
		Gateway:      gateway.NewService(cm, runner),
		Outbox:       worker,
		OutboxHealth: health,
		History:      historyHandler,
		Registry:     registry,
		broker:       broker,
	}, nil
}

// Close releases the broker connection
func (s *Services) Close() error {
	var errs []error
	if s.broker != nil {
		errs = append(errs, s.broker.Close())
	}
	return errors.Join(errs...)
}
