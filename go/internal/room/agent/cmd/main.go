package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/watchroom/go/internal/room/agent"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/mcdev12/watchroom/go/internal/room/gateway"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// roomSender lets the agent exist before the connection does. The room greets
// a participant as soon as it connects.
type roomSender struct {
	client atomic.Pointer[gateway.Client]
}

func (s *roomSender) Send(msg events.Message) error {
	c := s.client.Load()
	if c == nil {
		return gateway.ErrClientClosed
	}
	return c.Send(msg)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roomURL := getEnv("ROOM_URL", "ws://localhost:8080/ws/room")
	duration := getEnvAsFloat("PARTICIPANT_DURATION", 600)

	clock := clockwork.NewRealClock()
	renderer := agent.NewSimulatedRenderer(clock, duration)
	sender := &roomSender{}
	a := agent.New(agent.DefaultConfig(), renderer, sender, clock)
	renderer.OnMessage(a.HandleRendererMessage)

	client, err := gateway.Dial(ctx, roomURL, a.HandleMessage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to join room")
	}
	sender.client.Store(client)
	defer client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-client.Done():
			if err := client.Err(); err != nil {
				log.Error().Err(err).Msg("left room")
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	go renderer.Run(ctx, 100*time.Millisecond)

	log.Info().Str("room_url", roomURL).Float64("duration", duration).Msg("participant running")
	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("agent stopped")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}
