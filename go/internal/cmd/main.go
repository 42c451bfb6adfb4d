package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("watchroom host failed")
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if getEnv("LOG_FORMAT", "console") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig(getEnv("WATCHROOM_CONFIG", ""))
	if err != nil {
		return err
	}
	env := loadServerConfig()

	var database *sql.DB
	if env.HistoryEnabled {
		database, err = setupDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()
	}

	services, err := setupServices(cfg, env, database)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close services")
		}
	}()

	// The outbox outlives the room so the last events still go out; Stop drains it.
	if err := services.Outbox.Start(context.Background()); err != nil {
		return err
	}

	roomCtx, stopRoom := context.WithCancel(ctx)
	defer stopRoom()
	roomDone := make(chan error, 1)
	go func() { roomDone <- services.Gateway.Start(roomCtx) }()

	server := setupServer(services, env)
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("room_id", env.RoomID).Msg("watchroom host listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		log.Error().Err(err).Msg("http server failed")
	}

	stopRoom()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout())
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("http server shutdown")
	}

	select {
	case <-roomDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("room did not stop before the shutdown timeout")
	}

	if stopErr := services.Outbox.Stop(); stopErr != nil {
		log.Warn().Err(stopErr).Msg("outbox stop")
	}
	return err
}
