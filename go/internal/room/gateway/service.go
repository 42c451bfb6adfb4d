package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/watchroom/go/internal/room/coordinator"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/rs/zerolog/log"
)

// Service is the room gateway: it relays participant connections to the
// coordinator runner and serves the control API
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	control           *ControlService
	runner            *coordinator.Runner
}

// NewService wires cm to runner. cm must be the coordinator's broadcaster.
func NewService(cm *ConnectionManager, runner *coordinator.Runner) *Service {
	s := &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		control:           NewControlService(runner),
		runner:            runner,
	}

	cm.SetHooks(Hooks{
		OnJoin: func(connID string) {
			s.submit("join", connID, func(c *coordinator.Coordinator) { c.HandleJoin(connID) })
		},
		OnLeave: func(connID string) {
			s.submit("leave", connID, func(c *coordinator.Coordinator) { c.HandleLeave(connID) })
		},
		OnMessage: func(connID string, msg events.Message) {
			s.submit(string(msg.Type), connID, func(c *coordinator.Coordinator) { c.HandleClientMessage(connID, msg) })
		},
	})
	return s
}

func (s *Service) submit(what, connID string, fn func(*coordinator.Coordinator)) {
	if err := s.runner.Submit(context.Background(), fn); err != nil {
		log.Warn().Err(err).Str("connection_id", connID).Str("event", what).Msg("room is not accepting work")
	}
}

// Start runs the connection manager and the coordinator until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway service")

	go s.connectionManager.Start(ctx)

	err := s.runner.Run(ctx)

	log.Info().Msg("room gateway service stopped")
	return err
}

// RegisterRoutes registers the WebSocket and control API routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)

	path, handler := NewControlServiceHandler(s.control)
	mux.Handle(path, handler)

	log.Info().Str("control_path", path).Msg("room gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
