package history

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mcdev12/watchroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Reader is the read side of the repository
type Reader interface {
	ListSessions(ctx context.Context, roomID string, limit int32) ([]models.PlaybackSession, error)
	ListEvents(ctx context.Context, roomID string, limit int32) ([]models.RoomEvent, error)
}

// Handler serves the recorded history of one room as JSON
type Handler struct {
	reader Reader
	roomID string
}

func NewHandler(reader Reader, roomID string) *Handler {
	return &Handler{reader: reader, roomID: roomID}
}

// RegisterRoutes registers the history endpoints
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /history/sessions", h.HandleSessions)
	mux.HandleFunc("GET /history/events", h.HandleEvents)
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.reader.ListSessions(r.Context(), h.roomID, listLimit(r))
	if err != nil {
		log.Error().Err(err).Msg("failed to list sessions")
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []models.PlaybackSession{}
	}
	writeJSON(w, sessions)
}

func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.reader.ListEvents(r.Context(), h.roomID, listLimit(r))
	if err != nil {
		log.Error().Err(err).Msg("failed to list events")
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.RoomEvent{}
	}
	writeJSON(w, list)
}

func listLimit(r *http.Request) int32 {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return int32(n)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write history response")
	}
}
