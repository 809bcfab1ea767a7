package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kdev47/stakehouse/go/internal/rounds"
)

// StateHandler handles HTTP requests for game state snapshots and round
// verification.
type StateHandler struct {
	provider *StateProvider
}

func NewStateHandler(provider *StateProvider) *StateHandler {
	return &StateHandler{provider: provider}
}

// HandleGetGameState handles GET /api/games/{game}/state
func (h *StateHandler) HandleGetGameState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	gameStr := extractPathSegment(r.URL.Path, "/api/games/", "/state")
	if gameStr == "" {
		http.Error(w, "Game type is required", http.StatusBadRequest)
		return
	}
	game, err := gameTypeOf(gameStr)
	if err != nil {
		http.Error(w, "Unknown game type", http.StatusBadRequest)
		return
	}

	state, err := h.provider.GetGameState(r.Context(), game)
	if err != nil {
		if errors.Is(err, rounds.ErrNotFound) {
			http.Error(w, "No round for game", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("game_type", string(game)).Msg("failed to get game state")
		http.Error(w, "Failed to get game state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode game state response")
	}
}

// HandleVerifyRound handles GET /api/rounds/{id}/verify
func (h *StateHandler) HandleVerifyRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := extractPathSegment(r.URL.Path, "/api/rounds/", "/verify")
	if idStr == "" {
		http.Error(w, "Round ID is required", http.StatusBadRequest)
		return
	}
	roundID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid round ID format", http.StatusBadRequest)
		return
	}

	resp, err := h.provider.VerifyRound(r.Context(), roundID)
	if err != nil {
		if errors.Is(err, rounds.ErrNotFound) {
			http.Error(w, "Round not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("round_id", roundID.String()).Msg("failed to verify round")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode verify response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/games/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/state") {
			h.HandleGetGameState(w, r)
		} else {
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/api/rounds/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/verify") {
			h.HandleVerifyRound(w, r)
		} else {
			http.NotFound(w, r)
		}
	})
}

// extractPathSegment pulls the middle segment out of paths like
// /api/games/{game}/state.
func extractPathSegment(path, prefix, suffix string) string {
	if len(path) <= len(prefix)+len(suffix) {
		return ""
	}
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return ""
	}
	return path[len(prefix) : len(path)-len(suffix)]
}
