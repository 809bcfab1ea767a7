package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/round"
	"github.com/kdev47/stakehouse/go/internal/rounds"
)

// BetsHandler exposes the betting operations over HTTP. The round rows stay
// authoritative: every request revalidates the phase against the store, so a
// stale client cannot bet into a locked round.
type BetsHandler struct {
	app   *rounds.App
	clock clockwork.Clock
}

func NewBetsHandler(app *rounds.App) *BetsHandler {
	return &BetsHandler{app: app, clock: clockwork.NewRealClock()}
}

// PlaceBetHTTPRequest is the wire shape for POST /api/bets. The user id
// arrives in the body for now; in production it comes from the session.
type PlaceBetHTTPRequest struct {
	UserID        uuid.UUID      `json:"user_id"`
	RoundID       uuid.UUID      `json:"round_id"`
	Amount        float64        `json:"amount"`
	Kind          models.BetKind `json:"kind"`
	Number        *int           `json:"number,omitempty"`
	AutoCashoutAt *float64       `json:"auto_cashout_at,omitempty"`
}

// HandlePlaceBet handles POST /api/bets
func (h *BetsHandler) HandlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil || req.RoundID == uuid.Nil {
		http.Error(w, "user_id and round_id are required", http.StatusBadRequest)
		return
	}

	bet, err := h.app.PlaceBet(r.Context(), rounds.PlaceBetRequest{
		UserID:        req.UserID,
		RoundID:       req.RoundID,
		Amount:        req.Amount,
		Kind:          req.Kind,
		Number:        req.Number,
		AutoCashoutAt: req.AutoCashoutAt,
	})
	if err != nil {
		writeBetError(w, err, "failed to place bet")
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

type betMutationRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	RoundID uuid.UUID `json:"round_id"`
}

// HandleUndoBet handles POST /api/bets/undo
func (h *BetsHandler) HandleUndoBet(w http.ResponseWriter, r *http.Request) {
	var req betMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	bet, err := h.app.UndoLastBet(r.Context(), req.UserID, req.RoundID)
	if err != nil {
		writeBetError(w, err, "failed to undo bet")
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// HandleClearBets handles POST /api/bets/clear
func (h *BetsHandler) HandleClearBets(w http.ResponseWriter, r *http.Request) {
	var req betMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	bets, err := h.app.ClearBets(r.Context(), req.UserID, req.RoundID)
	if err != nil {
		writeBetError(w, err, "failed to clear bets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": bets})
}

type cashoutRequest struct {
	BetID   uuid.UUID `json:"bet_id"`
	RoundID uuid.UUID `json:"round_id"`
}

// HandleCashout handles POST /api/bets/cashout. The exit multiplier is
// computed server-side from the round's start time, never taken from the
// client: the request only names the bet.
func (h *BetsHandler) HandleCashout(w http.ResponseWriter, r *http.Request) {
	var req cashoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rd, err := h.app.GetRound(r.Context(), req.RoundID)
	if err != nil {
		writeBetError(w, err, "failed to load round for cashout")
		return
	}
	if rd.Status != models.RoundStatusRunning || rd.StartedAt == nil {
		http.Error(w, "Round is not running", http.StatusConflict)
		return
	}
	multiplier := round.CurveAt(h.clock.Now().Sub(*rd.StartedAt).Seconds())

	bet, err := h.app.Cashout(r.Context(), req.BetID, req.RoundID, multiplier)
	if err != nil {
		writeBetError(w, err, "failed to cash out bet")
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// RegisterBetRoutes registers the betting HTTP routes.
func (h *BetsHandler) RegisterBetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/bets", postOnly(h.HandlePlaceBet))
	mux.HandleFunc("/api/bets/undo", postOnly(h.HandleUndoBet))
	mux.HandleFunc("/api/bets/clear", postOnly(h.HandleClearBets))
	mux.HandleFunc("/api/bets/cashout", postOnly(h.HandleCashout))
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func writeBetError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, rounds.ErrBetRejected):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, rounds.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
