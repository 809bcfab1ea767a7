package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kdev47/stakehouse/go/internal/games"
	"github.com/kdev47/stakehouse/go/internal/games/blackjack"
	"github.com/kdev47/stakehouse/go/internal/games/dice"
	"github.com/kdev47/stakehouse/go/internal/games/keno"
	"github.com/kdev47/stakehouse/go/internal/games/mines"
	"github.com/kdev47/stakehouse/go/internal/games/plinko"
)

// GamesHandler exposes the single-pass games over HTTP. Outcomes resolve and
// settle server-side; responses only describe what already happened to the
// wallet.
type GamesHandler struct {
	service *games.Service
}

func NewGamesHandler(service *games.Service) *GamesHandler {
	return &GamesHandler{service: service}
}

type diceRequest struct {
	UserID    uuid.UUID `json:"user_id"`
	Stake     float64   `json:"stake"`
	Target    int       `json:"target"`
	Direction string    `json:"direction"`
}

// HandleDice handles POST /api/play/dice
func (h *GamesHandler) HandleDice(w http.ResponseWriter, r *http.Request) {
	var req diceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dir := dice.Direction(strings.ToUpper(req.Direction))
	if dir != dice.Over && dir != dice.Under {
		http.Error(w, "direction must be over or under", http.StatusBadRequest)
		return
	}
	res, err := h.service.PlayDice(r.Context(), req.UserID, req.Stake, req.Target, dir)
	if err != nil {
		writeGameError(w, err, "dice play failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type plinkoRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Stake  float64   `json:"stake"`
	Risk   string    `json:"risk"`
	Rows   int       `json:"rows"`
}

// HandlePlinko handles POST /api/play/plinko
func (h *GamesHandler) HandlePlinko(w http.ResponseWriter, r *http.Request) {
	var req plinkoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.DropBall(r.Context(), req.UserID, req.Stake, plinko.Risk(strings.ToUpper(req.Risk)), req.Rows)
	if err != nil {
		writeGameError(w, err, "plinko drop failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type kenoRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Stake  float64   `json:"stake"`
	Risk   string    `json:"risk"`
	Picks  []int     `json:"picks"`
}

// HandleKeno handles POST /api/play/keno
func (h *GamesHandler) HandleKeno(w http.ResponseWriter, r *http.Request) {
	var req kenoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.PlayKeno(r.Context(), req.UserID, req.Stake, keno.Risk(strings.ToUpper(req.Risk)), req.Picks)
	if err != nil {
		writeGameError(w, err, "keno play failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type blackjackDealRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Stake  float64   `json:"stake"`
}

type blackjackActionRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	Action    string    `json:"action"`
}

// BlackjackView is the client-visible hand. The dealer's hole card stays
// hidden until the hand finishes.
type BlackjackView struct {
	SessionID   uuid.UUID         `json:"session_id"`
	Phase       blackjack.Phase   `json:"phase"`
	Player      []blackjack.Card  `json:"player"`
	PlayerValue int               `json:"player_value"`
	Dealer      []blackjack.Card  `json:"dealer"`
	DealerValue *int              `json:"dealer_value,omitempty"`
	Result      *blackjack.Result `json:"result,omitempty"`
}

func blackjackView(id uuid.UUID, hand *blackjack.Hand) BlackjackView {
	v := BlackjackView{
		SessionID:   id,
		Phase:       hand.CurrentPhase(),
		Player:      hand.Player(),
		PlayerValue: blackjack.HandValue(hand.Player()),
	}
	if hand.CurrentPhase() == blackjack.PhaseFinished {
		v.Dealer = hand.Dealer()
		dv := blackjack.HandValue(hand.Dealer())
		v.DealerValue = &dv
		if res, err := hand.Result(); err == nil {
			v.Result = &res
		}
	} else {
		v.Dealer = hand.Dealer()[:1]
	}
	return v
}

// HandleBlackjackDeal handles POST /api/play/blackjack
func (h *GamesHandler) HandleBlackjackDeal(w http.ResponseWriter, r *http.Request) {
	var req blackjackDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, hand, err := h.service.DealBlackjack(r.Context(), req.UserID, req.Stake)
	if err != nil {
		writeGameError(w, err, "blackjack deal failed")
		return
	}
	writeJSON(w, http.StatusCreated, blackjackView(id, hand))
}

// HandleBlackjackAction handles POST /api/play/blackjack/action
func (h *GamesHandler) HandleBlackjackAction(w http.ResponseWriter, r *http.Request) {
	var req blackjackActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	hand, err := h.service.BlackjackAction(r.Context(), req.SessionID, req.Action)
	if err != nil {
		writeGameError(w, err, "blackjack action failed")
		return
	}
	writeJSON(w, http.StatusOK, blackjackView(req.SessionID, hand))
}

type minesStartRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Stake  float64   `json:"stake"`
}

type minesMoveRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	Cell      int       `json:"cell"`
}

// MinesView is the client-visible board. Mine positions appear only once the
// game is over.
type MinesView struct {
	SessionID  uuid.UUID   `json:"session_id"`
	State      mines.State `json:"state"`
	Revealed   []int       `json:"revealed"`
	Multiplier float64     `json:"multiplier"`
	Payout     float64     `json:"payout"`
	Mines      []int       `json:"mines,omitempty"`
}

func minesView(id uuid.UUID, g *mines.Game) MinesView {
	v := MinesView{
		SessionID:  id,
		State:      g.CurrentState(),
		Revealed:   g.Revealed(),
		Multiplier: g.Multiplier(),
		Payout:     g.Payout(),
	}
	if cells, over := g.Mines(); over {
		v.Mines = cells
	}
	return v
}

// HandleMinesStart handles POST /api/play/mines
func (h *GamesHandler) HandleMinesStart(w http.ResponseWriter, r *http.Request) {
	var req minesStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.service.StartMines(r.Context(), req.UserID, req.Stake)
	if err != nil {
		writeGameError(w, err, "mines start failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": id})
}

// HandleMinesReveal handles POST /api/play/mines/reveal
func (h *GamesHandler) HandleMinesReveal(w http.ResponseWriter, r *http.Request) {
	var req minesMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	game, err := h.service.RevealMine(r.Context(), req.SessionID, req.Cell)
	if err != nil {
		writeGameError(w, err, "mines reveal failed")
		return
	}
	writeJSON(w, http.StatusOK, minesView(req.SessionID, game))
}

// HandleMinesCashout handles POST /api/play/mines/cashout
func (h *GamesHandler) HandleMinesCashout(w http.ResponseWriter, r *http.Request) {
	var req minesMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payout, err := h.service.CashoutMines(r.Context(), req.SessionID)
	if err != nil {
		writeGameError(w, err, "mines cashout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": req.SessionID, "payout": payout})
}

// RegisterGameRoutes registers the single-pass game HTTP routes.
func (h *GamesHandler) RegisterGameRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/play/dice", postOnly(h.HandleDice))
	mux.HandleFunc("/api/play/plinko", postOnly(h.HandlePlinko))
	mux.HandleFunc("/api/play/keno", postOnly(h.HandleKeno))
	mux.HandleFunc("/api/play/blackjack", postOnly(h.HandleBlackjackDeal))
	mux.HandleFunc("/api/play/blackjack/action", postOnly(h.HandleBlackjackAction))
	mux.HandleFunc("/api/play/mines", postOnly(h.HandleMinesStart))
	mux.HandleFunc("/api/play/mines/reveal", postOnly(h.HandleMinesReveal))
	mux.HandleFunc("/api/play/mines/cashout", postOnly(h.HandleMinesCashout))
}

func writeGameError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, games.ErrNoSuchSession):
		http.Error(w, "No such game session", http.StatusNotFound)
	case errors.Is(err, blackjack.ErrNotPlayerTurn),
		errors.Is(err, blackjack.ErrCannotDouble),
		errors.Is(err, mines.ErrGameOver),
		errors.Is(err, mines.ErrCellRevealed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Error().Err(err).Msg(msg)
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
