package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/kdev47/stakehouse/go/internal/games"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/round"
	"github.com/kdev47/stakehouse/go/internal/rounds"
)

type fakeBetRepo struct {
	rounds map[uuid.UUID]*models.Round
	bets   map[uuid.UUID]models.Bet
	order  []uuid.UUID
}

func newFakeBetRepo() *fakeBetRepo {
	return &fakeBetRepo{
		rounds: make(map[uuid.UUID]*models.Round),
		bets:   make(map[uuid.UUID]models.Bet),
	}
}

func (f *fakeBetRepo) GetRound(_ context.Context, id uuid.UUID) (*models.Round, error) {
	r, ok := f.rounds[id]
	if !ok {
		return nil, rounds.ErrNotFound
	}
	return r, nil
}

func (f *fakeBetRepo) GetLatestRound(_ context.Context, gameType models.GameType) (*models.Round, error) {
	for _, r := range f.rounds {
		if r.GameType == gameType {
			return r, nil
		}
	}
	return nil, rounds.ErrNotFound
}

func (f *fakeBetRepo) ListBetsByRound(_ context.Context, roundID uuid.UUID) ([]models.Bet, error) {
	var out []models.Bet
	for _, id := range f.order {
		if b, ok := f.bets[id]; ok && b.RoundID == roundID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBetRepo) InsertBet(_ context.Context, req rounds.PlaceBetRequest) (*models.Bet, error) {
	b := models.Bet{
		ID: req.ID, UserID: req.UserID, RoundID: req.RoundID,
		Amount: req.Amount, Kind: req.Kind, Number: req.Number,
		AutoCashoutAt: req.AutoCashoutAt, PlacedAt: time.Now(),
	}
	f.bets[b.ID] = b
	f.order = append(f.order, b.ID)
	return &b, nil
}

func (f *fakeBetRepo) DeleteLastBet(_ context.Context, userID, roundID uuid.UUID) (*models.Bet, error) {
	for i := len(f.order) - 1; i >= 0; i-- {
		b, ok := f.bets[f.order[i]]
		if ok && b.UserID == userID && b.RoundID == roundID {
			delete(f.bets, b.ID)
			return &b, nil
		}
	}
	return nil, rounds.ErrNotFound
}

func (f *fakeBetRepo) DeleteUserBets(_ context.Context, userID, roundID uuid.UUID) ([]models.Bet, error) {
	var out []models.Bet
	for _, id := range f.order {
		b, ok := f.bets[id]
		if ok && b.UserID == userID && b.RoundID == roundID {
			out = append(out, b)
			delete(f.bets, id)
		}
	}
	return out, nil
}

func (f *fakeBetRepo) RecordCashout(_ context.Context, betID uuid.UUID, multiplier float64) (*models.Bet, error) {
	b, ok := f.bets[betID]
	if !ok || b.CashoutMultiplier != nil || b.Profit != nil {
		return nil, rounds.ErrNotFound
	}
	b.CashoutMultiplier = &multiplier
	f.bets[betID] = b
	return &b, nil
}

func (f *fakeBetRepo) SettleBets(_ context.Context, settlements []rounds.BetSettlement) error {
	for _, s := range settlements {
		b, ok := f.bets[s.BetID]
		if !ok || b.Profit != nil {
			continue
		}
		profit := s.Profit
		b.Profit = &profit
		f.bets[s.BetID] = b
	}
	return nil
}

type fakeWallet struct {
	balance float64
	calls   map[string]float64
}

func newFakeWallet(balance float64) *fakeWallet {
	return &fakeWallet{balance: balance, calls: make(map[string]float64)}
}

func (w *fakeWallet) Adjust(_ context.Context, _ uuid.UUID, amount float64, key, _ string) error {
	if _, done := w.calls[key]; done {
		return nil
	}
	if w.balance+amount < 0 {
		return fmt.Errorf("insufficient balance")
	}
	w.calls[key] = amount
	w.balance += amount
	return nil
}

type nopOutbox struct{}

func (nopOutbox) Insert(context.Context, uuid.UUID, string, string, []byte) error { return nil }

type fakeSeeds struct {
	nonce int64
}

func (f *fakeSeeds) NextSeedTuple(context.Context, uuid.UUID) (string, string, int64, error) {
	n := f.nonce
	f.nonce++
	return "house-seed", "player-seed", n, nil
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPlaceBetEndpoint(t *testing.T) {
	repo := newFakeBetRepo()
	roundID := uuid.New()
	repo.rounds[roundID] = &models.Round{
		ID: roundID, GameType: models.GameTypeRoulette,
		Status: models.RoundStatusBetting, CreatedAt: time.Now(),
	}
	app := rounds.NewApp(repo, newFakeWallet(100), nopOutbox{}, zerolog.Nop())

	mux := http.NewServeMux()
	NewBetsHandler(app).RegisterBetRoutes(mux)

	rec := postJSON(t, mux, "/api/bets", PlaceBetHTTPRequest{
		UserID:  uuid.New(),
		RoundID: roundID,
		Amount:  25,
		Kind:    models.BetKindRed,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place bet status = %d, body %s", rec.Code, rec.Body.String())
	}
	var bet models.Bet
	if err := json.Unmarshal(rec.Body.Bytes(), &bet); err != nil {
		t.Fatalf("decode bet: %v", err)
	}
	if bet.Amount != 25 || bet.Kind != models.BetKindRed {
		t.Errorf("bet = %+v, want amount 25 kind RED", bet)
	}

	repo.rounds[roundID].Status = models.RoundStatusSpinning
	rec = postJSON(t, mux, "/api/bets", PlaceBetHTTPRequest{
		UserID:  uuid.New(),
		RoundID: roundID,
		Amount:  25,
		Kind:    models.BetKindRed,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bet into locked round status = %d, want 422", rec.Code)
	}
}

func TestCashoutUsesServerMultiplier(t *testing.T) {
	repo := newFakeBetRepo()
	fc := clockwork.NewFakeClock()
	startedAt := fc.Now().Add(-10 * time.Second)
	roundID := uuid.New()
	repo.rounds[roundID] = &models.Round{
		ID: roundID, GameType: models.GameTypeCrash,
		Status: models.RoundStatusRunning, StartedAt: &startedAt,
	}
	app := rounds.NewApp(repo, newFakeWallet(100), nopOutbox{}, zerolog.Nop())
	bet, err := repo.InsertBet(context.Background(), rounds.PlaceBetRequest{
		ID: uuid.New(), UserID: uuid.New(), RoundID: roundID, Amount: 10,
	})
	if err != nil {
		t.Fatalf("insert bet: %v", err)
	}

	handler := &BetsHandler{app: app, clock: fc}
	mux := http.NewServeMux()
	handler.RegisterBetRoutes(mux)

	rec := postJSON(t, mux, "/api/bets/cashout", cashoutRequest{BetID: bet.ID, RoundID: roundID})
	if rec.Code != http.StatusOK {
		t.Fatalf("cashout status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out models.Bet
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode bet: %v", err)
	}
	want := round.CurveAt(10)
	if out.CashoutMultiplier == nil || math.Abs(*out.CashoutMultiplier-want) > 1e-9 {
		t.Errorf("cashout multiplier = %v, want %v", out.CashoutMultiplier, want)
	}

	// Second cashout on the same bet is refused.
	rec = postJSON(t, mux, "/api/bets/cashout", cashoutRequest{BetID: bet.ID, RoundID: roundID})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("repeat cashout status = %d, want 422", rec.Code)
	}
}

func TestDiceEndpoint(t *testing.T) {
	wallet := newFakeWallet(100)
	service := games.NewService(wallet, &fakeSeeds{}, zerolog.Nop())
	mux := http.NewServeMux()
	NewGamesHandler(service).RegisterGameRoutes(mux)

	rec := postJSON(t, mux, "/api/play/dice", diceRequest{
		UserID: uuid.New(), Stake: 10, Target: 50, Direction: "over",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("dice status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res games.DiceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode dice result: %v", err)
	}
	if res.Result.Won && math.Abs(res.Payout-10*res.Result.Multiplier) > 1e-9 {
		t.Errorf("payout = %v, want stake x multiplier %v", res.Payout, 10*res.Result.Multiplier)
	}
	if !res.Result.Won && res.Payout != 0 {
		t.Errorf("losing roll paid %v", res.Payout)
	}

	rec = postJSON(t, mux, "/api/play/dice", diceRequest{
		UserID: uuid.New(), Stake: 10, Target: 50, Direction: "sideways",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", rec.Code)
	}
}

func TestBlackjackViewHidesHoleCard(t *testing.T) {
	service := games.NewService(newFakeWallet(100), &fakeSeeds{}, zerolog.Nop())
	mux := http.NewServeMux()
	NewGamesHandler(service).RegisterGameRoutes(mux)

	rec := postJSON(t, mux, "/api/play/blackjack", blackjackDealRequest{
		UserID: uuid.New(), Stake: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("deal status = %d, body %s", rec.Code, rec.Body.String())
	}
	var view BlackjackView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode hand: %v", err)
	}
	if len(view.Player) != 2 {
		t.Fatalf("player cards = %d, want 2", len(view.Player))
	}
	if view.Phase == "PLAYER_TURN" {
		if len(view.Dealer) != 1 || view.DealerValue != nil {
			t.Errorf("live hand exposes dealer hole card: %+v", view)
		}
	} else {
		if len(view.Dealer) != 2 || view.Result == nil {
			t.Errorf("finished hand missing dealer cards or result: %+v", view)
		}
	}
}

func TestMinesRevealFlow(t *testing.T) {
	service := games.NewService(newFakeWallet(100), &fakeSeeds{}, zerolog.Nop())
	mux := http.NewServeMux()
	NewGamesHandler(service).RegisterGameRoutes(mux)

	rec := postJSON(t, mux, "/api/play/mines", minesStartRequest{
		UserID: uuid.New(), Stake: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mines start status = %d, body %s", rec.Code, rec.Body.String())
	}
	var started struct {
		SessionID uuid.UUID `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	rec = postJSON(t, mux, "/api/play/mines/reveal", minesMoveRequest{
		SessionID: started.SessionID, Cell: 0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reveal status = %d, body %s", rec.Code, rec.Body.String())
	}
	var view MinesView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if view.State == "ACTIVE" && view.Mines != nil {
		t.Errorf("live board exposes mine positions: %+v", view)
	}

	rec = postJSON(t, mux, "/api/play/mines/reveal", minesMoveRequest{
		SessionID: uuid.New(), Cell: 0,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}
