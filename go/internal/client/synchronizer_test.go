package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/kdev47/stakehouse/go/internal/events"
	"github.com/kdev47/stakehouse/go/internal/gateway"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/rounds"
	"github.com/kdev47/stakehouse/go/internal/settle"
)

type fakeFeed struct {
	handler      func(events.Envelope)
	unsubscribed bool
}

func (f *fakeFeed) Subscribe(ctx context.Context, game models.GameType, handler func(events.Envelope)) (func(), error) {
	f.handler = handler
	return func() { f.unsubscribed = true }, nil
}

func (f *fakeFeed) push(t *testing.T, eventType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	f.handler(events.Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
		Payload:   data,
	})
}

type fakeState struct {
	snap *gateway.GameStateResponse
}

func (f *fakeState) GetGameState(ctx context.Context, game models.GameType) (*gateway.GameStateResponse, error) {
	if f.snap == nil {
		return nil, errors.New("no snapshot")
	}
	return f.snap, nil
}

type fakeProfiles struct {
	byID map[uuid.UUID]models.Profile
}

func (f *fakeProfiles) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, errors.New("no such profile")
	}
	return &p, nil
}

type fakeAdjuster struct {
	credits map[string]float64
}

func (f *fakeAdjuster) Adjust(ctx context.Context, userID uuid.UUID, amount float64, key, reason string) error {
	if f.credits == nil {
		f.credits = make(map[string]float64)
	}
	if _, seen := f.credits[key]; seen {
		return nil
	}
	f.credits[key] = amount
	return nil
}

func testSynchronizer(userID uuid.UUID, snap *gateway.GameStateResponse) (*Synchronizer, *fakeFeed, *fakeAdjuster) {
	feed := &fakeFeed{}
	adjuster := &fakeAdjuster{}
	profiles := &fakeProfiles{byID: map[uuid.UUID]models.Profile{
		userID: {ID: userID, Username: "dealer_jane", AvatarURL: "https://cdn/avatars/jane.png"},
	}}
	s := NewSynchronizer(
		models.GameTypeRoulette,
		feed,
		&fakeState{snap: snap},
		profiles,
		settle.NewReconciler(userID, adjuster),
		clockwork.NewFakeClock(),
		zerolog.Nop(),
	)
	return s, feed, adjuster
}

func bettingSnap(roundID uuid.UUID) *gateway.GameStateResponse {
	return &gateway.GameStateResponse{
		GameType: string(models.GameTypeRoulette),
		Round: &models.Round{
			ID:         roundID,
			GameType:   models.GameTypeRoulette,
			Status:     models.RoundStatusBetting,
			ClientSeed: "public",
		},
		ServerTime: time.Now(),
	}
}

func TestStartLoadsSnapshot(t *testing.T) {
	userID := uuid.New()
	roundID := uuid.New()
	snap := bettingSnap(roundID)
	snap.Bets = []models.Bet{{ID: uuid.New(), UserID: userID, RoundID: roundID, Amount: 5}}
	n := 32
	snap.History = []models.HistoryEntry{{WinningNumber: &n}}

	s, feed, _ := testSynchronizer(userID, snap)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := s.CurrentRound(); got == nil || got.ID != roundID {
		t.Fatalf("current round = %v, want %s", got, roundID)
	}
	if got := s.Bets(); len(got) != 1 {
		t.Errorf("ledger holds %d bets, want 1", len(got))
	}
	if got := s.History(); len(got) != 1 || *got[0].WinningNumber != 32 {
		t.Errorf("history = %+v, want [32]", got)
	}
	if feed.handler == nil {
		t.Error("feed subscription never installed")
	}
}

func TestBetEventsProjectIntoLedger(t *testing.T) {
	userID := uuid.New()
	roundID := uuid.New()
	s, feed, _ := testSynchronizer(userID, bettingSnap(roundID))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	bet := models.Bet{ID: uuid.New(), UserID: userID, RoundID: roundID, Amount: 10, Kind: models.BetKindRed}
	feed.push(t, events.TypeBetInsert, events.BetPayload{Bet: bet})

	got := s.Bets()
	if len(got) != 1 {
		t.Fatalf("ledger holds %d bets, want 1", len(got))
	}
	if got[0].Username != "dealer_jane" {
		t.Errorf("bet username = %q, want enrichment from the profile source", got[0].Username)
	}

	feed.push(t, events.TypeBetDelete, events.BetPayload{Bet: models.Bet{ID: bet.ID}})
	if got := s.Bets(); len(got) != 0 {
		t.Errorf("ledger holds %d bets after delete, want 0", len(got))
	}
}

func TestTerminalRoundSettlesOnce(t *testing.T) {
	userID := uuid.New()
	roundID := uuid.New()
	s, feed, adjuster := testSynchronizer(userID, bettingSnap(roundID))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	n := 17
	betID := uuid.New()
	feed.push(t, events.TypeBetInsert, events.BetPayload{Bet: models.Bet{
		ID: betID, UserID: userID, RoundID: roundID, Amount: 10,
		Kind: models.BetKindNumber, Number: &n,
	}})

	terminal := models.Round{
		ID:            roundID,
		GameType:      models.GameTypeRoulette,
		Status:        models.RoundStatusEnded,
		WinningNumber: &n,
	}
	feed.push(t, events.TypeRoundUpdate, events.RoundPayload{Round: terminal})
	feed.push(t, events.TypeRoundUpdate, events.RoundPayload{Round: terminal})

	if len(adjuster.credits) != 1 {
		t.Fatalf("adjuster saw %d credits, want 1", len(adjuster.credits))
	}
	for _, amount := range adjuster.credits {
		if amount != 360 {
			t.Errorf("credited %v, want 360 for a straight hit", amount)
		}
	}
	if got := s.History(); len(got) != 1 || *got[0].WinningNumber != 17 {
		t.Errorf("history = %+v, want the resolved outcome", got)
	}
}

func TestTerminalRefetchAdoptsBackendProfit(t *testing.T) {
	userID := uuid.New()
	roundID := uuid.New()
	snap := bettingSnap(roundID)
	s, feed, adjuster := testSynchronizer(userID, snap)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	n := 17
	betID := uuid.New()
	feed.push(t, events.TypeBetInsert, events.BetPayload{Bet: models.Bet{
		ID: betID, UserID: userID, RoundID: roundID, Amount: 10,
		Kind: models.BetKindNumber, Number: &n,
	}})

	// The store has settled by the time the terminal event arrives: the
	// refetched bet carries a confirmed profit that disagrees with the
	// local 36x recomputation.
	profit := 340.0
	snap.Round.Status = models.RoundStatusEnded
	snap.Round.WinningNumber = &n
	snap.Bets = []models.Bet{{
		ID: betID, UserID: userID, RoundID: roundID, Amount: 10,
		Kind: models.BetKindNumber, Number: &n, Profit: &profit,
	}}
	feed.push(t, events.TypeRoundUpdate, events.RoundPayload{Round: *snap.Round})

	if len(adjuster.credits) != 1 {
		t.Fatalf("adjuster saw %d credits, want 1", len(adjuster.credits))
	}
	for _, amount := range adjuster.credits {
		if amount != 350 {
			t.Errorf("credited %v, want the backend-confirmed 350", amount)
		}
	}
	if got := s.Bets(); len(got) != 1 || got[0].Profit == nil {
		t.Errorf("ledger bets = %+v, want the refetched settled row", got)
	}
}

func TestSuccessorRoundClearsLedger(t *testing.T) {
	userID := uuid.New()
	roundID := uuid.New()
	s, feed, _ := testSynchronizer(userID, bettingSnap(roundID))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	feed.push(t, events.TypeBetInsert, events.BetPayload{Bet: models.Bet{
		ID: uuid.New(), UserID: userID, RoundID: roundID, Amount: 10, Kind: models.BetKindRed,
	}})
	n := 4
	feed.push(t, events.TypeRoundUpdate, events.RoundPayload{Round: models.Round{
		ID: roundID, GameType: models.GameTypeRoulette, Status: models.RoundStatusEnded, WinningNumber: &n,
	}})

	successor := models.Round{
		ID:       uuid.New(),
		GameType: models.GameTypeRoulette,
		Status:   models.RoundStatusBetting,
	}
	feed.push(t, events.TypeRoundInsert, events.RoundPayload{Round: successor})

	if got := s.CurrentRound(); got.ID != successor.ID {
		t.Fatalf("current round = %s, want successor %s", got.ID, successor.ID)
	}
	if got := s.Bets(); len(got) != 0 {
		t.Errorf("ledger holds %d bets after new round, want 0", len(got))
	}
}

func TestJoinedTerminalRoundDoesNotReplaySettlement(t *testing.T) {
	userID := uuid.New()
	roundID := uuid.New()
	n := 17
	snap := bettingSnap(roundID)
	snap.Round.Status = models.RoundStatusEnded
	snap.Round.WinningNumber = &n
	betN := 17
	profit := 350.0
	snap.Bets = []models.Bet{{
		ID: uuid.New(), UserID: userID, RoundID: roundID, Amount: 10,
		Kind: models.BetKindNumber, Number: &betN, Profit: &profit,
	}}

	s, feed, adjuster := testSynchronizer(userID, snap)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A replayed terminal event for the same round must stay a no-op.
	feed.push(t, events.TypeRoundUpdate, events.RoundPayload{Round: *snap.Round})

	if len(adjuster.credits) != 0 {
		t.Errorf("adjuster saw %d credits, want 0 for a round settled before joining", len(adjuster.credits))
	}
}

// feedOutbox hands outbox writes straight to the live feed subscriber,
// standing in for the listener and JetStream hops between them.
type feedOutbox struct {
	feed *fakeFeed
}

func (o *feedOutbox) Insert(_ context.Context, roundID uuid.UUID, gameType, eventType string, payload []byte) error {
	o.feed.handler(events.Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		GameType:  gameType,
		RoundID:   roundID.String(),
		Timestamp: time.Now(),
		Payload:   payload,
	})
	return nil
}

type betStore struct {
	rounds map[uuid.UUID]*models.Round
	bets   map[uuid.UUID]models.Bet
	order  []uuid.UUID
}

func newBetStore() *betStore {
	return &betStore{
		rounds: make(map[uuid.UUID]*models.Round),
		bets:   make(map[uuid.UUID]models.Bet),
	}
}

func (s *betStore) GetRound(_ context.Context, id uuid.UUID) (*models.Round, error) {
	r, ok := s.rounds[id]
	if !ok {
		return nil, rounds.ErrNotFound
	}
	return r, nil
}

func (s *betStore) GetLatestRound(_ context.Context, gameType models.GameType) (*models.Round, error) {
	for _, r := range s.rounds {
		if r.GameType == gameType {
			return r, nil
		}
	}
	return nil, rounds.ErrNotFound
}

func (s *betStore) ListBetsByRound(_ context.Context, roundID uuid.UUID) ([]models.Bet, error) {
	var out []models.Bet
	for _, id := range s.order {
		if b, ok := s.bets[id]; ok && b.RoundID == roundID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *betStore) InsertBet(_ context.Context, req rounds.PlaceBetRequest) (*models.Bet, error) {
	b := models.Bet{
		ID: req.ID, UserID: req.UserID, RoundID: req.RoundID,
		Amount: req.Amount, Kind: req.Kind, Number: req.Number,
		AutoCashoutAt: req.AutoCashoutAt, PlacedAt: time.Now(),
	}
	s.bets[b.ID] = b
	s.order = append(s.order, b.ID)
	return &b, nil
}

func (s *betStore) DeleteLastBet(_ context.Context, userID, roundID uuid.UUID) (*models.Bet, error) {
	for i := len(s.order) - 1; i >= 0; i-- {
		b, ok := s.bets[s.order[i]]
		if ok && b.UserID == userID && b.RoundID == roundID {
			delete(s.bets, b.ID)
			return &b, nil
		}
	}
	return nil, rounds.ErrNotFound
}

func (s *betStore) DeleteUserBets(_ context.Context, userID, roundID uuid.UUID) ([]models.Bet, error) {
	var out []models.Bet
	for _, id := range s.order {
		if b, ok := s.bets[id]; ok && b.UserID == userID && b.RoundID == roundID {
			out = append(out, b)
			delete(s.bets, id)
		}
	}
	return out, nil
}

func (s *betStore) RecordCashout(_ context.Context, betID uuid.UUID, multiplier float64) (*models.Bet, error) {
	b, ok := s.bets[betID]
	if !ok || b.CashoutMultiplier != nil {
		return nil, rounds.ErrNotFound
	}
	b.CashoutMultiplier = &multiplier
	s.bets[betID] = b
	return &b, nil
}

func (s *betStore) SettleBets(context.Context, []rounds.BetSettlement) error { return nil }

// A bet placed by one user must reach every other subscriber's ledger
// through the outbox, without the bettor's client doing anything special.
func TestSpectatorSeesOtherUsersBet(t *testing.T) {
	spectator := uuid.New()
	bettor := uuid.New()
	roundID := uuid.New()
	snap := bettingSnap(roundID)

	s, feed, _ := testSynchronizer(spectator, snap)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	store := newBetStore()
	store.rounds[roundID] = snap.Round
	app := rounds.NewApp(store, &fakeAdjuster{}, &feedOutbox{feed: feed}, zerolog.Nop())

	placed, err := app.PlaceBet(context.Background(), rounds.PlaceBetRequest{
		UserID: bettor, RoundID: roundID, Amount: 15, Kind: models.BetKindBlack,
	})
	if err != nil {
		t.Fatal(err)
	}

	got := s.Bets()
	if len(got) != 1 || got[0].ID != placed.ID {
		t.Fatalf("spectator ledger = %+v, want the other user's bet %s", got, placed.ID)
	}
	if got[0].UserID != bettor {
		t.Errorf("ledger bet user = %s, want %s", got[0].UserID, bettor)
	}

	if _, err := app.UndoLastBet(context.Background(), bettor, roundID); err != nil {
		t.Fatal(err)
	}
	if got := s.Bets(); len(got) != 0 {
		t.Errorf("spectator ledger holds %d bets after undo, want 0", len(got))
	}
}

func TestStopUnsubscribes(t *testing.T) {
	userID := uuid.New()
	s, feed, _ := testSynchronizer(userID, bettingSnap(uuid.New()))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if !feed.unsubscribed {
		t.Error("Stop did not cancel the feed subscription")
	}
}
