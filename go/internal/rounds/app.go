package rounds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kdev47/stakehouse/go/internal/events"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/settle"
)

// ErrBetRejected is the sentinel for every bet validation failure. Callers
// branch on it; the wrapped message carries the reason.
var ErrBetRejected = errors.New("rounds: bet rejected")

// Wallet is the atomic balance adjustment procedure.
type Wallet interface {
	Adjust(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey, reason string) error
}

// Outbox records change events alongside row mutations for the realtime feed.
type Outbox interface {
	Insert(ctx context.Context, roundID uuid.UUID, gameType, eventType string, payload []byte) error
}

// BetRepository defines what the app layer needs from the repository.
type BetRepository interface {
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetLatestRound(ctx context.Context, gameType models.GameType) (*models.Round, error)
	ListBetsByRound(ctx context.Context, roundID uuid.UUID) ([]models.Bet, error)
	InsertBet(ctx context.Context, req PlaceBetRequest) (*models.Bet, error)
	DeleteLastBet(ctx context.Context, userID, roundID uuid.UUID) (*models.Bet, error)
	DeleteUserBets(ctx context.Context, userID, roundID uuid.UUID) ([]models.Bet, error)
	RecordCashout(ctx context.Context, betID uuid.UUID, multiplier float64) (*models.Bet, error)
	SettleBets(ctx context.Context, settlements []BetSettlement) error
}

// App handles betting business logic against the authoritative store.
type App struct {
	repo   BetRepository
	wallet Wallet
	outbox Outbox
	logger zerolog.Logger
}

func NewApp(repo BetRepository, wallet Wallet, outbox Outbox, logger zerolog.Logger) *App {
	return &App{
		repo:   repo,
		wallet: wallet,
		outbox: outbox,
		logger: logger.With().Str("component", "rounds").Logger(),
	}
}

// GetLatestRound returns the current round for a game.
func (a *App) GetLatestRound(ctx context.Context, gameType models.GameType) (*models.Round, error) {
	return a.repo.GetLatestRound(ctx, gameType)
}

// GetRound returns one round by id.
func (a *App) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return a.repo.GetRound(ctx, id)
}

// ListBets returns every bet in a round.
func (a *App) ListBets(ctx context.Context, roundID uuid.UUID) ([]models.Bet, error) {
	return a.repo.ListBetsByRound(ctx, roundID)
}

// PlaceBet validates the wager, debits the stake and inserts the bet. The
// debit is the balance check: the wallet rejects an overdraft atomically.
func (a *App) PlaceBet(ctx context.Context, req PlaceBetRequest) (*models.Bet, error) {
	if err := a.validateBet(req); err != nil {
		return nil, err
	}
	round, err := a.repo.GetRound(ctx, req.RoundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load round for bet: %w", err)
	}
	if !round.Status.Accepting() {
		return nil, fmt.Errorf("%w: round %s is %s, not accepting bets", ErrBetRejected, round.ID, round.Status)
	}

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	key := fmt.Sprintf("stake:%s", req.ID)
	if err := a.wallet.Adjust(ctx, req.UserID, -req.Amount, key, "bet stake"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBetRejected, err)
	}

	bet, err := a.repo.InsertBet(ctx, req)
	if err != nil {
		// The stake is already taken; refund under a paired key rather
		// than leave the debit orphaned.
		refundKey := "refund:" + key
		if rerr := a.wallet.Adjust(ctx, req.UserID, req.Amount, refundKey, "bet insert failed"); rerr != nil {
			a.logger.Error().Err(rerr).Str("key", refundKey).Msg("refund after failed insert also failed")
		}
		return nil, fmt.Errorf("failed to insert bet: %w", err)
	}
	a.emitBet(ctx, bet, round.GameType, events.TypeBetInsert)
	return bet, nil
}

// emitBet writes a bet change event to the outbox. Emit failures are logged,
// not returned: the row mutation is the truth and the terminal bet refetch
// covers a lost event.
func (a *App) emitBet(ctx context.Context, b *models.Bet, gameType models.GameType, eventType string) {
	payload, err := json.Marshal(events.BetPayload{Bet: *b})
	if err != nil {
		a.logger.Error().Err(err).Str("bet_id", b.ID.String()).Msg("failed to marshal bet payload")
		return
	}
	if err := a.outbox.Insert(ctx, b.RoundID, string(gameType), eventType, payload); err != nil {
		a.logger.Error().Err(err).Str("bet_id", b.ID.String()).Str("event_type", eventType).Msg("failed to emit bet event")
	}
}

func (a *App) validateBet(req PlaceBetRequest) error {
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %v", ErrBetRejected, req.Amount)
	}
	switch req.Kind {
	case models.BetKindNumber:
		if req.Number == nil || *req.Number < 0 || *req.Number > 36 {
			return fmt.Errorf("%w: straight bet needs a number in [0, 36]", ErrBetRejected)
		}
	case models.BetKindRed, models.BetKindBlack, models.BetKindEven, models.BetKindOdd,
		models.BetKindLow, models.BetKindHigh,
		models.BetKindDozen1, models.BetKindDozen2, models.BetKindDozen3,
		models.BetKindCol1, models.BetKindCol2, models.BetKindCol3:
		if req.Number != nil {
			return fmt.Errorf("%w: %s bet does not take a number", ErrBetRejected, req.Kind)
		}
	case "":
		// Crash bets carry no roulette kind.
		if req.AutoCashoutAt != nil && *req.AutoCashoutAt <= 1.0 {
			return fmt.Errorf("%w: auto cashout must exceed 1.00", ErrBetRejected)
		}
	default:
		return fmt.Errorf("%w: unknown bet kind %q", ErrBetRejected, req.Kind)
	}
	return nil
}

// UndoLastBet removes the user's most recent bet in the round and refunds
// the stake. Only allowed while the round accepts bets.
func (a *App) UndoLastBet(ctx context.Context, userID, roundID uuid.UUID) (*models.Bet, error) {
	round, err := a.requireAccepting(ctx, roundID)
	if err != nil {
		return nil, err
	}
	bet, err := a.repo.DeleteLastBet(ctx, userID, roundID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("undo:%s", bet.ID)
	if err := a.wallet.Adjust(ctx, userID, bet.Amount, key, "bet undone"); err != nil {
		return nil, fmt.Errorf("failed to refund undone bet: %w", err)
	}
	a.emitBet(ctx, bet, round.GameType, events.TypeBetDelete)
	return bet, nil
}

// ClearBets removes all of the user's bets in the round and refunds each
// stake. Only allowed while the round accepts bets.
func (a *App) ClearBets(ctx context.Context, userID, roundID uuid.UUID) ([]models.Bet, error) {
	round, err := a.requireAccepting(ctx, roundID)
	if err != nil {
		return nil, err
	}
	bets, err := a.repo.DeleteUserBets(ctx, userID, roundID)
	if err != nil {
		return nil, err
	}
	for _, b := range bets {
		key := fmt.Sprintf("undo:%s", b.ID)
		if err := a.wallet.Adjust(ctx, userID, b.Amount, key, "bets cleared"); err != nil {
			return nil, fmt.Errorf("failed to refund cleared bet %s: %w", b.ID, err)
		}
		a.emitBet(ctx, &b, round.GameType, events.TypeBetDelete)
	}
	return bets, nil
}

func (a *App) requireAccepting(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	round, err := a.repo.GetRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load round: %w", err)
	}
	if !round.Status.Accepting() {
		return nil, fmt.Errorf("%w: round %s is %s, bets are locked", ErrBetRejected, round.ID, round.Status)
	}
	return round, nil
}

// Cashout records a crash bet's exit multiplier. Only valid while the round
// is running; the settlement at crash pays it out.
func (a *App) Cashout(ctx context.Context, betID, roundID uuid.UUID, multiplier float64) (*models.Bet, error) {
	round, err := a.repo.GetRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load round: %w", err)
	}
	if round.Status != models.RoundStatusRunning {
		return nil, fmt.Errorf("%w: round %s is %s, cashout closed", ErrBetRejected, round.ID, round.Status)
	}
	if multiplier < 1.0 {
		return nil, fmt.Errorf("%w: cashout multiplier %v below 1.00", ErrBetRejected, multiplier)
	}
	bet, err := a.repo.RecordCashout(ctx, betID, multiplier)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: bet already cashed out or settled", ErrBetRejected)
	}
	if err != nil {
		return nil, err
	}
	a.emitBet(ctx, bet, round.GameType, events.TypeBetUpdate)
	return bet, nil
}

// SettleRound computes every bet's profit for a terminal round, writes them
// in one batch and credits winning stakes through the wallet. Replays are
// no-ops end to end: the profit guard skips written rows and the wallet
// skips repeated keys.
func (a *App) SettleRound(ctx context.Context, round *models.Round) error {
	if !round.Status.IsTerminal() {
		return fmt.Errorf("rounds: cannot settle round %s in phase %s", round.ID, round.Status)
	}
	bets, err := a.repo.ListBetsByRound(ctx, round.ID)
	if err != nil {
		return fmt.Errorf("failed to list bets for settlement: %w", err)
	}

	settlements := make([]BetSettlement, 0, len(bets))
	payouts := make(map[uuid.UUID]float64, len(bets))
	for _, b := range bets {
		if b.Settled() {
			continue
		}
		payout, err := a.betPayout(round, b)
		if err != nil {
			return err
		}
		settlements = append(settlements, BetSettlement{BetID: b.ID, Profit: payout - b.Amount})
		payouts[b.ID] = payout
	}
	if err := a.repo.SettleBets(ctx, settlements); err != nil {
		return err
	}

	for _, b := range bets {
		payout, pending := payouts[b.ID]
		if !pending || payout <= 0 {
			continue
		}
		key := fmt.Sprintf("settle:%s:%s", round.ID, b.ID)
		if err := a.wallet.Adjust(ctx, b.UserID, payout, key, "round settlement"); err != nil {
			return fmt.Errorf("failed to credit settlement for bet %s: %w", b.ID, err)
		}
	}

	a.logger.Info().
		Str("round_id", round.ID.String()).
		Int("bets", len(settlements)).
		Msg("round settled")
	return nil
}

func (a *App) betPayout(round *models.Round, b models.Bet) (float64, error) {
	switch round.GameType {
	case models.GameTypeRoulette:
		if round.WinningNumber == nil {
			return 0, fmt.Errorf("rounds: round %s has no winning number", round.ID)
		}
		return settle.RoulettePayout(b, *round.WinningNumber), nil
	case models.GameTypeCrash:
		if round.CrashPoint == nil {
			return 0, fmt.Errorf("rounds: round %s has no crash point", round.ID)
		}
		return settle.CrashPayout(b, *round.CrashPoint), nil
	default:
		return 0, fmt.Errorf("rounds: unknown game type %s", round.GameType)
	}
}
