// Package games runs the single-pass games against the wallet: it debits the
// stake up front, resolves the game from the player's seed pair, and credits
// any payout through the atomic adjustment procedure. The multi-step games
// (blackjack, mines) live in an in-memory session table keyed by game id.
package games

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kdev47/stakehouse/go/internal/games/blackjack"
	"github.com/kdev47/stakehouse/go/internal/games/dice"
	"github.com/kdev47/stakehouse/go/internal/games/keno"
	"github.com/kdev47/stakehouse/go/internal/games/mines"
	"github.com/kdev47/stakehouse/go/internal/games/plinko"
)

// Wallet is the balance adjustment procedure. Adjust must be atomic and
// idempotent on the key.
type Wallet interface {
	Adjust(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey, reason string) error
}

// SeedSource supplies the player's fairness inputs: the active server seed,
// their chosen client seed, and the next nonce. Nonce consumption is the
// source's concern.
type SeedSource interface {
	NextSeedTuple(ctx context.Context, userID uuid.UUID) (serverSeed, clientSeed string, nonce int64, err error)
}

var ErrNoSuchSession = errors.New("games: no such session")

// Service owns the session table and the wallet wiring.
type Service struct {
	wallet Wallet
	seeds  SeedSource
	logger zerolog.Logger

	mu        sync.Mutex
	blackjack map[uuid.UUID]*blackjackSession
	mines     map[uuid.UUID]*minesSession
}

type blackjackSession struct {
	userID uuid.UUID
	hand   *blackjack.Hand
}

type minesSession struct {
	userID uuid.UUID
	stake  float64
	game   *mines.Game
}

func NewService(wallet Wallet, seeds SeedSource, logger zerolog.Logger) *Service {
	return &Service{
		wallet:    wallet,
		seeds:     seeds,
		logger:    logger.With().Str("component", "games").Logger(),
		blackjack: make(map[uuid.UUID]*blackjackSession),
		mines:     make(map[uuid.UUID]*minesSession),
	}
}

// stake debits the bet up front. The bet id keys the debit so a retried
// request cannot double-charge.
func (s *Service) stakeBet(ctx context.Context, userID, betID uuid.UUID, amount float64, game string) error {
	key := fmt.Sprintf("stake:%s", betID)
	if err := s.wallet.Adjust(ctx, userID, -amount, key, game+" stake"); err != nil {
		return fmt.Errorf("games: debit stake for %s: %w", betID, err)
	}
	return nil
}

func (s *Service) creditPayout(ctx context.Context, userID, betID uuid.UUID, payout float64, game string) error {
	if payout <= 0 {
		return nil
	}
	key := fmt.Sprintf("payout:%s", betID)
	if err := s.wallet.Adjust(ctx, userID, payout, key, game+" payout"); err != nil {
		return fmt.Errorf("games: credit payout for %s: %w", betID, err)
	}
	s.logger.Info().
		Str("game", game).
		Str("bet_id", betID.String()).
		Float64("payout", payout).
		Msg("payout credited")
	return nil
}

// DiceResult is a resolved dice bet with its settlement amounts.
type DiceResult struct {
	BetID  uuid.UUID    `json:"bet_id"`
	Result *dice.Result `json:"result"`
	Payout float64      `json:"payout"`
}

// PlayDice stakes, rolls and settles one dice bet.
func (s *Service) PlayDice(ctx context.Context, userID uuid.UUID, stake float64, target int, dir dice.Direction) (*DiceResult, error) {
	serverSeed, clientSeed, nonce, err := s.seeds.NextSeedTuple(ctx, userID)
	if err != nil {
		return nil, err
	}
	betID := uuid.New()
	if err := s.stakeBet(ctx, userID, betID, stake, "dice"); err != nil {
		return nil, err
	}
	res, err := dice.Play(serverSeed, clientSeed, nonce, target, dir)
	if err != nil {
		return nil, err
	}
	payout := res.Payout(stake)
	if err := s.creditPayout(ctx, userID, betID, payout, "dice"); err != nil {
		return nil, err
	}
	return &DiceResult{BetID: betID, Result: res, Payout: payout}, nil
}

// PlinkoResult is a resolved plinko drop with its settlement amounts.
type PlinkoResult struct {
	BetID  uuid.UUID    `json:"bet_id"`
	Drop   *plinko.Drop `json:"drop"`
	Payout float64      `json:"payout"`
}

// DropBall stakes, drops and settles one plinko ball.
func (s *Service) DropBall(ctx context.Context, userID uuid.UUID, stake float64, risk plinko.Risk, rows int) (*PlinkoResult, error) {
	serverSeed, clientSeed, nonce, err := s.seeds.NextSeedTuple(ctx, userID)
	if err != nil {
		return nil, err
	}
	betID := uuid.New()
	if err := s.stakeBet(ctx, userID, betID, stake, "plinko"); err != nil {
		return nil, err
	}
	drop, err := plinko.Ball(serverSeed, clientSeed, nonce, risk, rows)
	if err != nil {
		return nil, err
	}
	payout := drop.Payout(stake)
	if err := s.creditPayout(ctx, userID, betID, payout, "plinko"); err != nil {
		return nil, err
	}
	return &PlinkoResult{BetID: betID, Drop: drop, Payout: payout}, nil
}

// KenoResult is a resolved keno draw with its settlement amounts.
type KenoResult struct {
	BetID  uuid.UUID  `json:"bet_id"`
	Draw   *keno.Draw `json:"draw"`
	Payout float64    `json:"payout"`
}

// PlayKeno stakes, draws and settles one keno game.
func (s *Service) PlayKeno(ctx context.Context, userID uuid.UUID, stake float64, risk keno.Risk, picks []int) (*KenoResult, error) {
	serverSeed, clientSeed, nonce, err := s.seeds.NextSeedTuple(ctx, userID)
	if err != nil {
		return nil, err
	}
	betID := uuid.New()
	if err := s.stakeBet(ctx, userID, betID, stake, "keno"); err != nil {
		return nil, err
	}
	draw, err := keno.Play(serverSeed, clientSeed, nonce, risk, picks)
	if err != nil {
		return nil, err
	}
	payout := draw.Payout(stake)
	if err := s.creditPayout(ctx, userID, betID, payout, "keno"); err != nil {
		return nil, err
	}
	return &KenoResult{BetID: betID, Draw: draw, Payout: payout}, nil
}

// DealBlackjack stakes a new blackjack hand and returns its session id. A
// hand dealt finished (natural 21) settles immediately.
func (s *Service) DealBlackjack(ctx context.Context, userID uuid.UUID, stake float64) (uuid.UUID, *blackjack.Hand, error) {
	serverSeed, clientSeed, nonce, err := s.seeds.NextSeedTuple(ctx, userID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id := uuid.New()
	if err := s.stakeBet(ctx, userID, id, stake, "blackjack"); err != nil {
		return uuid.Nil, nil, err
	}
	hand, err := blackjack.Deal(serverSeed, clientSeed, nonce, stake)
	if err != nil {
		return uuid.Nil, nil, err
	}

	s.mu.Lock()
	s.blackjack[id] = &blackjackSession{userID: userID, hand: hand}
	s.mu.Unlock()

	if hand.CurrentPhase() == blackjack.PhaseFinished {
		if err := s.settleBlackjack(ctx, id); err != nil {
			return uuid.Nil, nil, err
		}
	}
	return id, hand, nil
}

// BlackjackAction applies a player decision to a live hand and settles it if
// the decision finished the hand. Double down debits the extra stake first.
func (s *Service) BlackjackAction(ctx context.Context, id uuid.UUID, action string) (*blackjack.Hand, error) {
	s.mu.Lock()
	sess, ok := s.blackjack[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSuchSession
	}

	var err error
	switch action {
	case "hit":
		err = sess.hand.Hit()
	case "stand":
		err = sess.hand.Stand()
	case "double":
		key := fmt.Sprintf("double:%s", id)
		if err := s.wallet.Adjust(ctx, sess.userID, -sess.hand.Stake(), key, "blackjack double"); err != nil {
			return nil, fmt.Errorf("games: debit double for %s: %w", id, err)
		}
		err = sess.hand.Double()
	default:
		return nil, fmt.Errorf("games: unknown blackjack action %q", action)
	}
	if err != nil {
		return nil, err
	}

	if sess.hand.CurrentPhase() == blackjack.PhaseFinished {
		if err := s.settleBlackjack(ctx, id); err != nil {
			return nil, err
		}
	}
	return sess.hand, nil
}

func (s *Service) settleBlackjack(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.blackjack[id]
	delete(s.blackjack, id)
	s.mu.Unlock()
	if !ok {
		return ErrNoSuchSession
	}

	payout, err := sess.hand.Settle()
	if err != nil {
		return err
	}
	return s.creditPayout(ctx, sess.userID, id, payout, "blackjack")
}

// StartMines stakes a new mines board and returns its session id.
func (s *Service) StartMines(ctx context.Context, userID uuid.UUID, stake float64) (uuid.UUID, error) {
	serverSeed, clientSeed, nonce, err := s.seeds.NextSeedTuple(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	if err := s.stakeBet(ctx, userID, id, stake, "mines"); err != nil {
		return uuid.Nil, err
	}
	game, err := mines.New(serverSeed, clientSeed, nonce, stake)
	if err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	s.mines[id] = &minesSession{userID: userID, stake: stake, game: game}
	s.mu.Unlock()
	return id, nil
}

// RevealMine opens a cell on a live board. A bust or a completed ladder ends
// the session; the completed ladder pays out.
func (s *Service) RevealMine(ctx context.Context, id uuid.UUID, cell int) (*mines.Game, error) {
	s.mu.Lock()
	sess, ok := s.mines[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSuchSession
	}

	hit, err := sess.game.Reveal(cell)
	if err != nil {
		return nil, err
	}
	switch {
	case hit:
		s.mu.Lock()
		delete(s.mines, id)
		s.mu.Unlock()
		s.logger.Info().Str("session_id", id.String()).Msg("mines bust")
	case sess.game.CurrentState() == mines.StateCashedOut:
		s.mu.Lock()
		delete(s.mines, id)
		s.mu.Unlock()
		if err := s.creditPayout(ctx, sess.userID, id, sess.game.Payout(), "mines"); err != nil {
			return nil, err
		}
	}
	return sess.game, nil
}

// CashoutMines settles a live board at its current rung.
func (s *Service) CashoutMines(ctx context.Context, id uuid.UUID) (float64, error) {
	s.mu.Lock()
	sess, ok := s.mines[id]
	delete(s.mines, id)
	s.mu.Unlock()
	if !ok {
		return 0, ErrNoSuchSession
	}

	payout, err := sess.game.Cashout()
	if err != nil {
		return 0, err
	}
	if err := s.creditPayout(ctx, sess.userID, id, payout, "mines"); err != nil {
		return 0, err
	}
	return payout, nil
}
