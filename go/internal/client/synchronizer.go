// Package client keeps one game's client-side projection in lockstep with
// the authoritative store: an initial state snapshot, then change events
// applied in receipt order, with local settlement reconciled exactly once
// per terminal round.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/kdev47/stakehouse/go/internal/events"
	"github.com/kdev47/stakehouse/go/internal/gateway"
	"github.com/kdev47/stakehouse/go/internal/ledger"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/round"
	"github.com/kdev47/stakehouse/go/internal/settle"
)

// StateSource serves the full synchronization snapshot. *gateway.StateProvider
// satisfies it in-process; a remote client wraps the state endpoint.
type StateSource interface {
	GetGameState(ctx context.Context, game models.GameType) (*gateway.GameStateResponse, error)
}

// ProfileSource resolves the display profile shown next to a bet.
type ProfileSource interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

const historyDepth = 20

// Synchronizer drives one game's projection: the round machine, the bet
// ledger and the outcome history, plus the local settlement reconciler.
type Synchronizer struct {
	game       models.GameType
	feed       ChangeFeed
	state      StateSource
	profiles   ProfileSource
	reconciler *settle.Reconciler
	logger     zerolog.Logger

	mu          sync.Mutex
	machine     *round.Machine
	bets        *ledger.Ledger
	history     *models.History
	unsubscribe func()
}

func NewSynchronizer(game models.GameType, feed ChangeFeed, state StateSource, profiles ProfileSource, reconciler *settle.Reconciler, clock clockwork.Clock, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		game:       game,
		feed:       feed,
		state:      state,
		profiles:   profiles,
		reconciler: reconciler,
		logger:     logger.With().Str("component", "synchronizer").Str("game_type", string(game)).Logger(),
		machine:    round.NewMachine(clock),
		bets:       ledger.New(),
		history:    models.NewHistory(historyDepth),
	}
}

// Start subscribes to the change feed and then loads the snapshot, so no
// event falls between the two. Events applied before the snapshot lands are
// harmless: the machine refuses backward transitions and the ledger keys by
// bet id.
func (s *Synchronizer) Start(ctx context.Context) error {
	unsubscribe, err := s.feed.Subscribe(ctx, s.game, func(env events.Envelope) {
		if err := s.apply(ctx, env); err != nil {
			s.logger.Error().Err(err).Str("event_type", env.EventType).Msg("failed to apply change event")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to change feed: %w", err)
	}
	s.unsubscribe = unsubscribe

	if err := s.resync(ctx); err != nil {
		s.Stop()
		return err
	}
	return nil
}

// Stop cancels the feed subscription.
func (s *Synchronizer) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// resync replaces the whole projection from a state snapshot.
func (s *Synchronizer) resync(ctx context.Context) error {
	snap, err := s.state.GetGameState(ctx, s.game)
	if err != nil {
		return fmt.Errorf("failed to fetch state snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Round != nil {
		if _, err := s.machine.Observe(*snap.Round); err != nil {
			return err
		}
		// A snapshot of an already terminal round must not replay local
		// settlement; the wallet was credited while we were away.
		if snap.Round.Status.IsTerminal() {
			s.reconciler.MarkProcessed(snap.Round.ID)
		}
	}
	s.bets.Replace(snap.Bets)

	s.history = models.NewHistory(historyDepth)
	for i := len(snap.History) - 1; i >= 0; i-- {
		s.history.Push(snap.History[i])
	}

	s.logger.Info().
		Int("bets", len(snap.Bets)).
		Int("history", len(snap.History)).
		Msg("projection resynced from snapshot")
	return nil
}

// apply folds one change event into the projection.
func (s *Synchronizer) apply(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.TypeRoundInsert, events.TypeRoundUpdate:
		var p events.RoundPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal round payload: %w", err)
		}
		return s.applyRound(ctx, p.Round)
	case events.TypeBetInsert, events.TypeBetUpdate:
		var p events.BetPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal bet payload: %w", err)
		}
		s.applyBet(ctx, p.Bet)
		return nil
	case events.TypeBetDelete:
		var p events.BetPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal bet payload: %w", err)
		}
		s.bets.ApplyDelete(p.Bet.ID)
		return nil
	default:
		s.logger.Warn().Str("event_type", env.EventType).Msg("unknown event type, ignoring")
		return nil
	}
}

func (s *Synchronizer) applyRound(ctx context.Context, r models.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.machine.Current()
	if prev != nil && prev.ID != r.ID {
		// Successor round: the old bet set is history now.
		s.bets.Clear()
	}

	terminal, err := s.machine.Observe(r)
	if err != nil {
		return err
	}
	if !terminal {
		return nil
	}

	if outcome, ok := r.Outcome(); ok {
		s.history.Push(models.HistoryEntry{
			WinningNumber: r.WinningNumber,
			CrashPoint:    r.CrashPoint,
		})
		s.logger.Debug().
			Str("round_id", r.ID.String()).
			Float64("outcome", outcome).
			Msg("round resolved")
	}

	// Streamed bet events race the bulk settlement write. A refetch that
	// already sees the terminal row carries the confirmed profits, so the
	// reconciler compares against them instead of a stale in-flight set.
	bets := s.bets.Snapshot()
	if snap, err := s.state.GetGameState(ctx, s.game); err != nil {
		s.logger.Warn().Err(err).Msg("bet refetch after terminal round failed, using streamed set")
	} else if snap.Round != nil && snap.Round.ID == r.ID && snap.Round.Status.IsTerminal() {
		s.bets.Replace(snap.Bets)
		bets = snap.Bets
	}

	result, err := s.reconciler.Settle(ctx, r, bets)
	if err != nil {
		return fmt.Errorf("failed to reconcile settlement: %w", err)
	}
	if result.TotalPayout > 0 {
		s.logger.Info().
			Str("round_id", r.ID.String()).
			Float64("payout", result.TotalPayout).
			Msg("settlement reconciled")
	}
	return nil
}

// applyBet folds a bet row into the ledger, resolving the display profile
// first. A failed lookup keeps the bet with blank display fields.
func (s *Synchronizer) applyBet(ctx context.Context, b models.Bet) {
	if profile, err := s.profiles.GetProfile(ctx, b.UserID); err == nil {
		b.Username = profile.Username
		b.AvatarURL = profile.AvatarURL
	} else {
		s.logger.Debug().Err(err).Str("user_id", b.UserID.String()).Msg("profile lookup failed for bet")
	}
	s.bets.ApplyUpdate(b)
}

// CurrentRound returns the projected round, or nil before the first sync.
func (s *Synchronizer) CurrentRound() *models.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// Bets returns the active round's bet set in insertion order.
func (s *Synchronizer) Bets() []models.Bet {
	return s.bets.Snapshot()
}

// History returns the trailing outcome window, newest first.
func (s *Synchronizer) History() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

// Countdown returns the seconds remaining in the current phase.
func (s *Synchronizer) Countdown() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Countdown()
}

// Multiplier returns the live crash curve value.
func (s *Synchronizer) Multiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Multiplier()
}

// JoinedSettled reports whether the first round observed was already
// terminal, in which case the resolve animation must not replay.
func (s *Synchronizer) JoinedSettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.JoinedSettled()
}

// UserBetTotals groups one user's bets in the active round per wager kind,
// the shape the chip stack display consumes.
func (s *Synchronizer) UserBetTotals(userID uuid.UUID) map[string]ledger.KindTotal {
	return s.bets.UserTotalsByKind(userID)
}

// Resync replaces the whole projection from a fresh state snapshot.
func (s *Synchronizer) Resync(ctx context.Context) error {
	return s.resync(ctx)
}

// CheckStalled reports whether the authoritative feed has gone quiet past
// the current phase's window.
func (s *Synchronizer) CheckStalled() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.CheckStalled()
}
