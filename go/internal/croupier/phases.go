package croupier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kdev47/stakehouse/go/internal/events"
	"github.com/kdev47/stakehouse/go/internal/fair"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/round"
	"github.com/kdev47/stakehouse/go/internal/rounds"
)

// advance moves one due round to its next phase. The outcome is derived from
// the round's seeds on demand and persisted only on the terminal transition,
// so a non-terminal row never carries the result.
func (c *Croupier) advance(ctx context.Context, roundID uuid.UUID) error {
	r, err := c.store.GetRound(ctx, roundID)
	if err != nil {
		return fmt.Errorf("failed to load due round: %w", err)
	}

	switch r.Status {
	case models.RoundStatusBetting:
		return c.startSpin(ctx, r)
	case models.RoundStatusSpinning:
		return c.endRoulette(ctx, r)
	case models.RoundStatusWaiting:
		return c.launchRun(ctx, r)
	case models.RoundStatusRunning:
		return c.crashRun(ctx, r)
	case models.RoundStatusEnded, models.RoundStatusCrashed:
		return c.spawnNext(ctx, r)
	default:
		log.Warn().
			Str("round_id", r.ID.String()).
			Str("status", string(r.Status)).
			Msg("due round in unknown phase, ignoring")
		return nil
	}
}

// startSpin locks betting and begins the wheel animation window.
func (c *Croupier) startSpin(ctx context.Context, r *models.Round) error {
	now := c.clock.Now()
	deadline := now.Add(round.SpinningDuration)
	err := c.tx.InTx(ctx, func(store RoundStore, ob Outbox) error {
		updated, err := store.UpdateRound(ctx, r.ID, rounds.UpdateRoundRequest{
			Status:       models.RoundStatusSpinning,
			StartedAt:    &now,
			NextDeadline: &deadline,
		})
		if err != nil {
			return err
		}
		return emitRound(ctx, ob, updated, events.TypeRoundUpdate)
	})
	if err != nil {
		return fmt.Errorf("failed to start spin: %w", err)
	}
	return nil
}

// endRoulette reveals the winning number, settles every bet and schedules
// the intermission before the next round.
func (c *Croupier) endRoulette(ctx context.Context, r *models.Round) error {
	n, err := fair.WinningNumber(r.ServerSeed, r.ClientSeed, r.Nonce)
	if err != nil {
		return fmt.Errorf("failed to derive winning number: %w", err)
	}
	now := c.clock.Now()
	var updated *models.Round
	err = c.tx.InTx(ctx, func(store RoundStore, ob Outbox) error {
		var err error
		updated, err = store.UpdateRound(ctx, r.ID, rounds.UpdateRoundRequest{
			Status:        models.RoundStatusEnded,
			EndedAt:       &now,
			WinningNumber: &n,
		})
		if err != nil {
			return err
		}
		return emitRound(ctx, ob, updated, events.TypeRoundUpdate)
	})
	if err != nil {
		return fmt.Errorf("failed to end round: %w", err)
	}

	// Settlement runs after the terminal commit in its own wallet
	// transactions, idempotent under its settle keys.
	if err := c.settler.SettleRound(ctx, updated); err != nil {
		return fmt.Errorf("failed to settle round %s: %w", updated.ID, err)
	}

	log.Info().
		Str("round_id", updated.ID.String()).
		Int("winning_number", n).
		Msg("roulette round ended")

	c.scheduleIntermission(ctx, updated.ID, round.EndedDuration)
	return nil
}

// launchRun starts the multiplier curve. The crash deadline is scheduled
// from the derived crash point, which stays out of the row until the crash.
func (c *Croupier) launchRun(ctx context.Context, r *models.Round) error {
	point, err := fair.CrashPoint(r.ServerSeed, r.ClientSeed, r.Nonce)
	if err != nil {
		return fmt.Errorf("failed to derive crash point: %w", err)
	}
	now := c.clock.Now()
	deadline := now.Add(round.TimeToReach(point))
	err = c.tx.InTx(ctx, func(store RoundStore, ob Outbox) error {
		updated, err := store.UpdateRound(ctx, r.ID, rounds.UpdateRoundRequest{
			Status:       models.RoundStatusRunning,
			StartedAt:    &now,
			NextDeadline: &deadline,
		})
		if err != nil {
			return err
		}
		return emitRound(ctx, ob, updated, events.TypeRoundUpdate)
	})
	if err != nil {
		return fmt.Errorf("failed to launch run: %w", err)
	}
	return nil
}

// crashRun ends a crash round: auto-cashouts whose target the curve reached
// before the crash are recorded first, then the crash point is persisted and
// every bet settled.
func (c *Croupier) crashRun(ctx context.Context, r *models.Round) error {
	point, err := fair.CrashPoint(r.ServerSeed, r.ClientSeed, r.Nonce)
	if err != nil {
		return fmt.Errorf("failed to derive crash point: %w", err)
	}

	if err := c.recordAutoCashouts(ctx, r, point); err != nil {
		return err
	}

	now := c.clock.Now()
	var updated *models.Round
	err = c.tx.InTx(ctx, func(store RoundStore, ob Outbox) error {
		var err error
		updated, err = store.UpdateRound(ctx, r.ID, rounds.UpdateRoundRequest{
			Status:     models.RoundStatusCrashed,
			EndedAt:    &now,
			CrashPoint: &point,
		})
		if err != nil {
			return err
		}
		return emitRound(ctx, ob, updated, events.TypeRoundUpdate)
	})
	if err != nil {
		return fmt.Errorf("failed to crash round: %w", err)
	}

	if err := c.settler.SettleRound(ctx, updated); err != nil {
		return fmt.Errorf("failed to settle round %s: %w", updated.ID, err)
	}

	log.Info().
		Str("round_id", updated.ID.String()).
		Float64("crash_point", point).
		Msg("crash round ended")

	c.scheduleIntermission(ctx, updated.ID, round.EndedDuration)
	return nil
}

// recordAutoCashouts writes the exit multiplier for every bet whose auto
// cashout target was reached before the crash. A target equal to the crash
// point loses: the crash and the exit land on the same instant.
func (c *Croupier) recordAutoCashouts(ctx context.Context, r *models.Round, point float64) error {
	bets, err := c.store.ListBetsByRound(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("failed to list bets for auto cashout: %w", err)
	}
	for _, b := range bets {
		if b.AutoCashoutAt == nil || b.CashoutMultiplier != nil || b.Settled() {
			continue
		}
		if *b.AutoCashoutAt >= point {
			continue
		}
		err := c.tx.InTx(ctx, func(store RoundStore, ob Outbox) error {
			updated, err := store.RecordCashout(ctx, b.ID, *b.AutoCashoutAt)
			if errors.Is(err, rounds.ErrNotFound) {
				// A manual cashout raced us; its multiplier stands.
				return nil
			}
			if err != nil {
				return err
			}
			return emitBet(ctx, ob, updated, r.GameType, events.TypeBetUpdate)
		})
		if err != nil {
			return fmt.Errorf("failed to record auto cashout for bet %s: %w", b.ID, err)
		}
	}
	return nil
}

// spawnNext opens the successor of a terminal round.
func (c *Croupier) spawnNext(ctx context.Context, prev *models.Round) error {
	latest, err := c.store.GetLatestRound(ctx, prev.GameType)
	if err != nil {
		return fmt.Errorf("failed to load latest round: %w", err)
	}
	if latest.ID != prev.ID {
		// Successor already exists; a replayed intermission timer is a no-op.
		log.Debug().
			Str("round_id", prev.ID.String()).
			Msg("successor already opened, skipping spawn")
		return nil
	}
	_, err = c.openRound(ctx, prev.GameType, prev.Nonce+1)
	return err
}

// openRound creates a fresh round in its opening phase with new seed
// material and wakes the scheduler.
func (c *Croupier) openRound(ctx context.Context, game models.GameType, nonce int64) (*models.Round, error) {
	serverSeed, err := newServerSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to draw server seed: %w", err)
	}

	status := models.RoundStatusBetting
	dur := round.BettingDuration
	if game == models.GameTypeCrash {
		status = models.RoundStatusWaiting
		dur = round.WaitingDuration
	}
	deadline := c.clock.Now().Add(dur)

	var created *models.Round
	err = c.tx.InTx(ctx, func(store RoundStore, ob Outbox) error {
		var err error
		created, err = store.CreateRound(ctx, rounds.CreateRoundRequest{
			ID:           uuid.New(),
			GameType:     game,
			Status:       status,
			ServerSeed:   serverSeed,
			ClientSeed:   c.cfg.ClientSeed,
			Nonce:        nonce,
			NextDeadline: &deadline,
		})
		if err != nil {
			return err
		}
		return emitRound(ctx, ob, created, events.TypeRoundInsert)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	log.Info().
		Str("round_id", created.ID.String()).
		Str("game_type", string(game)).
		Int64("nonce", nonce).
		Msg("opened round")

	c.wake()
	return created, nil
}

// scheduleIntermission arms a one-shot timer that re-enqueues a terminal
// round after its result display window, so the worker spawns the successor.
func (c *Croupier) scheduleIntermission(ctx context.Context, roundID uuid.UUID, d time.Duration) {
	timer := c.clock.NewTimer(d)
	c.replaceTimer(roundID, timer)

	go func(id uuid.UUID, t clockwork.Timer) {
		select {
		case <-t.Chan():
			c.removeTimer(id)
			c.enqueue(ctx, id)
		case <-ctx.Done():
			stopAndDrainTimer(t)
			c.removeTimer(id)
		}
	}(roundID, timer)
}

// replaceTimer atomically replaces a timer for a round, properly cancelling
// any existing timer. This prevents race conditions where a new timer could
// slip in between Stop() and delete().
func (c *Croupier) replaceTimer(roundID uuid.UUID, newTimer clockwork.Timer) {
	c.activeTimersMu.Lock()
	defer c.activeTimersMu.Unlock()

	if existing, ok := c.activeTimers[roundID]; ok {
		stopAndDrainTimer(existing)
		log.Debug().Str("round_id", roundID.String()).Msg("replaced existing timer")
	}
	c.activeTimers[roundID] = newTimer
}

func (c *Croupier) removeTimer(roundID uuid.UUID) {
	c.activeTimersMu.Lock()
	defer c.activeTimersMu.Unlock()
	delete(c.activeTimers, roundID)
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent
// goroutine leaks. This follows the pattern recommended in the
// time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// emitRound writes a round change event to the outbox view of the running
// transaction. The server seed is withheld until the round is terminal. A
// failed insert aborts the transaction, so the row mutation never commits
// without its event.
func emitRound(ctx context.Context, ob Outbox, r *models.Round, eventType string) error {
	payload, err := json.Marshal(events.RoundPayload{Round: events.Redacted(*r)})
	if err != nil {
		return fmt.Errorf("failed to marshal round payload: %w", err)
	}
	if err := ob.Insert(ctx, r.ID, string(r.GameType), eventType, payload); err != nil {
		return fmt.Errorf("failed to emit round event: %w", err)
	}
	return nil
}

func emitBet(ctx context.Context, ob Outbox, b *models.Bet, gameType models.GameType, eventType string) error {
	payload, err := json.Marshal(events.BetPayload{Bet: *b})
	if err != nil {
		return fmt.Errorf("failed to marshal bet payload: %w", err)
	}
	if err := ob.Insert(ctx, b.RoundID, string(gameType), eventType, payload); err != nil {
		return fmt.Errorf("failed to emit bet event: %w", err)
	}
	return nil
}
