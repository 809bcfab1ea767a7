// Package settle computes and reconciles payouts on round terminal
// transitions. The authoritative balance mutation is the croupier's bulk
// settlement; the client-side reconciler recomputes payouts for the local
// user's bets as a verification step and reports disagreement.
package settle

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/rs/zerolog/log"
)

// BalanceAdjuster is the single atomic balance procedure. Implementations
// must be idempotent on the key; the reconciler never retries a failed
// credit on its own.
type BalanceAdjuster interface {
	Adjust(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey, reason string) error
}

// SettlementConflict records a disagreement between the locally recomputed
// payout and the backend-confirmed profit on a bet. The backend value wins;
// the conflict is logged and surfaced for diagnostics only.
type SettlementConflict struct {
	BetID   uuid.UUID
	Local   float64
	Backend float64
}

func (c SettlementConflict) Error() string {
	return fmt.Sprintf("settle: bet %s local payout %.2f disagrees with backend %.2f",
		c.BetID, c.Local, c.Backend)
}

// Result is the outcome of reconciling one round for the local user.
type Result struct {
	RoundID     uuid.UUID
	TotalPayout float64
	Conflicts   []SettlementConflict
}

// Reconciler applies settlement at most once per round for one user, even
// when the terminal transition event is delivered repeatedly.
type Reconciler struct {
	userID   uuid.UUID
	adjuster BalanceAdjuster

	mu        sync.Mutex
	processed uuid.UUID // last round settled; reset by a new round id
	hasRound  bool
}

// NewReconciler returns a reconciler for the local user.
func NewReconciler(userID uuid.UUID, adjuster BalanceAdjuster) *Reconciler {
	return &Reconciler{userID: userID, adjuster: adjuster}
}

// MarkProcessed records a round as already settled without reconciling it,
// used when joining a round that was terminal before we subscribed.
func (r *Reconciler) MarkProcessed(roundID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = roundID
	r.hasRound = true
}

// Settle reconciles the local user's bets for a terminal round. Repeated
// calls for the same round id are no-ops; the guard resets only when a
// different round id arrives.
func (r *Reconciler) Settle(ctx context.Context, round models.Round, bets []models.Bet) (*Result, error) {
	if !round.Status.IsTerminal() {
		return nil, fmt.Errorf("settle: round %s is not terminal (%s)", round.ID, round.Status)
	}

	r.mu.Lock()
	if r.hasRound && r.processed == round.ID {
		r.mu.Unlock()
		log.Debug().Str("round_id", round.ID.String()).Msg("round already reconciled; skipping")
		return &Result{RoundID: round.ID}, nil
	}
	r.processed = round.ID
	r.hasRound = true
	r.mu.Unlock()

	res := &Result{RoundID: round.ID}
	for _, b := range bets {
		if b.UserID != r.userID {
			continue
		}
		payout, err := r.payout(round, b)
		if err != nil {
			return res, err
		}

		// The croupier's bulk write is authoritative. Profit holds the net
		// result; compare against our stake-inclusive payout.
		if b.Profit != nil {
			backend := *b.Profit + b.Amount
			if backend < 0 {
				backend = 0
			}
			if math.Abs(backend-payout) > 0.009 {
				conflict := SettlementConflict{BetID: b.ID, Local: payout, Backend: backend}
				log.Warn().
					Str("bet_id", b.ID.String()).
					Float64("local", payout).
					Float64("backend", backend).
					Msg("settlement conflict; backend value wins")
				res.Conflicts = append(res.Conflicts, conflict)
				payout = backend
			}
		}

		if payout > 0 {
			key := fmt.Sprintf("settle:%s:%s", round.ID, b.ID)
			if err := r.adjuster.Adjust(ctx, r.userID, payout, key, "round settlement"); err != nil {
				// Surface, never retry silently: a blind replay without the
				// idempotency key landing risks double payment.
				return res, fmt.Errorf("settle: balance adjustment for bet %s: %w", b.ID, err)
			}
		}
		res.TotalPayout += payout
	}
	return res, nil
}

func (r *Reconciler) payout(round models.Round, b models.Bet) (float64, error) {
	switch round.GameType {
	case models.GameTypeRoulette:
		if round.WinningNumber == nil {
			return 0, fmt.Errorf("settle: round %s has no winning number", round.ID)
		}
		return RoulettePayout(b, *round.WinningNumber), nil
	case models.GameTypeCrash:
		if round.CrashPoint == nil {
			return 0, fmt.Errorf("settle: round %s has no crash point", round.ID)
		}
		return CrashPayout(b, *round.CrashPoint), nil
	default:
		return 0, fmt.Errorf("settle: unknown game type %s", round.GameType)
	}
}
