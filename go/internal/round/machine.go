package round

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrRoundStalled is surfaced when the authoritative tick has not advanced a
// round within its expected window. The machine holds the last authoritative
// phase; it never fabricates a terminal outcome.
var ErrRoundStalled = errors.New("round: authoritative phase has stalled")

// Phase durations shared with the croupier. Countdowns are always derived
// from the phase-start timestamp plus these, never stored as a ticking
// integer.
const (
	BettingDuration  = 15 * time.Second
	SpinningDuration = 5 * time.Second
	EndedDuration    = 5 * time.Second
	WaitingDuration  = 5 * time.Second
)

// stallFactor is how many expected-phase-lengths may elapse before the
// machine reports a stall.
const stallFactor = 3

// phaseRank orders statuses within a game so the projection can refuse
// backward transitions.
var phaseRank = map[models.RoundStatus]int{
	models.RoundStatusBetting:  0,
	models.RoundStatusWaiting:  0,
	models.RoundStatusSpinning: 1,
	models.RoundStatusRunning:  1,
	models.RoundStatusEnded:    2,
	models.RoundStatusCrashed:  2,
}

// Machine is a client-side projection of one game's round lifecycle. It
// transitions only in response to authoritative rounds observed from the
// synchronizer; local time is used solely to render countdowns and detect
// stalls.
type Machine struct {
	clock clockwork.Clock

	current        *models.Round
	resumedSettled bool // joined while the round was already terminal
}

// NewMachine returns a projection machine using the given clock.
func NewMachine(clock clockwork.Clock) *Machine {
	return &Machine{clock: clock}
}

// Current returns the projected round, or nil before the first observation.
func (m *Machine) Current() *models.Round {
	return m.current
}

// Observe applies an authoritative round row to the projection. It returns
// true when this observation is the round's terminal transition (the round is
// terminal now and was not before), which is the reconciler's cue to settle.
//
// A backward phase change for the same round id is rejected: status truth is
// owned by the croupier and only moves forward.
func (m *Machine) Observe(r models.Round) (terminal bool, err error) {
	prev := m.current

	if prev != nil && prev.ID == r.ID {
		if phaseRank[r.Status] < phaseRank[prev.Status] {
			return false, fmt.Errorf("round: refusing backward transition %s -> %s for round %s",
				prev.Status, r.Status, r.ID)
		}
		wasTerminal := prev.Status.IsTerminal()
		m.current = &r
		return r.Status.IsTerminal() && !wasTerminal, nil
	}

	// New round id (or first observation). A round first seen already in its
	// terminal phase is a reconnect into old state: render it settled but do
	// not treat it as a fresh terminal transition.
	m.current = &r
	m.resumedSettled = prev == nil && r.Status.IsTerminal()
	if m.resumedSettled {
		log.Debug().
			Str("round_id", r.ID.String()).
			Str("status", string(r.Status)).
			Msg("joined a settled round; skipping resolve replay")
		return false, nil
	}
	return false, nil
}

// JoinedSettled reports whether the first round observed was already
// terminal, in which case the resolving animation must not replay.
func (m *Machine) JoinedSettled() bool {
	return m.resumedSettled
}

// phaseWindow returns the phase's start timestamp and expected duration.
func phaseWindow(r *models.Round) (time.Time, time.Duration) {
	switch r.Status {
	case models.RoundStatusBetting:
		return r.CreatedAt, BettingDuration
	case models.RoundStatusWaiting:
		return r.CreatedAt, WaitingDuration
	case models.RoundStatusSpinning:
		if r.StartedAt != nil {
			return *r.StartedAt, SpinningDuration
		}
		return r.CreatedAt, BettingDuration + SpinningDuration
	case models.RoundStatusRunning:
		// A crash run has no fixed length; the multiplier curve decides.
		if r.StartedAt != nil {
			return *r.StartedAt, 0
		}
		return r.CreatedAt, 0
	case models.RoundStatusEnded, models.RoundStatusCrashed:
		if r.EndedAt != nil {
			return *r.EndedAt, EndedDuration
		}
		return r.CreatedAt, EndedDuration
	default:
		return r.CreatedAt, 0
	}
}

// Countdown returns the seconds remaining in the current phase, recomputed
// from the phase anchor timestamp on every call. Zero when no round is held
// or the phase has no fixed length.
func (m *Machine) Countdown() float64 {
	if m.current == nil {
		return 0
	}
	start, dur := phaseWindow(m.current)
	if dur == 0 {
		return 0
	}
	remaining := start.Add(dur).Sub(m.clock.Now()).Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckStalled reports ErrRoundStalled when the current phase should have
// been advanced by the croupier long ago (stallFactor times the expected
// window). Crash runs are exempt: their length is outcome-dependent.
func (m *Machine) CheckStalled() error {
	if m.current == nil {
		return nil
	}
	start, dur := phaseWindow(m.current)
	if dur == 0 {
		return nil
	}
	if m.clock.Now().After(start.Add(stallFactor * dur)) {
		return fmt.Errorf("%w: round %s stuck in %s since %s",
			ErrRoundStalled, m.current.ID, m.current.Status, start.Format(time.RFC3339))
	}
	return nil
}

// Multiplier returns the crash curve value at the current instant for a
// running crash round: 1.00 growing exponentially with elapsed time, capped
// at the revealed crash point once the round is terminal.
func (m *Machine) Multiplier() float64 {
	r := m.current
	if r == nil {
		return 1.0
	}
	switch r.Status {
	case models.RoundStatusRunning:
		if r.StartedAt == nil {
			return 1.0
		}
		elapsed := m.clock.Now().Sub(*r.StartedAt).Seconds()
		return CurveAt(elapsed)
	case models.RoundStatusCrashed:
		if r.CrashPoint != nil {
			return *r.CrashPoint
		}
	}
	return 1.0
}
