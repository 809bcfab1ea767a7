package round_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/round"
)

func bettingRound(clock clockwork.Clock) models.Round {
	return models.Round{
		ID:        uuid.New(),
		GameType:  models.GameTypeRoulette,
		Status:    models.RoundStatusBetting,
		CreatedAt: clock.Now(),
	}
}

func TestObserveForwardTransitions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := round.NewMachine(clock)

	r := bettingRound(clock)
	if terminal, err := m.Observe(r); err != nil || terminal {
		t.Fatalf("betting observation: terminal=%v err=%v", terminal, err)
	}

	spunAt := clock.Now().Add(15 * time.Second)
	r.Status = models.RoundStatusSpinning
	r.StartedAt = &spunAt
	if terminal, err := m.Observe(r); err != nil || terminal {
		t.Fatalf("spinning observation: terminal=%v err=%v", terminal, err)
	}

	endedAt := spunAt.Add(5 * time.Second)
	n := 17
	r.Status = models.RoundStatusEnded
	r.EndedAt = &endedAt
	r.WinningNumber = &n
	terminal, err := m.Observe(r)
	if err != nil {
		t.Fatalf("ended observation: %v", err)
	}
	if !terminal {
		t.Error("ended observation should report the terminal transition")
	}
}

func TestObserveRefusesBackwardTransition(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := round.NewMachine(clock)

	r := bettingRound(clock)
	n := 4
	endedAt := clock.Now()
	r.Status = models.RoundStatusEnded
	r.EndedAt = &endedAt
	r.WinningNumber = &n
	if _, err := m.Observe(r); err != nil {
		t.Fatal(err)
	}

	r.Status = models.RoundStatusSpinning
	r.WinningNumber = nil
	if _, err := m.Observe(r); err == nil {
		t.Error("expected backward transition to be rejected")
	}
	if m.Current().Status != models.RoundStatusEnded {
		t.Errorf("projection moved backward to %s", m.Current().Status)
	}
}

func TestTerminalTransitionReportedOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := round.NewMachine(clock)

	r := bettingRound(clock)
	if _, err := m.Observe(r); err != nil {
		t.Fatal(err)
	}

	n := 9
	endedAt := clock.Now()
	r.Status = models.RoundStatusEnded
	r.EndedAt = &endedAt
	r.WinningNumber = &n

	terminal, err := m.Observe(r)
	if err != nil || !terminal {
		t.Fatalf("first terminal observation: terminal=%v err=%v", terminal, err)
	}
	// Replayed terminal update (reconnect) must not re-trigger settlement.
	terminal, err = m.Observe(r)
	if err != nil {
		t.Fatal(err)
	}
	if terminal {
		t.Error("replayed terminal observation reported terminal again")
	}
}

func TestJoinSettledRoundSkipsResolve(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := round.NewMachine(clock)

	n := 22
	endedAt := clock.Now()
	r := bettingRound(clock)
	r.Status = models.RoundStatusEnded
	r.EndedAt = &endedAt
	r.WinningNumber = &n

	terminal, err := m.Observe(r)
	if err != nil {
		t.Fatal(err)
	}
	if terminal {
		t.Error("joining a settled round must not count as a terminal transition")
	}
	if !m.JoinedSettled() {
		t.Error("JoinedSettled should report true on reconnect into terminal state")
	}
}

func TestCountdownDerivedFromTimestamps(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := round.NewMachine(clock)

	r := bettingRound(clock)
	if _, err := m.Observe(r); err != nil {
		t.Fatal(err)
	}

	if got := m.Countdown(); got < 14.9 || got > 15.0 {
		t.Errorf("fresh betting countdown = %v, want ~15", got)
	}
	clock.Advance(10 * time.Second)
	if got := m.Countdown(); got < 4.9 || got > 5.0 {
		t.Errorf("countdown after 10s = %v, want ~5", got)
	}
	clock.Advance(10 * time.Second)
	if got := m.Countdown(); got != 0 {
		t.Errorf("expired countdown = %v, want 0", got)
	}
}

func TestStalledRoundSurfacedNotResolved(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := round.NewMachine(clock)

	r := bettingRound(clock)
	if _, err := m.Observe(r); err != nil {
		t.Fatal(err)
	}

	clock.Advance(30 * time.Second)
	if err := m.CheckStalled(); err != nil {
		t.Errorf("stall reported too early: %v", err)
	}

	clock.Advance(60 * time.Second)
	err := m.CheckStalled()
	if !errors.Is(err, round.ErrRoundStalled) {
		t.Fatalf("expected ErrRoundStalled after 3x window, got %v", err)
	}
	if m.Current().Status != models.RoundStatusBetting {
		t.Errorf("stalled machine left phase %s, want betting held", m.Current().Status)
	}
	if m.Current().WinningNumber != nil {
		t.Error("stalled machine fabricated a winning number")
	}
}

func TestCrashCurve(t *testing.T) {
	if got := round.CurveAt(0); got != 1.0 {
		t.Errorf("CurveAt(0) = %v, want 1.0", got)
	}
	if got := round.CurveAt(10); got < 1.99 || got > 2.01 {
		t.Errorf("CurveAt(10) = %v, want ~2.0", got)
	}
	d := round.TimeToReach(2.0)
	if d < 9900*time.Millisecond || d > 10100*time.Millisecond {
		t.Errorf("TimeToReach(2.0) = %v, want ~10s", d)
	}
}

func TestRunningMultiplierTracksClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := round.NewMachine(clock)

	startedAt := clock.Now()
	r := models.Round{
		ID:        uuid.New(),
		GameType:  models.GameTypeCrash,
		Status:    models.RoundStatusRunning,
		CreatedAt: clock.Now().Add(-5 * time.Second),
		StartedAt: &startedAt,
	}
	if _, err := m.Observe(r); err != nil {
		t.Fatal(err)
	}

	if got := m.Multiplier(); got != 1.0 {
		t.Errorf("multiplier at start = %v, want 1.0", got)
	}
	clock.Advance(10 * time.Second)
	if got := m.Multiplier(); got < 1.99 || got > 2.01 {
		t.Errorf("multiplier after 10s = %v, want ~2.0", got)
	}
}
