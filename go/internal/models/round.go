package models

import (
	"time"

	"github.com/google/uuid"
)

// GameType identifies a shared multiplayer game with rounds.
type GameType string

const (
	GameTypeRoulette GameType = "ROULETTE"
	GameTypeCrash    GameType = "CRASH"
)

// RoundStatus defines the lifecycle phase of a round. The generic sequence is
// accepting bets -> resolving -> settled; each game maps its own names onto it.
type RoundStatus string

const (
	// Roulette phases.
	RoundStatusBetting  RoundStatus = "BETTING"
	RoundStatusSpinning RoundStatus = "SPINNING"
	RoundStatusEnded    RoundStatus = "ENDED"

	// Crash phases.
	RoundStatusWaiting RoundStatus = "WAITING"
	RoundStatusRunning RoundStatus = "RUNNING"
	RoundStatusCrashed RoundStatus = "CRASHED"
)

// IsTerminal reports whether the status is a terminal phase for its game.
func (s RoundStatus) IsTerminal() bool {
	return s == RoundStatusEnded || s == RoundStatusCrashed
}

// Accepting reports whether bets may still be placed in this phase.
func (s RoundStatus) Accepting() bool {
	return s == RoundStatusBetting || s == RoundStatusWaiting
}

// Round represents one play-cycle of a shared multiplayer game. Exactly one
// round per game is non-terminal at a time; phase transitions are owned by
// the croupier and only ever move forward.
type Round struct {
	ID        uuid.UUID   `json:"id"`
	GameType  GameType    `json:"game_type"`
	Status    RoundStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`

	// Phase transition timestamps, each set exactly once.
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// ServerSeed stays secret until the round settles; revealed for
	// verification afterwards.
	ServerSeed string `json:"server_seed,omitempty"`
	ClientSeed string `json:"client_seed"`
	Nonce      int64  `json:"nonce"`

	// Terminal outcome. Nil until computed, immutable once set.
	WinningNumber *int     `json:"winning_number,omitempty"`
	CrashPoint    *float64 `json:"crash_point,omitempty"`

	// NextDeadline is when the croupier must advance this round's phase.
	NextDeadline *time.Time `json:"next_deadline,omitempty"`
}

// Outcome returns the terminal value for history display, or false if the
// round has not resolved yet.
func (r *Round) Outcome() (float64, bool) {
	switch {
	case r.WinningNumber != nil:
		return float64(*r.WinningNumber), true
	case r.CrashPoint != nil:
		return *r.CrashPoint, true
	default:
		return 0, false
	}
}
