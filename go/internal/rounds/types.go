package rounds

import (
	"time"

	"github.com/google/uuid"

	"github.com/kdev47/stakehouse/go/internal/models"
)

// CreateRoundRequest opens a new round in its betting phase.
type CreateRoundRequest struct {
	ID           uuid.UUID          `json:"id"`
	GameType     models.GameType    `json:"game_type"`
	Status       models.RoundStatus `json:"status"`
	ServerSeed   string             `json:"server_seed"`
	ClientSeed   string             `json:"client_seed"`
	Nonce        int64              `json:"nonce"`
	NextDeadline *time.Time         `json:"next_deadline"`
}

// UpdateRoundRequest advances a round's phase. Nil fields keep their stored
// values.
type UpdateRoundRequest struct {
	Status        models.RoundStatus `json:"status"`
	StartedAt     *time.Time         `json:"started_at"`
	EndedAt       *time.Time         `json:"ended_at"`
	WinningNumber *int               `json:"winning_number"`
	CrashPoint    *float64           `json:"crash_point"`
	NextDeadline  *time.Time         `json:"next_deadline"`
}

// PlaceBetRequest stakes a bet on the current round. A nil ID gets one
// assigned; supplying the id lets retried requests share a stake key.
type PlaceBetRequest struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	RoundID       uuid.UUID      `json:"round_id"`
	Amount        float64        `json:"amount"`
	Kind          models.BetKind `json:"kind"`
	Number        *int           `json:"number"`
	AutoCashoutAt *float64       `json:"auto_cashout_at"`
}

// BetSettlement is one bet's computed result, written by the bulk settle.
type BetSettlement struct {
	BetID  uuid.UUID `json:"bet_id"`
	Profit float64   `json:"profit"`
}

// NextDeadline is the earliest pending phase deadline across live rounds.
type NextDeadline struct {
	RoundID  uuid.UUID  `json:"round_id"`
	Deadline *time.Time `json:"deadline"`
}
