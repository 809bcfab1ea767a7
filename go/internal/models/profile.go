package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the public slice of a user account shown next to bets, plus the
// wallet fields the games mutate through the balance procedure.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	AvatarURL   string    `json:"avatar_url"`
	Balance     float64   `json:"balance"`
	Wagered     float64   `json:"wagered"`
	GamesPlayed int       `json:"games_played"`
	ClientSeed  string    `json:"client_seed"`
	CreatedAt   time.Time `json:"created_at"`
}

// BalanceAdjustment is one journal entry of the atomic balance procedure.
// The idempotency key makes a replayed credit a no-op.
type BalanceAdjustment struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Amount         float64   `json:"amount"`
	BalanceAfter   float64   `json:"balance_after"`
	IdempotencyKey string    `json:"idempotency_key"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}
