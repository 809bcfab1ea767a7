package models

import (
	"time"

	"github.com/google/uuid"
)

// BetKind is a roulette wager category. Closed set so settlement switches
// stay exhaustive; straight number bets carry the number alongside.
type BetKind string

const (
	BetKindNumber BetKind = "NUMBER"
	BetKindRed    BetKind = "RED"
	BetKindBlack  BetKind = "BLACK"
	BetKindEven   BetKind = "EVEN"
	BetKindOdd    BetKind = "ODD"
	BetKindLow    BetKind = "LOW"  // 1-18
	BetKindHigh   BetKind = "HIGH" // 19-36
	BetKindDozen1 BetKind = "DOZEN_1"
	BetKindDozen2 BetKind = "DOZEN_2"
	BetKindDozen3 BetKind = "DOZEN_3"
	BetKindCol1   BetKind = "COL_1"
	BetKindCol2   BetKind = "COL_2"
	BetKindCol3   BetKind = "COL_3"
)

// Bet is one stake in one round by one user. Immutable once the round leaves
// its accepting phase, except the settlement fields which are written exactly
// once at terminal transition.
type Bet struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	RoundID  uuid.UUID `json:"round_id"`
	Amount   float64   `json:"bet_amount"`
	PlacedAt time.Time `json:"created_at"`

	// Roulette wager parameters.
	Kind   BetKind `json:"bet_type,omitempty"`
	Number *int    `json:"number,omitempty"` // straight bets only

	// Crash wager parameters.
	AutoCashoutAt *float64 `json:"auto_cashout_at,omitempty"`

	// Settlement fields, written once.
	Profit            *float64 `json:"profit,omitempty"`
	CashoutMultiplier *float64 `json:"cashout_multiplier,omitempty"`

	// Denormalized profile for display; populated by the synchronizer.
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Settled reports whether the settlement fields have been written.
func (b *Bet) Settled() bool {
	return b.Profit != nil
}
