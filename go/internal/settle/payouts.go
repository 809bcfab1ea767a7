package settle

import (
	"github.com/kdev47/stakehouse/go/internal/models"
)

// Roulette payout multipliers, stake-inclusive: a winning $10 straight bet
// returns $360 (35:1 plus the stake back). These must match the table the
// croupier settles with; the client side only recomputes for display.
const (
	payoutStraight  = 36.0
	payoutEvenMoney = 2.0
	payoutThird     = 3.0
)

// RoulettePayout returns the stake-inclusive payout for a bet against the
// winning number; zero for a losing bet.
func RoulettePayout(b models.Bet, winning int) float64 {
	if !rouletteWins(b, winning) {
		return 0
	}
	switch b.Kind {
	case models.BetKindNumber:
		return b.Amount * payoutStraight
	case models.BetKindDozen1, models.BetKindDozen2, models.BetKindDozen3,
		models.BetKindCol1, models.BetKindCol2, models.BetKindCol3:
		return b.Amount * payoutThird
	default:
		return b.Amount * payoutEvenMoney
	}
}

func rouletteWins(b models.Bet, w int) bool {
	color := models.NumberColor(w)
	switch b.Kind {
	case models.BetKindNumber:
		return b.Number != nil && *b.Number == w
	case models.BetKindRed:
		return color == models.ColorRed
	case models.BetKindBlack:
		return color == models.ColorBlack
	case models.BetKindEven:
		return w != 0 && w%2 == 0
	case models.BetKindOdd:
		return w%2 == 1
	case models.BetKindLow:
		return w >= 1 && w <= 18
	case models.BetKindHigh:
		return w >= 19 && w <= 36
	case models.BetKindDozen1:
		return w >= 1 && w <= 12
	case models.BetKindDozen2:
		return w >= 13 && w <= 24
	case models.BetKindDozen3:
		return w >= 25 && w <= 36
	case models.BetKindCol1:
		return w != 0 && w%3 == 1
	case models.BetKindCol2:
		return w != 0 && w%3 == 2
	case models.BetKindCol3:
		return w != 0 && w%3 == 0
	default:
		return false
	}
}

// CrashPayout returns the stake-inclusive payout for a crash bet given the
// round's crash point. A bet pays only if it cashed out strictly below the
// crash point; a cashout multiplier at or above the crash point means the
// cashout did not land in time.
func CrashPayout(b models.Bet, crashPoint float64) float64 {
	if b.CashoutMultiplier == nil || *b.CashoutMultiplier >= crashPoint {
		return 0
	}
	return b.Amount * *b.CashoutMultiplier
}
