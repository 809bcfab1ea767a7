package settle_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/settle"
)

func rouletteBet(kind models.BetKind, amount float64, number ...int) models.Bet {
	b := models.Bet{ID: uuid.New(), UserID: uuid.New(), Kind: kind, Amount: amount}
	if len(number) > 0 {
		b.Number = &number[0]
	}
	return b
}

func TestStraightNumberPays36x(t *testing.T) {
	b := rouletteBet(models.BetKindNumber, 10, 17)
	if got := settle.RoulettePayout(b, 17); got != 360 {
		t.Errorf("straight 17 on winning 17 = %v, want 360", got)
	}
	if got := settle.RoulettePayout(b, 16); got != 0 {
		t.Errorf("straight 17 on winning 16 = %v, want 0", got)
	}
}

func TestRedLosesOnBlack17(t *testing.T) {
	b := rouletteBet(models.BetKindRed, 10)
	// 17 is black.
	if got := settle.RoulettePayout(b, 17); got != 0 {
		t.Errorf("red bet on winning 17 = %v, want 0", got)
	}
	if got := settle.RoulettePayout(b, 32); got != 20 {
		t.Errorf("red bet on winning 32 = %v, want 20", got)
	}
}

func TestZeroBeatsOutsideBets(t *testing.T) {
	for _, kind := range []models.BetKind{
		models.BetKindRed, models.BetKindBlack, models.BetKindEven,
		models.BetKindOdd, models.BetKindLow, models.BetKindHigh,
		models.BetKindDozen1, models.BetKindCol1,
	} {
		if got := settle.RoulettePayout(rouletteBet(kind, 10), 0); got != 0 {
			t.Errorf("%s on winning 0 = %v, want 0", kind, got)
		}
	}
	if got := settle.RoulettePayout(rouletteBet(models.BetKindNumber, 10, 0), 0); got != 360 {
		t.Errorf("straight 0 on winning 0 = %v, want 360", got)
	}
}

func TestDozensAndColumns(t *testing.T) {
	cases := []struct {
		kind    models.BetKind
		winning int
		want    float64
	}{
		{models.BetKindDozen1, 12, 30},
		{models.BetKindDozen2, 13, 30},
		{models.BetKindDozen3, 36, 30},
		{models.BetKindDozen1, 13, 0},
		{models.BetKindCol1, 1, 30},
		{models.BetKindCol2, 2, 30},
		{models.BetKindCol3, 3, 30},
		{models.BetKindCol3, 4, 0},
	}
	for _, tc := range cases {
		if got := settle.RoulettePayout(rouletteBet(tc.kind, 10), tc.winning); got != tc.want {
			t.Errorf("%s on winning %d = %v, want %v", tc.kind, tc.winning, got, tc.want)
		}
	}
}

func TestEvenOddBoundaries(t *testing.T) {
	if got := settle.RoulettePayout(rouletteBet(models.BetKindEven, 5), 2); got != 10 {
		t.Errorf("even on 2 = %v, want 10", got)
	}
	if got := settle.RoulettePayout(rouletteBet(models.BetKindOdd, 5), 2); got != 0 {
		t.Errorf("odd on 2 = %v, want 0", got)
	}
	if got := settle.RoulettePayout(rouletteBet(models.BetKindLow, 5), 18); got != 10 {
		t.Errorf("low on 18 = %v, want 10", got)
	}
	if got := settle.RoulettePayout(rouletteBet(models.BetKindHigh, 5), 18); got != 0 {
		t.Errorf("high on 18 = %v, want 0", got)
	}
}

func TestCrashPayout(t *testing.T) {
	m := 2.5
	b := models.Bet{ID: uuid.New(), Amount: 10, CashoutMultiplier: &m}
	if got := settle.CrashPayout(b, 3.0); got != 25 {
		t.Errorf("cashout 2.5x before 3.0x crash = %v, want 25", got)
	}
	if got := settle.CrashPayout(b, 2.5); got != 0 {
		t.Errorf("cashout at the crash point = %v, want 0", got)
	}
	b.CashoutMultiplier = nil
	if got := settle.CrashPayout(b, 3.0); got != 0 {
		t.Errorf("no cashout = %v, want 0", got)
	}
}
