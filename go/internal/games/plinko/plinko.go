// Package plinko computes plinko drops: one binary draw per pin row, the
// final bucket indexed by how many draws went right, paid from a risk/rows
// multiplier table.
package plinko

import (
	"fmt"

	"github.com/kdev47/stakehouse/go/internal/fair"
)

// Risk selects a multiplier table. Higher risk concentrates the payout in the
// edge buckets.
type Risk string

const (
	RiskLow    Risk = "LOW"
	RiskMedium Risk = "MEDIUM"
	RiskHigh   Risk = "HIGH"
)

const (
	MinRows = 8
	MaxRows = 16
)

// Drop is one resolved ball: the per-row directions (false left, true right),
// the bucket it landed in and the multiplier that bucket pays.
type Drop struct {
	Directions []bool  `json:"directions"`
	Bucket     int     `json:"bucket"`
	Multiplier float64 `json:"multiplier"`
}

// Payout returns the stake-inclusive amount the drop pays.
func (d Drop) Payout(stake float64) float64 {
	return stake * d.Multiplier
}

// Multipliers returns the payout table for a risk and row count, one entry
// per bucket (rows+1 buckets). The table is symmetric around the middle.
func Multipliers(risk Risk, rows int) ([]float64, error) {
	if rows < MinRows || rows > MaxRows {
		return nil, fmt.Errorf("plinko: rows must be in [%d, %d], got %d", MinRows, MaxRows, rows)
	}
	table, ok := multiplierTables[risk]
	if !ok {
		return nil, fmt.Errorf("plinko: unknown risk %q", risk)
	}
	return table[rows-MinRows], nil
}

// Ball derives a drop from the seed tuple: rows even-odds draws walk the ball
// down the board, and the count of rightward draws is the bucket index.
func Ball(serverSeed, clientSeed string, nonce int64, risk Risk, rows int) (*Drop, error) {
	multipliers, err := Multipliers(risk, rows)
	if err != nil {
		return nil, err
	}
	r, err := fair.NewRand(serverSeed, clientSeed, nonce)
	if err != nil {
		return nil, err
	}

	drop := &Drop{Directions: make([]bool, rows)}
	for i := range drop.Directions {
		right := r.Bool()
		drop.Directions[i] = right
		if right {
			drop.Bucket++
		}
	}
	drop.Multiplier = multipliers[drop.Bucket]
	return drop, nil
}

// multiplierTables is indexed [rows-MinRows][bucket]. Values follow the
// house configuration shipped with the board layouts.
var multiplierTables = map[Risk][][]float64{
	RiskLow: {
		{5.6, 2.1, 1.1, 1, 0.5, 1, 1.1, 2.1, 5.6},
		{5.6, 2, 1.6, 1, 0.7, 0.7, 1, 1.6, 2, 5.6},
		{8.9, 3, 1.4, 1.1, 1, 0.5, 1, 1.1, 1.4, 3, 8.9},
		{8.4, 3, 1.9, 1.3, 1, 0.7, 0.7, 1, 1.3, 1.9, 3, 8.4},
		{10, 3, 1.6, 1.4, 1.1, 1, 0.5, 1, 1.1, 1.4, 1.6, 3, 10},
		{8.1, 4, 3, 1.9, 1.2, 0.9, 0.7, 0.7, 0.9, 1.2, 1.9, 3, 4, 8.1},
		{7.1, 4, 1.9, 1.4, 1.3, 1.1, 1, 0.5, 1, 1.1, 1.3, 1.4, 1.9, 4, 7.1},
		{15, 8, 3, 2, 1.5, 1.1, 1, 0.7, 0.7, 1, 1.1, 1.5, 2, 3, 8, 15},
		{16, 9, 2, 1.4, 1.4, 1.2, 1.1, 1, 0.5, 1, 1.1, 1.2, 1.4, 1.4, 2, 9, 16},
	},
	RiskMedium: {
		{13, 3, 1.3, 0.7, 0.4, 0.7, 1.3, 3, 13},
		{18, 4, 1.7, 0.9, 0.5, 0.5, 0.9, 1.7, 4, 18},
		{22, 5, 2, 1.4, 0.6, 0.4, 0.6, 1.4, 2, 5, 22},
		{24, 6, 3, 1.8, 0.7, 0.5, 0.5, 0.7, 1.8, 3, 6, 24},
		{33, 11, 4, 2, 1.1, 0.6, 0.3, 0.6, 1.1, 2, 4, 11, 33},
		{43, 13, 6, 3, 1.3, 0.7, 0.4, 0.4, 0.7, 1.3, 3, 6, 13, 43},
		{58, 15, 7, 4, 1.9, 1, 0.5, 0.2, 0.5, 1, 1.9, 4, 7, 15, 58},
		{88, 18, 11, 5, 3, 1.3, 0.5, 0.3, 0.3, 0.5, 1.3, 3, 5, 11, 18, 88},
		{110, 41, 10, 5, 3, 1.5, 1, 0.5, 0.3, 0.5, 1, 1.5, 3, 5, 10, 41, 110},
	},
	RiskHigh: {
		{29, 4, 1.5, 0.3, 0.2, 0.3, 1.5, 4, 29},
		{43, 7, 2, 0.6, 0.2, 0.2, 0.6, 2, 7, 43},
		{76, 10, 3, 0.9, 0.3, 0.2, 0.3, 0.9, 3, 10, 76},
		{120, 14, 5.2, 1.4, 0.4, 0.2, 0.2, 0.4, 1.4, 5.2, 14, 120},
		{170, 24, 8.1, 2, 0.7, 0.2, 0.2, 0.2, 0.7, 2, 8.1, 24, 170},
		{260, 37, 11, 4, 1, 0.2, 0.2, 0.2, 0.2, 1, 4, 11, 37, 260},
		{420, 56, 18, 5, 1.9, 0.3, 0.2, 0.2, 0.2, 0.3, 1.9, 5, 18, 56, 420},
		{620, 83, 27, 8, 3, 0.5, 0.2, 0.2, 0.2, 0.2, 0.5, 3, 8, 27, 83, 620},
		{1000, 130, 26, 9, 4, 2, 0.2, 0.2, 0.2, 0.2, 0.2, 2, 4, 9, 26, 130, 1000},
	},
}
