// Package keno draws ten winning numbers from a forty-number board by seeded
// shuffle and pays picks by hit count from a per-risk payout table.
package keno

import (
	"fmt"

	"github.com/kdev47/stakehouse/go/internal/fair"
)

const (
	BoardSize = 40
	DrawCount = 10
	MaxPicks  = 10
)

// Risk selects a payout table. Classic is the default board.
type Risk string

const (
	RiskLow     Risk = "LOW"
	RiskClassic Risk = "CLASSIC"
	RiskHigh    Risk = "HIGH"
)

// payoutTables map a hit count (index) to a multiplier. All tables cover
// 0..10 hits.
var payoutTables = map[Risk][]float64{
	RiskLow:     {0, 0, 1.1, 1.2, 1.3, 1.8, 3.5, 15, 50, 250, 1000},
	RiskClassic: {0, 0, 0, 1.4, 2.25, 4.5, 8, 17, 50, 80, 100},
	RiskHigh:    {0, 0, 0, 0, 3.5, 8, 15, 65, 500, 800, 1000},
}

// Draw is one resolved keno game.
type Draw struct {
	Winning    []int   `json:"winning"`
	Hits       []int   `json:"hits"`
	Multiplier float64 `json:"multiplier"`
}

// Payout returns the stake-inclusive amount the draw pays.
func (d Draw) Payout(stake float64) float64 {
	return stake * d.Multiplier
}

// Play draws the winning numbers for the seed tuple and scores the picks.
// Picks must be 1 to 10 distinct numbers on the board.
func Play(serverSeed, clientSeed string, nonce int64, risk Risk, picks []int) (*Draw, error) {
	table, ok := payoutTables[risk]
	if !ok {
		return nil, fmt.Errorf("keno: unknown risk %q", risk)
	}
	if len(picks) == 0 || len(picks) > MaxPicks {
		return nil, fmt.Errorf("keno: must pick between 1 and %d numbers, got %d", MaxPicks, len(picks))
	}
	seen := make(map[int]bool, len(picks))
	for _, p := range picks {
		if p < 1 || p > BoardSize {
			return nil, fmt.Errorf("keno: pick %d outside board [1, %d]", p, BoardSize)
		}
		if seen[p] {
			return nil, fmt.Errorf("keno: duplicate pick %d", p)
		}
		seen[p] = true
	}

	r, err := fair.NewRand(serverSeed, clientSeed, nonce)
	if err != nil {
		return nil, err
	}
	winning := fair.Shuffle(r, BoardSize)[:DrawCount]

	drawn := make(map[int]bool, DrawCount)
	for _, n := range winning {
		drawn[n] = true
	}
	d := &Draw{Winning: winning}
	for _, p := range picks {
		if drawn[p] {
			d.Hits = append(d.Hits, p)
		}
	}
	d.Multiplier = table[len(d.Hits)]
	return d, nil
}

// Table exposes the payout multipliers for a risk so clients can render the
// payout bar before playing.
func Table(risk Risk) ([]float64, error) {
	table, ok := payoutTables[risk]
	if !ok {
		return nil, fmt.Errorf("keno: unknown risk %q", risk)
	}
	out := make([]float64, len(table))
	copy(out, table)
	return out, nil
}
