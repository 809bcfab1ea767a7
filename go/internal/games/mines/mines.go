// Package mines implements the mines grid game: mine cells derived from the
// round digest, a multiplier ladder that climbs with each safe reveal, and a
// cashout that locks the current rung.
package mines

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kdev47/stakehouse/go/internal/fair"
)

const (
	GridSize  = 25
	MineCount = 3
)

// ladder maps safe reveals to the payout multiplier. Revealing every safe
// cell would step past the last rung, so the game caps reveals at its length.
var ladder = []float64{1.0, 1.12, 1.3, 1.62, 2.08, 2.85, 4.14, 6.5, 11.5, 24.0, 75.0, 750.0}

var (
	ErrGameOver     = errors.New("mines: game already over")
	ErrCellRevealed = errors.New("mines: cell already revealed")
)

// State is the closed set of game states.
type State string

const (
	StateActive    State = "ACTIVE"
	StateBusted    State = "BUSTED"
	StateCashedOut State = "CASHED_OUT"
)

// Game is one mines board in play.
type Game struct {
	mines    map[int]bool
	revealed map[int]bool
	state    State
	stake    float64
}

// Positions derives the mine cells from HMAC over "mines:{clientSeed}:{nonce}".
// Each mine takes one digest byte mod the grid size, probing forward past
// cells already taken.
func Positions(serverSeed, clientSeed string, nonce int64) ([]int, error) {
	if clientSeed == "" {
		return nil, fmt.Errorf("%w: empty client seed", fair.ErrInvalidSeed)
	}
	digest, err := fair.Digest(serverSeed, fmt.Sprintf("mines:%s:%d", clientSeed, nonce))
	if err != nil {
		return nil, err
	}

	positions := make([]int, 0, MineCount)
	used := make(map[int]bool, MineCount)
	for i := 0; i < MineCount; i++ {
		pos := int(digest[i]) % GridSize
		for used[pos] {
			pos = (pos + 1) % GridSize
		}
		positions = append(positions, pos)
		used[pos] = true
	}
	return positions, nil
}

// New lays out a board for the seed tuple.
func New(serverSeed, clientSeed string, nonce int64, stake float64) (*Game, error) {
	if stake <= 0 {
		return nil, fmt.Errorf("mines: stake must be positive, got %v", stake)
	}
	positions, err := Positions(serverSeed, clientSeed, nonce)
	if err != nil {
		return nil, err
	}
	g := &Game{
		mines:    make(map[int]bool, MineCount),
		revealed: make(map[int]bool),
		state:    StateActive,
		stake:    stake,
	}
	for _, p := range positions {
		g.mines[p] = true
	}
	return g, nil
}

// Reveal opens a cell. Hitting a mine busts the game; a safe reveal climbs
// the ladder. Returns whether the cell held a mine.
func (g *Game) Reveal(cell int) (bool, error) {
	if g.state != StateActive {
		return false, ErrGameOver
	}
	if cell < 0 || cell >= GridSize {
		return false, fmt.Errorf("mines: cell %d outside grid [0, %d)", cell, GridSize)
	}
	if g.revealed[cell] {
		return false, ErrCellRevealed
	}

	g.revealed[cell] = true
	if g.mines[cell] {
		g.state = StateBusted
		return true, nil
	}
	if g.safeReveals() >= len(ladder)-1 {
		// Top of the ladder: nothing left to climb, pay out.
		g.state = StateCashedOut
	}
	return false, nil
}

// Cashout locks the current multiplier. At least one safe reveal is required.
func (g *Game) Cashout() (float64, error) {
	if g.state == StateBusted {
		return 0, ErrGameOver
	}
	if g.safeReveals() == 0 {
		return 0, errors.New("mines: nothing revealed yet")
	}
	g.state = StateCashedOut
	return g.Payout(), nil
}

// Payout returns the stake-inclusive amount the game pays in its current
// state. A busted game pays nothing.
func (g *Game) Payout() float64 {
	if g.state == StateBusted {
		return 0
	}
	return g.stake * g.Multiplier()
}

// Multiplier returns the current ladder rung.
func (g *Game) Multiplier() float64 {
	if g.state == StateBusted {
		return 0
	}
	return ladder[g.safeReveals()]
}

// CurrentState reports whether the game is still in play.
func (g *Game) CurrentState() State { return g.state }

// Mines returns the mine cells, only once the game is over. Live games keep
// the layout secret.
func (g *Game) Mines() ([]int, bool) {
	if g.state == StateActive {
		return nil, false
	}
	out := make([]int, 0, len(g.mines))
	for p := range g.mines {
		out = append(out, p)
	}
	return out, true
}

// Revealed returns the opened cells in ascending order.
func (g *Game) Revealed() []int {
	out := make([]int, 0, len(g.revealed))
	for cell := range g.revealed {
		out = append(out, cell)
	}
	sort.Ints(out)
	return out
}

func (g *Game) safeReveals() int {
	n := 0
	for cell := range g.revealed {
		if !g.mines[cell] {
			n++
		}
	}
	return n
}
