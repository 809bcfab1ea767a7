package mines

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kdev47/stakehouse/go/internal/fair"
)

func TestPositionsDeterministicAndDistinct(t *testing.T) {
	a, err := Positions("server-seed", "client-seed", 4)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Positions("server-seed", "client-seed", 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed tuple laid different boards:\n%s", diff)
	}
	if len(a) != MineCount {
		t.Fatalf("laid %d mines, want %d", len(a), MineCount)
	}
	seen := make(map[int]bool)
	for _, p := range a {
		if p < 0 || p >= GridSize {
			t.Errorf("mine at %d, outside grid", p)
		}
		if seen[p] {
			t.Errorf("two mines on cell %d", p)
		}
		seen[p] = true
	}
}

func TestPositionsRejectsEmptySeeds(t *testing.T) {
	if _, err := Positions("", "client", 1); !errors.Is(err, fair.ErrInvalidSeed) {
		t.Errorf("empty server seed: err = %v, want ErrInvalidSeed", err)
	}
	if _, err := Positions("server", "", 1); !errors.Is(err, fair.ErrInvalidSeed) {
		t.Errorf("empty client seed: err = %v, want ErrInvalidSeed", err)
	}
}

func TestRevealClimbsLadder(t *testing.T) {
	g, err := New("server-seed", "client-seed", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	mines, _ := Positions("server-seed", "client-seed", 4)
	isMine := make(map[int]bool)
	for _, p := range mines {
		isMine[p] = true
	}

	want := []float64{1.12, 1.3, 1.62}
	revealed := 0
	for cell := 0; cell < GridSize && revealed < len(want); cell++ {
		if isMine[cell] {
			continue
		}
		hit, err := g.Reveal(cell)
		if err != nil {
			t.Fatal(err)
		}
		if hit {
			t.Fatalf("cell %d flagged as mine but layout says safe", cell)
		}
		if g.Multiplier() != want[revealed] {
			t.Errorf("after %d safe reveals multiplier = %v, want %v",
				revealed+1, g.Multiplier(), want[revealed])
		}
		revealed++
	}

	payout, err := g.Cashout()
	if err != nil {
		t.Fatal(err)
	}
	if diff := payout - 16.2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cashout after three safe reveals = %v, want 16.2", payout)
	}
	if g.CurrentState() != StateCashedOut {
		t.Errorf("state after cashout = %s", g.CurrentState())
	}
}

func TestRevealMineBusts(t *testing.T) {
	g, err := New("server-seed", "client-seed", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	mines, _ := Positions("server-seed", "client-seed", 4)

	hit, err := g.Reveal(mines[0])
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Fatal("revealing a mine cell did not report a hit")
	}
	if g.CurrentState() != StateBusted {
		t.Errorf("state after mine = %s, want BUSTED", g.CurrentState())
	}
	if g.Payout() != 0 {
		t.Errorf("busted game pays %v", g.Payout())
	}
	if _, err := g.Cashout(); !errors.Is(err, ErrGameOver) {
		t.Errorf("cashout after bust: err = %v, want ErrGameOver", err)
	}
	if _, err := g.Reveal(0); !errors.Is(err, ErrGameOver) {
		t.Errorf("reveal after bust: err = %v, want ErrGameOver", err)
	}
}

func TestRevealGuards(t *testing.T) {
	g, err := New("server-seed", "client-seed", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	mines, _ := Positions("server-seed", "client-seed", 4)
	safe := 0
	for isMine(mines, safe) {
		safe++
	}

	if _, err := g.Reveal(-1); err == nil {
		t.Error("expected error for negative cell")
	}
	if _, err := g.Reveal(GridSize); err == nil {
		t.Error("expected error for cell past the grid")
	}
	if _, err := g.Reveal(safe); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Reveal(safe); !errors.Is(err, ErrCellRevealed) {
		t.Errorf("double reveal: err = %v, want ErrCellRevealed", err)
	}
}

func TestCashoutRequiresAReveal(t *testing.T) {
	g, err := New("server-seed", "client-seed", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Cashout(); err == nil {
		t.Error("cashout with nothing revealed should fail")
	}
}

func TestMinesHiddenWhileActive(t *testing.T) {
	g, err := New("server-seed", "client-seed", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Mines(); ok {
		t.Error("live game exposed its mine layout")
	}
	mines, _ := Positions("server-seed", "client-seed", 4)
	if _, err := g.Reveal(mines[0]); err != nil {
		t.Fatal(err)
	}
	revealed, ok := g.Mines()
	if !ok {
		t.Fatal("finished game kept its layout hidden")
	}
	if len(revealed) != MineCount {
		t.Errorf("layout reveal returned %d mines, want %d", len(revealed), MineCount)
	}
}

func isMine(mines []int, cell int) bool {
	for _, p := range mines {
		if p == cell {
			return true
		}
	}
	return false
}
