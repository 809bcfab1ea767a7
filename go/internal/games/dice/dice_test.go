package dice

import (
	"errors"
	"testing"

	"github.com/kdev47/stakehouse/go/internal/fair"
)

func TestRollDeterministicAndInRange(t *testing.T) {
	first, err := Roll("server-seed", "client-seed", 1)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Roll("server-seed", "client-seed", 1)
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Errorf("same seed tuple rolled %d then %d", first, again)
	}
	for nonce := int64(0); nonce < 200; nonce++ {
		r, err := Roll("server-seed", "client-seed", nonce)
		if err != nil {
			t.Fatal(err)
		}
		if r < 0 || r > 99 {
			t.Fatalf("nonce %d rolled %d, outside [0, 99]", nonce, r)
		}
	}
}

func TestRollRejectsEmptySeeds(t *testing.T) {
	if _, err := Roll("", "client", 1); !errors.Is(err, fair.ErrInvalidSeed) {
		t.Errorf("empty server seed: err = %v, want ErrInvalidSeed", err)
	}
	if _, err := Roll("server", "", 1); !errors.Is(err, fair.ErrInvalidSeed) {
		t.Errorf("empty client seed: err = %v, want ErrInvalidSeed", err)
	}
}

func TestMultiplier(t *testing.T) {
	tests := []struct {
		target int
		dir    Direction
		want   float64
	}{
		{50, Under, 1.98}, // 50 winning rolls
		{50, Over, 2.02},  // 49 winning rolls, 99/49 floored
		{1, Under, 99},    // only 0 wins
		{98, Over, 99},    // only 99 wins
		{95, Under, 1.04}, // 99/95
	}
	for _, tt := range tests {
		if got := Multiplier(tt.target, tt.dir); got != tt.want {
			t.Errorf("Multiplier(%d, %s) = %v, want %v", tt.target, tt.dir, got, tt.want)
		}
	}
}

func TestPlayTargetLoses(t *testing.T) {
	// Find a nonce that rolls 50, then bet both sides of target 50.
	for nonce := int64(0); nonce < 5000; nonce++ {
		roll, err := Roll("server-seed", "client-seed", nonce)
		if err != nil {
			t.Fatal(err)
		}
		if roll != 50 {
			continue
		}
		over, err := Play("server-seed", "client-seed", nonce, 50, Over)
		if err != nil {
			t.Fatal(err)
		}
		under, err := Play("server-seed", "client-seed", nonce, 50, Under)
		if err != nil {
			t.Fatal(err)
		}
		if over.Won || under.Won {
			t.Errorf("roll equal to target won (over=%v under=%v)", over.Won, under.Won)
		}
		return
	}
	t.Skip("no nonce under 5000 rolls 50 for this seed pair")
}

func TestPlayPayout(t *testing.T) {
	res, err := Play("server-seed", "client-seed", 3, 50, Under)
	if err != nil {
		t.Fatal(err)
	}
	if res.Won != (res.Roll < 50) {
		t.Errorf("roll %d, under 50: won = %v", res.Roll, res.Won)
	}
	if res.Won {
		if got := res.Payout(10); got != 19.8 {
			t.Errorf("Payout(10) = %v, want 19.8", got)
		}
	} else if res.Payout(10) != 0 {
		t.Errorf("losing bet paid %v", res.Payout(10))
	}
}

func TestPlayRejectsEmptyBook(t *testing.T) {
	cases := []struct {
		target int
		dir    Direction
	}{
		{0, Under}, // nothing rolls below 0
		{99, Over}, // nothing rolls above 99
		{100, Under},
		{-1, Over},
	}
	for _, tt := range cases {
		if _, err := Play("server-seed", "client-seed", 1, tt.target, tt.dir); err == nil {
			t.Errorf("Play(target=%d, %s): expected error", tt.target, tt.dir)
		}
	}
	if _, err := Play("server-seed", "client-seed", 1, 50, Direction("EXACT")); err == nil {
		t.Error("unknown direction: expected error")
	}
}
