package plinko

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMultiplierTablesShape(t *testing.T) {
	for _, risk := range []Risk{RiskLow, RiskMedium, RiskHigh} {
		for rows := MinRows; rows <= MaxRows; rows++ {
			m, err := Multipliers(risk, rows)
			if err != nil {
				t.Fatalf("Multipliers(%s, %d): %v", risk, rows, err)
			}
			if len(m) != rows+1 {
				t.Errorf("%s/%d rows: %d buckets, want %d", risk, rows, len(m), rows+1)
			}
			for i := 0; i < len(m)/2; i++ {
				if m[i] != m[len(m)-1-i] {
					t.Errorf("%s/%d rows: table asymmetric at bucket %d (%v vs %v)",
						risk, rows, i, m[i], m[len(m)-1-i])
				}
			}
		}
	}
}

func TestMultipliersRejectsBadInput(t *testing.T) {
	if _, err := Multipliers(RiskLow, 7); err == nil {
		t.Error("expected error for 7 rows")
	}
	if _, err := Multipliers(RiskLow, 17); err == nil {
		t.Error("expected error for 17 rows")
	}
	if _, err := Multipliers(Risk("EXTREME"), 8); err == nil {
		t.Error("expected error for unknown risk")
	}
}

func TestBallDeterministic(t *testing.T) {
	a, err := Ball("server-seed", "client-seed", 5, RiskMedium, 12)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Ball("server-seed", "client-seed", 5, RiskMedium, 12)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed tuple produced different drops:\n%s", diff)
	}
}

func TestBallBucketMatchesDirections(t *testing.T) {
	for nonce := int64(0); nonce < 50; nonce++ {
		d, err := Ball("server-seed", "client-seed", nonce, RiskHigh, 16)
		if err != nil {
			t.Fatal(err)
		}
		rights := 0
		for _, r := range d.Directions {
			if r {
				rights++
			}
		}
		if d.Bucket != rights {
			t.Fatalf("nonce %d: bucket %d but %d rightward draws", nonce, d.Bucket, rights)
		}
		if d.Bucket < 0 || d.Bucket > 16 {
			t.Fatalf("nonce %d: bucket %d out of range", nonce, d.Bucket)
		}
		m, _ := Multipliers(RiskHigh, 16)
		if d.Multiplier != m[d.Bucket] {
			t.Fatalf("nonce %d: multiplier %v does not match table entry %v", nonce, d.Multiplier, m[d.Bucket])
		}
	}
}

func TestPayout(t *testing.T) {
	d := Drop{Multiplier: 1.5}
	if got := d.Payout(10); got != 15 {
		t.Errorf("Payout(10) = %v, want 15", got)
	}
	loser := Drop{Multiplier: 0.2}
	if got := loser.Payout(10); got != 2 {
		t.Errorf("Payout(10) = %v, want 2", got)
	}
}
