package fair

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Rand is a seeded xorshift generator for the board games (keno draws, plinko
// paths, mines positions). It is deterministic for a given seed tuple; server
// seed secrecy, not the generator, provides unpredictability.
type Rand struct {
	state [4]uint32
}

// NewRand seeds a generator from SHA-256 of "{serverSeed}:{clientSeed}:{nonce}".
func NewRand(serverSeed, clientSeed string, nonce int64) (*Rand, error) {
	if serverSeed == "" || clientSeed == "" {
		return nil, fmt.Errorf("%w: empty seed", ErrInvalidSeed)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", serverSeed, clientSeed, nonce)))
	var r Rand
	for i := range r.state {
		r.state[i] = binary.BigEndian.Uint32(sum[i*4 : i*4+4])
	}
	return &r, nil
}

// Float64 returns the next value in [0, 1).
func (r *Rand) Float64() float64 {
	t := r.state[0]
	t ^= t << 11
	t ^= t >> 8
	r.state[0] = r.state[1]
	r.state[1] = r.state[2]
	r.state[2] = r.state[3]
	t ^= r.state[3]
	t ^= r.state[3] >> 19
	r.state[3] = t
	return float64(t) / float64(1<<32)
}

// Intn returns a value in [0, n).
func (r *Rand) Intn(n int) int {
	return int(r.Float64() * float64(n))
}

// Bool returns an even-odds draw, used for per-row plinko directions.
func (r *Rand) Bool() bool {
	return r.Float64() < 0.5
}

// Shuffle returns the numbers [1, n] in Fisher-Yates order drawn from r.
func Shuffle(r *Rand, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
