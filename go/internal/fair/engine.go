package fair

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidSeed is returned when seed material is malformed. Derivations
// never substitute their own randomness on bad input.
var ErrInvalidSeed = errors.New("fair: invalid seed material")

const (
	crashHouseEdge = 0.01
	crashMax       = 1000.0
)

// WinningNumber derives the roulette outcome for a round from its seeds and
// nonce: HMAC-SHA256 over "{clientSeed}-{nonce}" keyed by the server seed,
// first 32 bits of the digest reduced mod 37.
//
// The mod-37 reduction of a 32-bit prefix carries a bias of ~37/2^32. That is
// the published derivation players verify against, so it is kept as-is;
// changing the modulus scheme would change verifiable outcomes.
func WinningNumber(serverSeed, clientSeed string, nonce int64) (int, error) {
	if serverSeed == "" || clientSeed == "" {
		return 0, fmt.Errorf("%w: empty seed", ErrInvalidSeed)
	}
	digest := hmacHex(serverSeed, fmt.Sprintf("%s-%d", clientSeed, nonce))
	v, err := strconv.ParseUint(digest[:8], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return int(v % 37), nil
}

// CrashPoint derives the crash multiplier for a round: HMAC-SHA256 over
// "{clientSeed}:{nonce}", first 52 bits mapped to [0,1), then the standard
// 1% house edge curve, floored to cents and clamped to [1.00, 1000.00].
func CrashPoint(serverSeed, clientSeed string, nonce int64) (float64, error) {
	if serverSeed == "" || clientSeed == "" {
		return 0, fmt.Errorf("%w: empty seed", ErrInvalidSeed)
	}
	digest := hmacHex(serverSeed, fmt.Sprintf("%s:%d", clientSeed, nonce))
	v, err := strconv.ParseUint(digest[:13], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	r := float64(v) / math.Pow(2, 52)
	point := math.Floor(100*(1-crashHouseEdge)/(1-r)) / 100.0
	if point < 1.0 {
		point = 1.0
	}
	if point > crashMax {
		point = crashMax
	}
	return point, nil
}

// VerifyWinningNumber recomputes the roulette outcome from a revealed server
// seed and returns it together with the full digest for display.
func VerifyWinningNumber(serverSeed, clientSeed string, nonce int64) (int, string, error) {
	n, err := WinningNumber(serverSeed, clientSeed, nonce)
	if err != nil {
		return 0, "", err
	}
	return n, hmacHex(serverSeed, fmt.Sprintf("%s-%d", clientSeed, nonce)), nil
}

// Digest returns the raw HMAC-SHA256 digest over message keyed by the server
// seed. Game packages derive per-round values (rolls, mine positions) from
// its bytes.
func Digest(serverSeed, message string) ([]byte, error) {
	if serverSeed == "" {
		return nil, fmt.Errorf("%w: empty server seed", ErrInvalidSeed)
	}
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	return h.Sum(nil), nil
}

// SeedHash returns the SHA-256 commitment of a server seed, published before
// the round so the seed reveal can be checked afterwards.
func SeedHash(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

func hmacHex(key, message string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
