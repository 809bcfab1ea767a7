// Package dice implements the over/under dice game: a roll in [0, 99]
// derived from the round digest, paid at 99 divided by the win chance.
package dice

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kdev47/stakehouse/go/internal/fair"
)

// Direction is the side of the target the player bets on.
type Direction string

const (
	Over  Direction = "OVER"
	Under Direction = "UNDER"
)

const (
	rollRange = 100
	// payoutScale fixes the house edge: a fair book would pay 100/chance.
	payoutScale = 99.0
)

// Result is one resolved dice bet.
type Result struct {
	Roll       int       `json:"roll"`
	Target     int       `json:"target"`
	Direction  Direction `json:"direction"`
	Won        bool      `json:"won"`
	Multiplier float64   `json:"multiplier"`
}

// Payout returns the stake-inclusive amount the bet pays.
func (r Result) Payout(stake float64) float64 {
	if !r.Won {
		return 0
	}
	return stake * r.Multiplier
}

// Roll derives the round's roll from HMAC over "dice:{clientSeed}:{nonce}":
// the first 32 digest bits reduced mod 100.
func Roll(serverSeed, clientSeed string, nonce int64) (int, error) {
	if clientSeed == "" {
		return 0, fmt.Errorf("%w: empty client seed", fair.ErrInvalidSeed)
	}
	digest, err := fair.Digest(serverSeed, fmt.Sprintf("dice:%s:%d", clientSeed, nonce))
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(digest[:4]) % rollRange), nil
}

// Multiplier returns the payout multiplier for a target and direction, 99
// divided by the number of winning rolls. Targets that leave no winning roll
// are rejected by Play.
func Multiplier(target int, dir Direction) float64 {
	chance := winChance(target, dir)
	if chance == 0 {
		return 0
	}
	// Floored to cents, matching the published payout display.
	return math.Floor(payoutScale/float64(chance)*100) / 100
}

func winChance(target int, dir Direction) int {
	switch dir {
	case Over:
		return rollRange - 1 - target
	case Under:
		return target
	default:
		return 0
	}
}

// Play resolves one bet. Over wins on roll > target, under on roll < target;
// the target itself always loses. Targets must leave at least one winning
// and one losing roll.
func Play(serverSeed, clientSeed string, nonce int64, target int, dir Direction) (*Result, error) {
	if dir != Over && dir != Under {
		return nil, fmt.Errorf("dice: unknown direction %q", dir)
	}
	chance := winChance(target, dir)
	if chance < 1 || chance >= rollRange {
		return nil, fmt.Errorf("dice: target %d leaves no book for %s", target, dir)
	}

	roll, err := Roll(serverSeed, clientSeed, nonce)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Roll:       roll,
		Target:     target,
		Direction:  dir,
		Multiplier: Multiplier(target, dir),
	}
	switch dir {
	case Over:
		res.Won = roll > target
	case Under:
		res.Won = roll < target
	}
	return res, nil
}
