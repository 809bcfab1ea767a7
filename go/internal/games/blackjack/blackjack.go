// Package blackjack implements a single-seat blackjack hand dealt from a
// provably fair shoe. The full hand plays out server-side; the caller drives
// the player's decisions and reads the settled result.
package blackjack

import (
	"errors"
	"fmt"

	"github.com/kdev47/stakehouse/go/internal/fair"
)

// Suit and Rank identify a playing card. Suits never affect value; they are
// carried for display.
type Suit string

const (
	SuitHearts   Suit = "HEARTS"
	SuitDiamonds Suit = "DIAMONDS"
	SuitClubs    Suit = "CLUBS"
	SuitSpades   Suit = "SPADES"
)

type Rank string

var ranks = []Rank{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// Value returns the card's pip value, counting aces high. HandValue demotes
// aces as needed.
func (c Card) Value() int {
	switch c.Rank {
	case "J", "Q", "K":
		return 10
	case "A":
		return 11
	case "10":
		return 10
	default:
		return int(c.Rank[0] - '0')
	}
}

// HandValue returns the best blackjack total for a hand, counting each ace as
// 11 and demoting to 1 while the total busts.
func HandValue(hand []Card) int {
	total, aces := 0, 0
	for _, c := range hand {
		total += c.Value()
		if c.Rank == "A" {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// Result is the closed set of hand outcomes.
type Result string

const (
	ResultWin       Result = "WIN"
	ResultLose      Result = "LOSE"
	ResultPush      Result = "PUSH"
	ResultBlackjack Result = "BLACKJACK"
	ResultBust      Result = "BUST"
)

// Phase tracks whose turn it is.
type Phase string

const (
	PhasePlayerTurn Phase = "PLAYER_TURN"
	PhaseFinished   Phase = "FINISHED"
)

const (
	numDecks       = 6
	dealerStandsOn = 17
)

var (
	ErrNotPlayerTurn = errors.New("blackjack: not the player's turn")
	ErrCannotDouble  = errors.New("blackjack: double down only on the first two cards")
)

// Hand is one dealt blackjack hand. Construct with Deal; drive with Hit,
// Stand and Double; settlement multipliers come from Settle.
type Hand struct {
	shoe    []Card
	next    int
	player  []Card
	dealer  []Card
	phase   Phase
	stake   float64
	doubled bool
}

// Deal shuffles a six-deck shoe from the seed tuple and deals the opening two
// cards to each side. A dealt natural 21 ends the hand immediately.
func Deal(serverSeed, clientSeed string, nonce int64, stake float64) (*Hand, error) {
	if stake <= 0 {
		return nil, fmt.Errorf("blackjack: stake must be positive, got %v", stake)
	}
	r, err := fair.NewRand(serverSeed, clientSeed, nonce)
	if err != nil {
		return nil, err
	}

	h := &Hand{shoe: shuffledShoe(r), phase: PhasePlayerTurn, stake: stake}
	h.player = append(h.player, h.draw())
	h.dealer = append(h.dealer, h.draw())
	h.player = append(h.player, h.draw())
	h.dealer = append(h.dealer, h.draw())

	if HandValue(h.player) == 21 {
		h.finishDealer()
	}
	return h, nil
}

func shuffledShoe(r *fair.Rand) []Card {
	suits := []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}
	shoe := make([]Card, 0, numDecks*52)
	for d := 0; d < numDecks; d++ {
		for _, s := range suits {
			for _, rk := range ranks {
				shoe = append(shoe, Card{Suit: s, Rank: rk})
			}
		}
	}
	for i := len(shoe) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		shoe[i], shoe[j] = shoe[j], shoe[i]
	}
	return shoe
}

func (h *Hand) draw() Card {
	c := h.shoe[h.next]
	h.next++
	return c
}

// Hit deals the player one card. Busting ends the hand without a dealer turn.
func (h *Hand) Hit() error {
	if h.phase != PhasePlayerTurn {
		return ErrNotPlayerTurn
	}
	h.player = append(h.player, h.draw())
	if HandValue(h.player) > 21 {
		h.phase = PhaseFinished
	}
	return nil
}

// Stand ends the player's turn and plays out the dealer.
func (h *Hand) Stand() error {
	if h.phase != PhasePlayerTurn {
		return ErrNotPlayerTurn
	}
	h.finishDealer()
	return nil
}

// Double doubles the stake, deals exactly one more card, then stands. Only
// available on the opening two cards.
func (h *Hand) Double() error {
	if h.phase != PhasePlayerTurn {
		return ErrNotPlayerTurn
	}
	if len(h.player) != 2 {
		return ErrCannotDouble
	}
	h.stake *= 2
	h.doubled = true
	h.player = append(h.player, h.draw())
	if HandValue(h.player) > 21 {
		h.phase = PhaseFinished
		return nil
	}
	h.finishDealer()
	return nil
}

// finishDealer draws the dealer to 17 or better and ends the hand. The dealer
// stands on all 17s.
func (h *Hand) finishDealer() {
	for HandValue(h.dealer) < dealerStandsOn {
		h.dealer = append(h.dealer, h.draw())
	}
	h.phase = PhaseFinished
}

// Player and Dealer expose the current hands.
func (h *Hand) Player() []Card { return h.player }
func (h *Hand) Dealer() []Card { return h.dealer }

// Phase reports whether the hand still awaits player decisions.
func (h *Hand) CurrentPhase() Phase { return h.phase }

// Stake returns the live stake, doubled if the player doubled down.
func (h *Hand) Stake() float64 { return h.stake }

// Result classifies the finished hand. A two-card 21 outranks an ordinary
// win; dealer bust counts as a win unless the player already busted.
func (h *Hand) Result() (Result, error) {
	if h.phase != PhaseFinished {
		return "", errors.New("blackjack: hand still in play")
	}
	player := HandValue(h.player)
	dealer := HandValue(h.dealer)
	natural := len(h.player) == 2 && !h.doubled && player == 21

	switch {
	case player > 21:
		return ResultBust, nil
	case natural:
		return ResultBlackjack, nil
	case dealer > 21:
		return ResultWin, nil
	case player > dealer:
		return ResultWin, nil
	case player < dealer:
		return ResultLose, nil
	default:
		return ResultPush, nil
	}
}

// Settle returns the stake-inclusive payout for a finished hand. Blackjack
// pays 3:2, a win pays even money, a push returns the stake.
func (h *Hand) Settle() (float64, error) {
	result, err := h.Result()
	if err != nil {
		return 0, err
	}
	switch result {
	case ResultBlackjack:
		return h.stake * 2.5, nil
	case ResultWin:
		return h.stake * 2, nil
	case ResultPush:
		return h.stake, nil
	case ResultLose, ResultBust:
		return 0, nil
	default:
		return 0, fmt.Errorf("blackjack: unknown result %q", result)
	}
}
