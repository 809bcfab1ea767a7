package events

import (
	"encoding/json"
	"time"

	"github.com/kdev47/stakehouse/go/internal/models"
)

// Event types carried on the change feed. The feed is a row-change stream:
// each event carries the full row image after (or before, for deletes) the
// mutation, in receipt order per round.
const (
	TypeRoundInsert = "RoundInsert"
	TypeRoundUpdate = "RoundUpdate"
	TypeBetInsert   = "BetInsert"
	TypeBetUpdate   = "BetUpdate"
	TypeBetDelete   = "BetDelete"
)

// Envelope is the wire form of one change event as published to the feed and
// fanned out to websocket clients.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	GameType  string          `json:"gameType"`
	RoundID   string          `json:"roundId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// RoundPayload is the row image for round insert/update events. The server
// seed is stripped until the round is terminal.
type RoundPayload struct {
	Round models.Round `json:"round"`
}

// BetPayload is the row image for bet events. For deletes only the ID and
// round ID are meaningful.
type BetPayload struct {
	Bet models.Bet `json:"bet"`
}

// Redacted returns a copy of the round safe to publish: the server seed is
// withheld while the round can still accept or resolve bets.
func Redacted(r models.Round) models.Round {
	if !r.Status.IsTerminal() {
		r.ServerSeed = ""
	}
	return r
}
