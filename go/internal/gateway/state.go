package gateway

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kdev47/stakehouse/go/internal/events"
	"github.com/kdev47/stakehouse/go/internal/fair"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/round"
)

// GameStateResponse is the full synchronization snapshot a client needs to
// join or rejoin a game: the current round, its live bets, the trailing
// outcome history and the server clock to anchor countdowns.
type GameStateResponse struct {
	GameType     string                `json:"game_type"`
	Round        *models.Round         `json:"round,omitempty"`
	CountdownSec float64               `json:"countdown_sec"`
	Multiplier   float64               `json:"multiplier,omitempty"`
	Bets         []models.Bet          `json:"bets"`
	History      []models.HistoryEntry `json:"history"`
	ServerTime   time.Time             `json:"server_time"`
}

// VerifyResponse lets a player recompute a settled round's outcome from the
// revealed seed material.
type VerifyResponse struct {
	RoundID       string   `json:"round_id"`
	GameType      string   `json:"game_type"`
	ServerSeed    string   `json:"server_seed"`
	SeedHash      string   `json:"seed_hash"`
	ClientSeed    string   `json:"client_seed"`
	Nonce         int64    `json:"nonce"`
	Digest        string   `json:"digest"`
	WinningNumber *int     `json:"winning_number,omitempty"`
	CrashPoint    *float64 `json:"crash_point,omitempty"`
}

// RoundSource is the slice of the rounds repository the state provider
// reads. *rounds.Repository satisfies it.
type RoundSource interface {
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetLatestRound(ctx context.Context, gameType models.GameType) (*models.Round, error)
	ListBetsByRound(ctx context.Context, roundID uuid.UUID) ([]models.Bet, error)
	ListRecentRounds(ctx context.Context, gameType models.GameType, limit int32) ([]models.Round, error)
}

// StateProvider builds synchronization snapshots from the authoritative
// store.
type StateProvider struct {
	source       RoundSource
	clock        clockwork.Clock
	historyDepth int32
}

func NewStateProvider(source RoundSource) *StateProvider {
	return &StateProvider{
		source:       source,
		clock:        clockwork.NewRealClock(),
		historyDepth: 20,
	}
}

// GetGameState returns the current snapshot for one game. The server seed is
// withheld while the round is live.
func (p *StateProvider) GetGameState(ctx context.Context, game models.GameType) (*GameStateResponse, error) {
	current, err := p.source.GetLatestRound(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("failed to load current round: %w", err)
	}

	bets, err := p.source.ListBetsByRound(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load round bets: %w", err)
	}

	recent, err := p.source.ListRecentRounds(ctx, game, p.historyDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to load round history: %w", err)
	}
	history := make([]models.HistoryEntry, 0, len(recent))
	for _, r := range recent {
		history = append(history, models.HistoryEntry{
			WinningNumber: r.WinningNumber,
			CrashPoint:    r.CrashPoint,
		})
	}

	// A throwaway projection renders the countdown and multiplier exactly
	// the way a synced client would.
	m := round.NewMachine(p.clock)
	if _, err := m.Observe(*current); err != nil {
		return nil, err
	}

	redacted := events.Redacted(*current)
	resp := &GameStateResponse{
		GameType:     string(game),
		Round:        &redacted,
		CountdownSec: m.Countdown(),
		Bets:         bets,
		History:      history,
		ServerTime:   p.clock.Now(),
	}
	if game == models.GameTypeCrash {
		resp.Multiplier = m.Multiplier()
	}
	return resp, nil
}

// VerifyRound reveals a terminal round's seed material and recomputes its
// outcome. Live rounds refuse verification: the server seed stays secret
// until settlement.
func (p *StateProvider) VerifyRound(ctx context.Context, roundID uuid.UUID) (*VerifyResponse, error) {
	r, err := p.source.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if !r.Status.IsTerminal() {
		return nil, fmt.Errorf("round %s has not settled; seed not yet revealed", r.ID)
	}

	resp := &VerifyResponse{
		RoundID:    r.ID.String(),
		GameType:   string(r.GameType),
		ServerSeed: r.ServerSeed,
		SeedHash:   fair.SeedHash(r.ServerSeed),
		ClientSeed: r.ClientSeed,
		Nonce:      r.Nonce,
	}

	switch r.GameType {
	case models.GameTypeRoulette:
		n, digest, err := fair.VerifyWinningNumber(r.ServerSeed, r.ClientSeed, r.Nonce)
		if err != nil {
			return nil, err
		}
		resp.WinningNumber = &n
		resp.Digest = digest
	case models.GameTypeCrash:
		point, err := fair.CrashPoint(r.ServerSeed, r.ClientSeed, r.Nonce)
		if err != nil {
			return nil, err
		}
		digest, err := fair.Digest(r.ServerSeed, fmt.Sprintf("%s:%d", r.ClientSeed, r.Nonce))
		if err != nil {
			return nil, err
		}
		resp.CrashPoint = &point
		resp.Digest = hex.EncodeToString(digest)
	default:
		return nil, fmt.Errorf("unknown game type: %s", r.GameType)
	}

	return resp, nil
}
