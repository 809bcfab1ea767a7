package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/kdev47/stakehouse/go/internal/gateway"
	"github.com/kdev47/stakehouse/go/internal/ledger"
	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/profiles"
	"github.com/kdev47/stakehouse/go/internal/settle"
)

// HTTPStateSource fetches synchronization snapshots from the gateway's
// state endpoint.
type HTTPStateSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStateSource(baseURL string) *HTTPStateSource {
	return &HTTPStateSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPStateSource) GetGameState(ctx context.Context, game models.GameType) (*gateway.GameStateResponse, error) {
	url := fmt.Sprintf("%s/api/games/%s/state", s.baseURL, game)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch game state: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("state endpoint returned %s", resp.Status)
	}
	var state gateway.GameStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode game state: %w", err)
	}
	return &state, nil
}

// SessionConfig wires one user's live view of a game.
type SessionConfig struct {
	Game       models.GameType
	UserID     uuid.UUID
	BaseURL    string // gateway HTTP address, e.g. http://localhost:8080
	Feed       NATSFeedConfig
	ProfileTTL time.Duration
	StallPoll  time.Duration
}

func DefaultSessionConfig(game models.GameType, userID uuid.UUID, baseURL string) SessionConfig {
	return SessionConfig{
		Game:       game,
		UserID:     userID,
		BaseURL:    baseURL,
		Feed:       DefaultNATSFeedConfig(),
		ProfileTTL: 5 * time.Minute,
		StallPoll:  2 * time.Second,
	}
}

// Session composes the JetStream change feed, the state endpoint and a
// profile cache into a running synchronizer for one user, with a watchdog
// that resyncs the projection when the feed goes quiet past the current
// phase's window.
type Session struct {
	cfg    SessionConfig
	feed   *NATSFeed
	sync   *Synchronizer
	clock  clockwork.Clock
	logger zerolog.Logger
}

func NewSession(cfg SessionConfig, profileSource profiles.Getter, adjuster settle.BalanceAdjuster, logger zerolog.Logger) (*Session, error) {
	feed, err := NewNATSFeed(cfg.Feed)
	if err != nil {
		return nil, fmt.Errorf("failed to connect change feed: %w", err)
	}
	clock := clockwork.NewRealClock()
	sync := NewSynchronizer(
		cfg.Game,
		feed,
		NewHTTPStateSource(cfg.BaseURL),
		profiles.NewCache(profileSource, cfg.ProfileTTL, clock),
		settle.NewReconciler(cfg.UserID, adjuster),
		clock,
		logger,
	)
	return &Session{
		cfg:    cfg,
		feed:   feed,
		sync:   sync,
		clock:  clock,
		logger: logger.With().Str("component", "session").Str("game_type", string(cfg.Game)).Logger(),
	}, nil
}

// Run starts the synchronizer and blocks watching for a stalled feed until
// the context ends.
func (s *Session) Run(ctx context.Context) error {
	if err := s.sync.Start(ctx); err != nil {
		return err
	}
	defer s.sync.Stop()
	defer s.feed.Close()

	ticker := s.clock.NewTicker(s.cfg.StallPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := s.sync.CheckStalled(); err == nil {
				continue
			}
			s.logger.Warn().Msg("feed stalled past the phase window, resyncing")
			if err := s.sync.Resync(ctx); err != nil {
				s.logger.Error().Err(err).Msg("stall resync failed")
			}
		}
	}
}

// View assembles the render model for the session's user.
type View struct {
	Round         *models.Round
	CountdownSec  float64
	Multiplier    float64
	Bets          []models.Bet
	MyTotals      map[string]ledger.KindTotal
	History       []models.HistoryEntry
	JoinedSettled bool
}

// View snapshots the projection for rendering. JoinedSettled tells the UI to
// show the resolved outcome statically instead of replaying the animation.
func (s *Session) View() View {
	return View{
		Round:         s.sync.CurrentRound(),
		CountdownSec:  s.sync.Countdown(),
		Multiplier:    s.sync.Multiplier(),
		Bets:          s.sync.Bets(),
		MyTotals:      s.sync.UserBetTotals(s.cfg.UserID),
		History:       s.sync.History(),
		JoinedSettled: s.sync.JoinedSettled(),
	}
}
