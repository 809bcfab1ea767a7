package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/kdev47/stakehouse/go/internal/croupier"
	"github.com/kdev47/stakehouse/go/internal/games"
	"github.com/kdev47/stakehouse/go/internal/gateway"
	"github.com/kdev47/stakehouse/go/internal/outbox"
	"github.com/kdev47/stakehouse/go/internal/profiles"
	"github.com/kdev47/stakehouse/go/internal/rounds"
	"github.com/kdev47/stakehouse/go/internal/wallet"
)

type Services struct {
	Rounds    *rounds.App
	Games     *games.Service
	Croupier  *croupier.Croupier
	Listener  *outbox.Listener
	Publisher *outbox.JetStreamPublisher
	Gateway   *gateway.Service

	BetsHandler  *gateway.BetsHandler
	GamesHandler *gateway.GamesHandler
}

func setupServices(pool *pgxpool.Pool, dsn string, config *Config) (*Services, error) {
	// Database layer -> Repository layer -> App layer -> Transport layer

	roundsRepo := rounds.NewRepository(pool)
	walletRepo := wallet.NewRepository(pool, log.Logger)
	outboxRepo := outbox.NewRepository(pool)
	roundsApp := rounds.NewApp(roundsRepo, walletRepo, outboxRepo, log.Logger)

	// Single-pass games draw seeds from the player's profile row, mixed
	// with the house seed. The house seed is required: the games cannot
	// invent fairness material.
	serverSeed := os.Getenv("GAMES_SERVER_SEED")
	seeds, err := profiles.NewSeedSource(pool, serverSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to create seed source: %w", err)
	}
	gamesService := games.NewService(walletRepo, seeds, log.Logger)

	// Croupier: the authoritative round driver.
	croupierCfg := croupier.DefaultConfig()
	if len(config.Casino.EnabledGames) > 0 {
		croupierCfg.Games, err = gameTypes(config.Casino.EnabledGames)
		if err != nil {
			return nil, err
		}
	}
	if config.Casino.ClientSeed != "" {
		croupierCfg.ClientSeed = config.Casino.ClientSeed
	}
	if config.Casino.NumWorkers > 0 {
		croupierCfg.NumWorkers = config.Casino.NumWorkers
	}
	if config.Casino.BatchSize > 0 {
		croupierCfg.BatchSize = config.Casino.BatchSize
	}
	croupierSvc := croupier.New(roundsRepo, roundsApp, croupier.NewPgTx(pool), croupierCfg)

	// Outbox drain: LISTEN/NOTIFY into the JetStream feed.
	jsCfg := outbox.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	publisher, err := outbox.NewJetStreamPublisher(jsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
	}

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dsn
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}
	metricPublisher := outbox.NewMetricPublisher(publisher, &outbox.NoOpMetricsCollector{})
	listener, err := outbox.NewListener(outboxRepo, metricPublisher, ltCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox listener: %w", err)
	}

	// Gateway: feed consumer plus websocket fan-out plus state endpoints.
	gwCfg := gateway.DefaultConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		gwCfg.JetStreamConfig.URL = url
	}
	provider := gateway.NewStateProvider(roundsRepo)
	gatewaySvc, err := gateway.NewService(gwCfg, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway service: %w", err)
	}

	return &Services{
		Rounds:       roundsApp,
		Games:        gamesService,
		Croupier:     croupierSvc,
		Listener:     listener,
		Publisher:    publisher,
		Gateway:      gatewaySvc,
		BetsHandler:  gateway.NewBetsHandler(roundsApp),
		GamesHandler: gateway.NewGamesHandler(gamesService),
	}, nil
}
