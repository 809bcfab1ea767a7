package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// configure zerolog console output and level
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	config := &Config{}
	configPath := getEnv("CONFIG_PATH", "config.yaml")
	if loaded, err := loadConfig(configPath); err == nil {
		config = loaded
	} else {
		log.Warn().Err(err).Str("path", configPath).Msg("running on default config")
	}

	// signal-aware context
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, dsn, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("setup database")
	}
	defer pool.Close()

	services, err := setupServices(pool, dsn, config)
	if err != nil {
		log.Fatal().Err(err).Msg("setup services")
	}
	defer func() {
		if err := services.Publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	server := setupServer(services)

	errCh := make(chan error, 4)
	go func() {
		log.Info().Msg("starting croupier")
		errCh <- services.Croupier.Run(ctx)
	}()
	go func() {
		log.Info().Msg("starting outbox listener")
		errCh <- services.Listener.Start(ctx)
	}()
	go func() {
		log.Info().Msg("starting gateway")
		errCh <- services.Gateway.Start(ctx)
	}()
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting http server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// wait for shutdown or a component failure
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("component exited unexpectedly")
		}
		stop()
	}

	// allow in-flight round advances and broadcasts to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := services.Listener.Stop(); err != nil {
		log.Error().Err(err).Msg("stop outbox listener")
	}
	log.Info().Msg("graceful shutdown complete")
}
