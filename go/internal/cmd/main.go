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
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dmehra21/codebid/go/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found")
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var st store.Store
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := setupDatabase()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up database")
		}
		defer db.Close()
		st = store.NewPostgres(db)
	default:
		st = store.NewMemory()
	}

	services, err := setupServices(cfg, st, clockwork.NewRealClock())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}
	defer services.Broadcaster.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services.Engine.Controller.Start(ctx)
	go services.Automaton.Start(ctx)
	go services.Manager.Start(ctx)
	if err := services.Consumer.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start event consumer")
	}
	defer services.Consumer.Stop()

	server := setupServer(cfg, services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
