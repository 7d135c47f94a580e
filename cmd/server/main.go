package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "roomdesk/internal/adapters/http"
	"roomdesk/internal/app"
	"roomdesk/internal/config"
	"roomdesk/internal/persist"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var snaps app.SnapshotStore
	if cfg.Snapshot.Enabled {
		fs := persist.NewFileStore(cfg.Snapshot.Path)
		snaps = fs
		log.Info().Str("path", fs.Path()).Msg("snapshot persistence enabled")
	}

	svc := app.NewService(app.Options{
		Rules:        cfg.Rules(),
		DefaultTTL:   cfg.Rooms.DefaultTTL,
		ExtendBy:     cfg.Rooms.ExtendBy,
		ExtendPolicy: cfg.ExtendPolicy(),
		OnePerOwner:  cfg.Rooms.OnePerOwner,
		FlowIdleTTL:  cfg.Flow.IdleTTL,
	}, snaps)
	defer svc.Close()

	if err := svc.Restore(); err != nil {
		log.Error().Err(err).Msg("starting with an empty registry")
	}

	go svc.SweepSessions(ctx, time.Minute)

	r := router.SetupRouter(cfg, svc)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("roomdesk server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
