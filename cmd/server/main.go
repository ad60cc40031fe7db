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

	router "crackthecode/internal/adapters/http"
	"crackthecode/internal/adapters/ws"
	"crackthecode/internal/app"
	"crackthecode/internal/config"
	"crackthecode/internal/game"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	// The controller is the notifier for every session, so it exists before
	// the manager and gets the orchestrator attached afterwards.
	registry := app.NewRegistry()
	ctl := ws.NewController(registry, cfg.ReadLimit)
	rooms := game.NewManager(ctl)
	orch := &app.Orchestrator{Registry: registry, Rooms: rooms}
	ctl.Attach(orch)

	go rooms.RunJanitor(ctx, cfg.JanitorInterval, cfg.RoomTTL, ctl.PushRoomList)

	r := router.SetupRouter(ctx, cfg, ctl, rooms)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("crackthecode server started")
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
