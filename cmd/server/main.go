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

	router "github.com/flathead/streamhub/internal/adapters/http"
	"github.com/flathead/streamhub/internal/adapters/rtc"
	"github.com/flathead/streamhub/internal/app"
	"github.com/flathead/streamhub/internal/app/orch"
	"github.com/flathead/streamhub/internal/app/peers"
	"github.com/flathead/streamhub/internal/app/streams"
	"github.com/flathead/streamhub/internal/config"
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

	registry := app.NewRegistry()
	rooms := app.NewRoomManager()
	streamReg := streams.NewRegistry()
	peerMgr := peers.NewManager(rtc.Factory(cfg.StunServers), streamReg)
	stats := app.NewAggregator(registry)

	o := &orch.Orchestrator{
		Registry: registry,
		Rooms:    rooms,
		Peers:    peerMgr,
		Streams:  streamReg,
		Router: &app.Router{
			Registry: registry,
			Rooms:    rooms,
			Policy:   app.SimplePolicy{},
		},
		Signaling: app.NewCoordinator(peerMgr),
		Stats:     stats,
	}

	go stats.Run(ctx, cfg.StatsInterval)

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("streamhub started")
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
