// Package main provides the space server binary: the WebSocket presence and
// room-state coordination service.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jaehyeon-kim/agora/internal/config"
	"github.com/jaehyeon-kim/agora/internal/observability"
	"github.com/jaehyeon-kim/agora/internal/server"
	"github.com/jaehyeon-kim/agora/internal/space/knock"
	"github.com/jaehyeon-kim/agora/internal/space/proximity"
	"github.com/jaehyeon-kim/agora/internal/space/roomstate"
	"github.com/jaehyeon-kim/agora/internal/space/session"
	"github.com/jaehyeon-kim/agora/internal/space/world"
	"github.com/jaehyeon-kim/agora/internal/spaceserver"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	roomsFile := flag.String("rooms", "", "path to room catalog YAML; overrides world.rooms_file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *roomsFile != "" {
		cfg.World.RoomsFile = *roomsFile
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting space server",
		zap.String("addr", cfg.Server.Addr()),
	)

	// Load room catalog
	worldStart := time.Now()
	catalog, err := world.LoadCatalogFromFile(cfg.World.RoomsFile)
	if err != nil {
		logger.Fatal("loading room catalog", zap.Error(err))
	}
	worldMgr, err := world.NewManager(catalog)
	if err != nil {
		logger.Fatal("creating world manager", zap.Error(err))
	}
	logger.Info("room catalog loaded",
		zap.Int("rooms", worldMgr.RoomCount()),
		zap.Duration("elapsed", time.Since(worldStart)),
	)

	// Create managers
	sessions := session.NewRegistry()
	tracker := proximity.NewTracker(cfg.Presence.ExpireTicks)
	knocks := knock.NewNegotiator(sessions)
	timers := roomstate.NewTimerManager()
	stopwatches := roomstate.NewStopwatchManager()
	lecterns := roomstate.NewLecternManager()

	bcast := spaceserver.NewBroadcaster(sessions, logger)
	transitions := spaceserver.NewTransitionCoordinator(
		sessions, worldMgr, tracker, knocks,
		timers, stopwatches, lecterns,
		bcast, logger, cfg.Presence.EmptyRoomDebounce,
	)
	presence := spaceserver.NewPresenceCoordinator(
		sessions, tracker, worldMgr, transitions,
		bcast, logger, cfg.Presence.TileSize, cfg.Presence.Radius,
	)

	svc := spaceserver.NewService(
		sessions, worldMgr, presence, transitions, knocks,
		timers, stopwatches, lecterns, bcast, logger,
	)

	// Proximity tick loop
	tickLoop := spaceserver.NewTickLoop(cfg.Presence.TickInterval)
	tickLoop.Register("presence", presence.Tick)

	// HTTP router
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	svc.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	tickCtx, tickCancel := context.WithCancel(ctx)
	lifecycle.Add("presence-tick", &server.FuncService{
		StartFn: func() error {
			tickLoop.Start(tickCtx)
			<-tickCtx.Done()
			return nil
		},
		StopFn: tickCancel,
	})

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("http server listening",
				zap.String("addr", cfg.Server.Addr()),
			)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			svc.Stop()
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	logger.Info("space server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
