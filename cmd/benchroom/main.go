package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/navikt/benchroom/internal/api"
	"github.com/navikt/benchroom/internal/authz"
	"github.com/navikt/benchroom/internal/config"
	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/repository"
	"github.com/navikt/benchroom/internal/service"
	"github.com/navikt/benchroom/internal/support"
	"github.com/navikt/benchroom/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	repo, err := repository.NewRepository(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize repository")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing repository")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	occupancyService := service.NewOccupancyService(repo, cfg.Room.ID, cfg.Room.BenchList())
	seedCtx, cancelSeed := context.WithTimeout(ctx, 10*time.Second)
	if _, err := occupancyService.EnsureRoom(seedCtx); err != nil {
		cancelSeed()
		logging.Fatal().Err(err).Msg("Failed to seed room")
	}
	cancelSeed()

	supportService := service.NewSupportService()

	enforcer, err := authz.NewEnforcer(cfg.Auth)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	auth := web.NewAuthMiddleware(cfg.Auth, enforcer)

	sseManager := web.NewSSEManager()
	hub := support.NewHub(supportService)

	// Every store and session change refreshes the pages; ended sessions also drop their chat clients
	occupancyService.RegisterUpdateCallback(sseManager.Notify)
	supportService.RegisterUpdateCallback(sseManager.Notify)
	supportService.RegisterUpdateCallback(func(change models.Change) {
		session, err := supportService.GetSession(ctx, change.ID)
		if err == nil && !session.Active {
			hub.CloseChannel(session.Channel)
		}
	})

	go func() {
		if err := occupancyService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Change watcher stopped")
		}
	}()

	webHandler, err := web.NewHandler(occupancyService, supportService, sseManager)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize web handler")
	}

	adminHandler, err := web.NewAdminHandler(occupancyService, supportService, auth)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize admin handler")
	}

	mux := api.SetupRoutes(api.Dependencies{
		Occupancy:          occupancyService,
		Support:            supportService,
		Store:              repo,
		Guard:              auth,
		WebhookSecret:      cfg.Support.WebhookSecret,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})
	webHandler.SetupRoutes(mux)
	adminHandler.SetupAdminRoutes(mux)
	mux.Handle("/support/ws", hub)
	mux.HandleFunc("/admin/support/ws", auth.Require(authz.ObjectSupport, authz.ActionRead, hub.ServeAdmin))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      web.WrapMuxWithMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable write timeout for SSE and websocket connections
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logging.Info().
			Str("port", cfg.Server.Port).
			Str("room", cfg.Room.ID).
			Strs("benches", cfg.Room.Benches).
			Msg("Starting benchroom server")
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("Error starting server")
		}

	case <-ctx.Done():
		logging.Info().Msg("Shutting down server...")

		// Close long-lived connections first so Shutdown does not wait on them
		webHandler.Shutdown()
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			logging.Error().Err(err).Msg("Error shutting down server")
		}

		logging.Info().Msg("Server gracefully stopped")
	}
}
