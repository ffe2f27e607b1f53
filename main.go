package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsprep/user-api/internal/api"
	"github.com/opsprep/user-api/internal/auth"
	"github.com/opsprep/user-api/internal/config"
	"github.com/opsprep/user-api/internal/database"
	"github.com/opsprep/user-api/internal/logger"
	"github.com/opsprep/user-api/internal/monitoring"
	"github.com/opsprep/user-api/internal/services"
	"github.com/opsprep/user-api/internal/store"
	"github.com/opsprep/user-api/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up the audit database
	db, err := database.New(cfg.AuditDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audit database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply audit database migrations")
	}

	// Set up the live event feed hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up core state: the seeded in-memory user store and the token service
	userStore := store.NewUserStore()
	tokens := auth.NewTokenService(cfg.JWTSecret)
	auditService := services.NewAuditService(db, hub)

	// Set up and run the background audit retention pruner
	pruner, err := monitoring.NewPruner(auditService, cfg.PruneSchedule, cfg.AuditMaxAge)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.PruneSchedule).Msg("Invalid audit prune schedule")
	}
	go pruner.Run()

	// Set up router
	router := api.NewRouter(cfg, tokens, userStore, auditService, hub)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	pruner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
