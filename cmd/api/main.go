package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/emilythestrangee/caption-rater/backend/internal/config"
	"github.com/emilythestrangee/caption-rater/backend/internal/database"
	"github.com/emilythestrangee/caption-rater/backend/internal/handlers"
	"github.com/emilythestrangee/caption-rater/backend/internal/logging"
	"github.com/emilythestrangee/caption-rater/backend/internal/markers"
	"github.com/emilythestrangee/caption-rater/backend/internal/metrics"
	"github.com/emilythestrangee/caption-rater/backend/internal/rating"
	"github.com/emilythestrangee/caption-rater/backend/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) (database.Service, error) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// setupMarkers uses redis when REDIS_URL is set and an in-process store otherwise.
func setupMarkers(cfg *config.Config) (rating.MarkerStore, *goredis.Client, error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, last seen markers are kept in memory")
		return markers.NewMemoryStore(), nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := markers.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return markers.NewRedisStore(client, cfg.MarkerTTL), client, nil
}

func runGracefulShutdown(srv *http.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	if err := run(cfg); err != nil {
		logging.WithError(err).Error("Server stopped")
		os.Exit(1)
	}
}

// run owns every resource it opens, so they are closed on all return paths.
func run(cfg *config.Config) error {
	markerStore, redisClient, err := setupMarkers(cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	db, err := setupDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	captions := database.NewCaptionRepository(db.GetDB())
	sessions := rating.NewRegistry(
		captions,
		database.NewVoteRepository(db.GetDB()),
		markerStore,
		rating.Options{
			BatchSize:  cfg.RateBatchSize,
			MinVoteGap: cfg.RateMinVoteGap,
			NoticeTTL:  cfg.RateNoticeTTL,
			Clock:      clockwork.NewRealClock(),
			Logger:     logging.Logger,
			Metrics:    metrics.New(reg),
		},
	)

	handler := handlers.NewHandler(handlers.Deps{
		Profiles:  database.NewProfileRepository(db.GetDB()),
		Verifier:  handlers.NewGoogleVerifier(cfg.GoogleClientID),
		Gallery:   captions,
		Sessions:  sessions,
		JWTSecret: []byte(cfg.JWTSecret),
		TokenTTL:  cfg.TokenTTL,
	})

	srv := server.New(db, handler, server.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins(),
		JWTSecret:      []byte(cfg.JWTSecret),
		Gatherer:       reg,
	}).HTTPServer()

	done := runGracefulShutdown(srv)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	return nil
}
