package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linguahub/quiz-backend/internal/config"
	"github.com/linguahub/quiz-backend/internal/database"
	"github.com/linguahub/quiz-backend/internal/handler"
	"github.com/linguahub/quiz-backend/internal/logger"
	"github.com/linguahub/quiz-backend/internal/repository"
	"github.com/linguahub/quiz-backend/internal/router"
	"github.com/linguahub/quiz-backend/internal/service"
	"github.com/linguahub/quiz-backend/internal/validator"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Lingua Quiz Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	quizCache := repository.NewQuizCache(rdb, quizRepo, cfg.QuizCacheTTL, log)

	// ─── Initialize Services ──────────────────────────────────────────
	events := service.NewEventPublisher(rdb, log)
	authService := service.NewAuthService(cfg, userRepo, rdb, log)
	quizService := service.NewQuizService(quizRepo, quizCache, log)
	attemptService := service.NewAttemptService(quizCache, quizRepo, events, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, cfg),
		Quiz:    handler.NewQuizHandler(quizService),
		Attempt: handler.NewAttemptHandler(attemptService),
		Monitor: handler.NewMonitorHandler(quizService, events, log, cfg.AllowedOrigins),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": handler.PingFunc(pool.Ping),
			"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		}, log),
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Published quizzes go into Redis before traffic arrives so the first
	// burst of attempts does not all miss at once.
	if ids, err := quizRepo.ListPublishedIDs(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	} else if warmed, err := quizCache.Prewarm(ctx, ids); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	} else {
		log.Info().Int("count", warmed).Msg("Quiz cache prewarmed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Hijacked monitor sockets are not tracked by Shutdown and end with the process.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
