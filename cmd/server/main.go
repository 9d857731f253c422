package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/catalog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/queue"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/router"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
	"github.com/stemsi/exstem-quiz/internal/worker"
	"golang.org/x/sync/errgroup"
)

const (
	httpShutdownTimeout = 5 * time.Second
	quizShutdownTimeout = 10 * time.Second
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
		Str("catalog_api", cfg.CatalogAPIURL).
		Msg("Starting ExStem Quiz")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// ─── Catalog API Client ────────────────────────────────────────────
	catalogClient, err := catalog.New(cfg.CatalogAPIURL, cfg.CatalogTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid catalog API URL")
	}

	// ─── Initialize Repositories & Queues ──────────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)
	attemptQueue := queue.NewAttemptQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	catalogService := service.NewCatalogService(catalogClient, rdb, cfg.CatalogCacheTTL, log)
	attemptService := service.NewAttemptService(attemptRepo)
	quizService := service.NewQuizService(catalogClient, attemptQueue, service.QuizOptions{
		SecondsPerQuestion:   cfg.SecondsPerQuestion,
		TickInterval:         cfg.TickInterval,
		AutoNextDelay:        cfg.AutoNextDelay,
		IdleTTL:              cfg.SessionIdleTTL,
		MaxQuestionCount:     cfg.MaxQuestionCount,
		MaxSessionsPerPlayer: cfg.MaxSessionsPerPlayer,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Catalog: handler.NewCatalogHandler(catalogService, log),
		Quiz:    handler.NewQuizHandler(quizService, log),
		Attempt: handler.NewAttemptHandler(attemptService, log),
		WS:      handler.NewWSHandler(quizService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	// Workers outlive the HTTP server so attempts finished during shutdown
	// still reach PostgreSQL.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers errgroup.Group

	attemptWorker := worker.NewAttemptWorker(attemptQueue, attemptRepo, log)
	workers.Go(func() error {
		attemptWorker.Start(workerCtx)
		return nil
	})
	workers.Go(func() error {
		quizService.StartReaper(workerCtx)
		return nil
	})

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(workerCtx, authService, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Serve Until Signal ────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		// 1. Stop accepting new HTTP requests.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	serveErr := g.Wait()
	if serveErr != nil {
		log.Error().Err(serveErr).Msg("Server error")
	}

	// 2. Close live quiz sessions and wait for their pending queue writes.
	quizCtx, quizCancel := context.WithTimeout(context.Background(), quizShutdownTimeout)
	if err := quizService.Shutdown(quizCtx); err != nil {
		log.Warn().Err(err).Msg("Quiz sessions did not shut down in time")
	}
	quizCancel()

	// 3. Stop background workers; the attempt worker flushes its batch.
	workerCancel()
	_ = workers.Wait()

	log.Info().Msg("Shutdown complete")
	if serveErr != nil {
		os.Exit(1)
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
