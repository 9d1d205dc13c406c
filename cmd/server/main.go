package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fable-server/internal/api"
	"fable-server/internal/config"
	"fable-server/internal/database"
	"fable-server/internal/logger"
	"fable-server/internal/queue"
)

func main() {
	// Стандартный log для самых ранних ошибок, до инициализации zap
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting dispatch server",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("dsn", cfg.MaskedDSN()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.GetDSN(), cfg.DBMaxConns, zapLogger)
	if err != nil {
		zapLogger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db.Pool, zapLogger).Up(ctx); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	q, err := queue.New(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("queue initialization failed", zap.Error(err))
	}
	defer q.Close()

	stories := database.NewPgStoryRepository(db.Pool, zapLogger)
	jobs := database.NewPgJobRepository(db.Pool, zapLogger)

	handler := api.NewDispatchHandler(stories, jobs, q, zapLogger)
	router := api.NewRouter(handler, zapLogger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	zapLogger.Info("dispatch server listening", zap.String("addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		zapLogger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("server shutdown failed", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			zapLogger.Error("server stopped unexpectedly", zap.Error(err))
			os.Exit(1)
		}
	}

	zapLogger.Info("dispatch server stopped")
}
