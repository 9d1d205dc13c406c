package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fable-server/internal/ai"
	"fable-server/internal/config"
	"fable-server/internal/database"
	"fable-server/internal/failure"
	"fable-server/internal/logger"
	"fable-server/internal/media"
	"fable-server/internal/orchestrator"
	"fable-server/internal/persist"
	"fable-server/internal/queue"
	"fable-server/internal/worker"
)

func main() {
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

	zapLogger.Info("starting pipeline worker",
		zap.String("env", cfg.AppEnv),
		zap.Int("concurrency", cfg.WorkerConcurrency),
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

	jobs := database.NewPgJobRepository(db.Pool, zapLogger)
	stories := database.NewPgStoryRepository(db.Pool, zapLogger)
	assets := database.NewPgAssetRepository(db.Pool, zapLogger)
	failed := database.NewPgFailedJobRepository(db.Pool, zapLogger)

	recorder := failure.NewRecorder(failed, cfg.SlackWebhook, zapLogger)
	aiClient := ai.NewClient(cfg, zapLogger)
	pipeline := orchestrator.New(aiClient, recorder, zapLogger)
	persister := persist.NewCoordinator(stories, failed, q, cfg.SkipPersistence, zapLogger)

	uploader, err := media.NewUploader(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("uploader initialization failed", zap.Error(err))
	}

	workDir := filepath.Join(cfg.UploadDir, "work")
	images := media.NewImageClient(cfg.ImageAPIKey, cfg.ImageSize, zapLogger)
	speech := media.NewSpeechClient(cfg.TTSAPIKey, cfg.TTSVoice, workDir, zapLogger)
	composer := media.NewComposer(cfg.FFmpegPath, cfg.VideoFPS, workDir, zapLogger)

	handlers := worker.NewHandlers(pipeline, persister, images, speech, composer, uploader, assets, zapLogger)
	w := worker.New(q, jobs, handlers, recorder, cfg.WorkerConcurrency, cfg.WorkerMaxRetries, zapLogger)
	reconciler := worker.NewReconciler(jobs, q, cfg.ReconcileInterval, cfg.ReconcileStaleAge, zapLogger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.ServeHealth(ctx, cfg.WorkerMetricsAddr, zapLogger)
	}()
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	w.Run(ctx, cfg.WorkerShutdownGrace)
	wg.Wait()

	zapLogger.Info("pipeline worker stopped")
}
