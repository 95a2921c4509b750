// Package main runs the background export worker: render results, upload to S3, record status.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/livepoll/backend/config"
	"github.com/livepoll/backend/internal/export"
	"github.com/livepoll/backend/internal/results"
	"github.com/livepoll/backend/internal/sessions"
	"github.com/livepoll/backend/internal/votes"
	"github.com/livepoll/backend/pkg/database"
	"github.com/livepoll/backend/pkg/queue"
	"github.com/livepoll/backend/pkg/redis"
	"github.com/livepoll/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Redis.Enabled() || cfg.AWS.ExportsBucket == "" {
		logger.Fatal("worker needs REDIS_ADDR and AWS_S3_EXPORTS_BUCKET")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ExportsBucket:        cfg.AWS.ExportsBucket,
		Endpoint:             cfg.AWS.Endpoint,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	manager, err := sessions.NewManager(sessions.NewRepository(pool), cfg.App.LayoutCacheSize, logger)
	if err != nil {
		logger.Fatal("sessions", zap.Error(err))
	}
	resultsService := results.NewService(manager, votes.NewRepository(pool))
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := export.NewProcessor(resultsService, export.NewRepository(pool), s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("export worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("export worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
