// Package main runs the live poll HTTP server with WebSocket results and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/livepoll/backend/config"
	"github.com/livepoll/backend/internal/export"
	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/sessions"
	"github.com/livepoll/backend/internal/votes"
	"github.com/livepoll/backend/pkg/database"
	"github.com/livepoll/backend/pkg/queue"
	"github.com/livepoll/backend/pkg/redis"
	"github.com/livepoll/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		newLogger("info").Fatal("load config", zap.Error(err))
	}
	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var (
		changes  feed.Feed
		jobQueue *queue.Queue
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		changes = feed.NewRedisFeed(rdb.Client, logger)
		jobQueue = queue.NewQueue(rdb.Client, logger)
	} else {
		logger.Warn("REDIS_ADDR not set: live updates stay in this process and background exports are disabled")
		changes = feed.NewMemoryFeed()
	}

	var s3Client *storage.S3
	if cfg.AWS.ExportsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
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
	}

	exportRepo := export.NewRepository(pool)
	var exp exportDeps
	if jobQueue != nil && s3Client != nil {
		exp = exportDeps{store: exportRepo, enqueuer: jobQueue, signer: s3Client}
	}

	a, err := newApp(appConfig{
		PublicBaseURL:   cfg.App.PublicBaseURL,
		LayoutCacheSize: cfg.App.LayoutCacheSize,
		AdminPassword:   cfg.Admin.Password,
		JWTSecret:       cfg.Admin.JWTSecret,
		TokenHours:      cfg.Admin.TokenExpireHours,
	}, sessions.NewRepository(pool), votes.NewRepository(pool), changes, exp, logger)
	if err != nil {
		logger.Fatal("wire services", zap.Error(err))
	}
	if cfg.Admin.Password == "" {
		logger.Warn("ADMIN_PASSWORD not set: admin login is disabled")
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if exp.store != nil && cfg.Server.RunExportWorker {
		processor := export.NewProcessor(a.results, exportRepo, s3Client, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("in-process export worker started")
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.router(cfg.Server.CORSAllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	a.hub.Close()
	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, _ := config.Build()
	return logger
}
