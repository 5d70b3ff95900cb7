package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/propbill/backend/internal/application/allocation"
	importapp "github.com/propbill/backend/internal/application/import"
	"github.com/propbill/backend/internal/infrastructure/config"
	"github.com/propbill/backend/internal/infrastructure/lock"
	"github.com/propbill/backend/internal/infrastructure/logger"
	"github.com/propbill/backend/internal/infrastructure/metrics"
	"github.com/propbill/backend/internal/infrastructure/persistence"
	"github.com/propbill/backend/internal/infrastructure/storage"
	"github.com/propbill/backend/internal/interfaces/http/handler"
	"github.com/propbill/backend/internal/interfaces/http/middleware"
	"github.com/propbill/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			PropBill API
//	@version		1.0
//	@description	Utility bill allocation and portfolio import for property managers

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting PropBill backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("store", cfg.Store.Driver),
	)

	ctx := context.Background()

	store, err := persistence.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Error("Error closing document store", zap.Error(err))
		}
	}()

	locker := newLocker(ctx, cfg, log)

	var recorder *metrics.Metrics
	if cfg.Metrics.Enabled {
		recorder = metrics.New(cfg.App.Env)
	}

	var archive storage.Archive = storage.NopArchive{}
	if cfg.S3.Enabled {
		s3Archive, err := storage.NewS3Archive(ctx, &cfg.S3, log)
		if err != nil {
			log.Fatal("Failed to configure upload archive", zap.Error(err))
		}
		archive = s3Archive
		log.Info("Archiving uploads to S3", zap.String("bucket", cfg.S3.Bucket))
	}

	// Repositories
	billRepo := persistence.NewDocumentBillRepository(store)
	allocationRepo := persistence.NewDocumentAllocationRepository(store)
	tenantRepo := persistence.NewDocumentTenantRepository(store)
	importRunRepo := persistence.NewDocumentImportRunRepository(store)

	// Application services
	allocationService := allocation.NewService(allocation.ServiceConfig{
		Bills:       billRepo,
		Allocations: allocationRepo,
		Tenants:     tenantRepo,
		Locker:      locker,
		Metrics:     recorder,
		Logger:      log,
	})
	pipeline := importapp.NewPipeline(store, importapp.PipelineConfig{
		BatchSize: cfg.Import.BatchSize,
		Company:   cfg.Import.DefaultCompany,
		Metrics:   recorder,
		Logger:    log,
	})
	importService := importapp.NewService(pipeline, archive, importRunRepo, log)

	engine, err := router.NewEngine(router.EngineConfig{
		Env:      cfg.App.Env,
		HTTP:     cfg.HTTP,
		Metrics:  cfg.Metrics,
		Logger:   log,
		Recorder: recorder,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	handler.NewSystemHandler(cfg.App.Name, store).RegisterRoutes(engine)

	// Bill routes take small JSON bodies; uploads enforce their own limit
	bodyLimit := middleware.BodyLimit(cfg.HTTP.MaxBodySize)
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewBillHandler(allocationService), bodyLimit)
	r.Register(handler.NewAllocationHandler(allocationService), bodyLimit)
	r.Register(handler.NewImportHandler(importService, cfg.Import.MaxUploadSize))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// newLocker returns the Redis-backed bill lock when Redis is enabled, falling
// back to an in-process lock that only serialises this instance
func newLocker(ctx context.Context, cfg *config.Config, log *zap.Logger) lock.Locker {
	if !cfg.Redis.Enabled {
		log.Info("Redis disabled, using in-process bill lock")
		return lock.NewLocalLocker(cfg.Redis.LockWait)
	}

	client, err := lock.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, using in-process bill lock", zap.Error(err))
		return lock.NewLocalLocker(cfg.Redis.LockWait)
	}
	log.Info("Using Redis bill lock",
		zap.String("host", cfg.Redis.Host),
		zap.Int("port", cfg.Redis.Port))
	return lock.NewRedisLocker(client, cfg.Redis.LockTTL, cfg.Redis.LockWait, log)
}
