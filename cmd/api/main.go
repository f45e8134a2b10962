package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/auth"
	"github.com/abduss/bucketgate/internal/bucket"
	"github.com/abduss/bucketgate/internal/cache"
	"github.com/abduss/bucketgate/internal/config"
	"github.com/abduss/bucketgate/internal/file"
	"github.com/abduss/bucketgate/internal/logger"
	"github.com/abduss/bucketgate/internal/metrics"
	"github.com/abduss/bucketgate/internal/objectstore"
	"github.com/abduss/bucketgate/internal/presigned"
	"github.com/abduss/bucketgate/internal/server"
	"github.com/abduss/bucketgate/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(log); err != nil {
		log.Fatal("bucketgate stopped", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbPool.Close()

	if cfg.Postgres.Migrate {
		if err := storage.Migrate(ctx, dbPool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	gateway, err := newGateway(ctx, cfg, log)
	if err != nil {
		return err
	}

	sharedCache, err := newCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sharedCache.Close()

	authRepo := auth.NewRepository(dbPool)
	bucketRepo := bucket.NewRepository(dbPool)
	fileRepo := file.NewRepository(dbPool)

	authService := auth.NewService(authRepo, bucketRepo, cfg.Auth, log)
	bucketService := bucket.NewService(bucketRepo, authRepo, fileRepo, sharedCache, cfg.Presign.KeyLookupTTL, log)
	fileService := file.NewService(fileRepo, bucketService, gateway, log)
	presignedService := presigned.NewService(bucketService, fileService, gateway, sharedCache, presigned.Config{
		UploadTTL:     cfg.Presign.UploadTTL,
		DownloadTTL:   cfg.Presign.DownloadTTL,
		MaxUploadSize: cfg.Upload.MaxSize,
	}, log)

	router := server.NewRouter(server.Dependencies{
		Config:           cfg,
		Logger:           log,
		DB:               dbPool,
		ObjectStore:      gateway,
		AuthService:      authService,
		BucketService:    bucketService,
		FileService:      fileService,
		PresignedService: presignedService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("bucketgate listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("object_store", cfg.ObjectStore.Driver),
			zap.String("cache", cfg.Cache.Driver),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newGateway(ctx context.Context, cfg config.Config, log *zap.Logger) (objectstore.Gateway, error) {
	switch cfg.ObjectStore.Driver {
	case config.DriverS3:
		gateway, err := objectstore.NewS3Gateway(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("configure s3: %w", err)
		}
		return gateway, nil
	default:
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		if err := storage.EnsureBucket(ctx, client, cfg.MinIO.Bucket, cfg.MinIO.Region, log); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		return objectstore.NewMinIOGateway(client, cfg.MinIO.Bucket), nil
	}
}

func newCache(ctx context.Context, cfg config.Config, log *zap.Logger) (*cache.Cache, error) {
	switch cfg.Cache.Driver {
	case config.CacheRedis:
		client, err := storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return cache.New(cache.NewRedisStore(client, cfg.Cache.KeyPrefix), config.CacheRedis, log), nil
	default:
		store, err := cache.NewMemoryStore(cfg.Cache.MaxEntries, cfg.Cache.CleanupInterval)
		if err != nil {
			return nil, fmt.Errorf("create memory cache: %w", err)
		}
		return cache.New(store, config.CacheMemory, log), nil
	}
}
