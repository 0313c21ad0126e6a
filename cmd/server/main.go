package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tarpaulin/backend/internal/access"
	"tarpaulin/backend/internal/assist"
	"tarpaulin/backend/internal/billphoto"
	"tarpaulin/backend/internal/cache"
	"tarpaulin/backend/internal/config"
	"tarpaulin/backend/internal/httpapi"
	"tarpaulin/backend/internal/lock"
	"tarpaulin/backend/internal/rollup"
	"tarpaulin/backend/internal/service"
	"tarpaulin/backend/internal/store"
	"tarpaulin/backend/internal/store/memory"
	pgstore "tarpaulin/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	weekStart, err := cfg.FirstWeekday()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatalf("postgres migration failed: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded(logger)
		logger.Info("repository: in-memory")
	}

	dashboardCache := cache.DashboardCache(cache.NewMemoryDashboardCache())
	locker := lock.Locker(lock.NewLocal())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			config.LogError(logger, "main", "main", "redis ping", cfg.RedisAddr, err)
			logger.Warn("redis unavailable, using in-process cache and sync lock")
		} else {
			dashboardCache = redisCache
			locker = lock.NewRedis(redisCache.Client(), cfg.SyncLockTTL())
			closers = append(closers, redisCache.Close)
			logger.Info("cache and sync lock: redis")
		}
	} else {
		logger.Info("cache and sync lock: in-process")
	}

	assistant := assist.Client(assist.Noop{})
	if cfg.AssistEndpoint != "" {
		assistant = assist.NewHTTPClient(cfg.AssistEndpoint, cfg.AssistAPIKey, cfg.AssistModel)
		logger.WithField("endpoint", cfg.AssistEndpoint).Info("assistant: enabled")
	} else {
		logger.Info("assistant: disabled")
	}

	var photoStore billphoto.Store
	if cfg.GCSBucket != "" {
		gcs, err := billphoto.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
		if err != nil {
			logger.Fatalf("cloud storage unavailable: %v", err)
		}
		photoStore = gcs
		closers = append(closers, gcs.Close)
		logger.WithField("bucket", cfg.GCSBucket).Info("bill photos: gcs")
	} else {
		dir, _ := filepath.Abs(cfg.BillPhotoDir)
		photoStore = billphoto.NewLocalStore(dir)
		logger.WithField("dir", dir).Info("bill photos: local disk")
	}

	resolver := access.NewResolver(repo, cfg.AdminRoleName)
	svc := service.New(service.Deps{
		Repo:      repo,
		Access:    resolver,
		Sync:      rollup.NewEngine(repo, locker, logger.WithField("module", "rollup"), loc),
		Cache:     dashboardCache,
		Assistant: assistant,
		Photos:    billphoto.NewUploader(photoStore),
		Logger:    logger,
	}, service.Options{
		Location:     loc,
		WeekStart:    weekStart,
		DashboardTTL: cfg.DashboardTTL(),
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.TokenTTL(), repo, resolver)
	api := httpapi.New(svc, auth, logger, cfg.AllowedOrigin)

	if cfg.BootstrapAdminEmail != "" {
		created, err := auth.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			logger.Fatalf("bootstrap admin: %v", err)
		}
		if created {
			logger.WithField("email", cfg.BootstrapAdminEmail).Info("created bootstrap admin")
		}
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infof("tarpaulin backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Error("close error")
		}
	}

	logger.WithFields(logrus.Fields{"at": time.Now().In(loc).Format(time.RFC3339)}).Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name the web app origin, not *")
	}
	if cfg.AssistEndpoint != "" && cfg.AssistAPIKey == "" {
		return fmt.Errorf("ASSIST_API_KEY must be set when ASSIST_ENDPOINT is set")
	}
	return nil
}
