package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/marketplace-auth/internal/api/http"
	"github.com/spec-kit/marketplace-auth/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/observability"
	"github.com/spec-kit/marketplace-auth/internal/persistence"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	"github.com/spec-kit/marketplace-auth/internal/service"
	"github.com/spec-kit/marketplace-auth/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		accountRepo repository.AccountRepository
		auditRepo   repository.AuditRepository
		refreshRepo repository.RefreshTokenRepository
	)
	if pg.Enabled() {
		accountRepo = repository.NewAccountRepository(pg.Pool)
		auditRepo = repository.NewAuditRepository(pg.Pool)
	} else {
		accountRepo = repository.NewMemoryAccountRepository()
		auditRepo = repository.NewMemoryAuditRepository()
	}
	if redis.Enabled() && redis.Ping(ctx) == nil {
		refreshRepo = repository.NewRedisRefreshTokenRepository(redis.Client)
	} else {
		logger.Warn("refresh token registry running in memory; sessions will not survive restarts")
		refreshRepo = repository.NewMemoryRefreshTokenRepository(time.Now)
	}

	metrics := observability.NewMetrics("marketplace_auth")
	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(logger, cfg.Notification)
	notifyWorker := worker.StartNotificationWorker(ctx, dispatcher, notifications, logger)

	auditService := service.NewAuditService(auditRepo, time.Now)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret,
		auth.WithAccessTTL(cfg.Auth.AccessTTL()),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL()))

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AccountRepo:      accountRepo,
		RefreshTokenRepo: refreshRepo,
		Audit:            auditService,
		Tokens:           tokens,
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
	})
	adminService := service.NewAdminService(service.AdminDependencies{
		AccountRepo:      accountRepo,
		RefreshTokenRepo: refreshRepo,
		Audit:            auditService,
		Auth:             authService,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})

	if cfg.Superadmin.Enabled() {
		account, created, err := adminService.EnsureSuperadmin(ctx, service.BootstrapAccount{
			Name:         cfg.Superadmin.Name,
			Email:        cfg.Superadmin.Email,
			Password:     cfg.Superadmin.Password,
			PasswordHash: cfg.Superadmin.PasswordHash,
		})
		if err != nil {
			logger.Fatal("failed to seed superadmin", zap.Error(err))
		}
		if created {
			logger.Info("superadmin seeded", zap.String("account_id", account.ID), zap.String("email", account.Email))
		}
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), accountRepo)

	app := httptransport.NewApp(cfg.App, logger, metrics)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Admin:          handlers.NewAdminHandler(adminService),
		AuthMiddleware: authMiddleware,
		RateLimiter:    httptransport.NewIPRateLimiter(cfg.RateLimit),
		Metrics:        metrics,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifyWorker.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
