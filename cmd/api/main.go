package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/lead-intake-service/internal/api/http"
	"github.com/spec-kit/lead-intake-service/internal/api/http/handlers"
	"github.com/spec-kit/lead-intake-service/internal/auth"
	"github.com/spec-kit/lead-intake-service/internal/config"
	"github.com/spec-kit/lead-intake-service/internal/events"
	"github.com/spec-kit/lead-intake-service/internal/observability"
	"github.com/spec-kit/lead-intake-service/internal/persistence"
	"github.com/spec-kit/lead-intake-service/internal/repository"
	"github.com/spec-kit/lead-intake-service/internal/service"
	"github.com/spec-kit/lead-intake-service/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var buyerRepo repository.BuyerRepository
	var historyRepo repository.BuyerHistoryRepository
	if pool := pg.PoolHandle(); pool != nil {
		buyerRepo = repository.NewBuyerRepository(pool)
		historyRepo = repository.NewBuyerHistoryRepository(pool)
	} else {
		logger.Warn("running with in-memory store; data will not survive restarts")
		store := repository.NewMemoryStore()
		buyerRepo = store
		historyRepo = store
	}

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	leadService := service.NewLeadService(service.LeadDependencies{
		BuyerRepo:   buyerRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
	})
	authService, err := service.NewAuthService(cfg.Auth, redis.Client)
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), authService)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Buyers:         handlers.NewBuyersHandler(leadService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
