package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/employee-portal/internal/api/dto"
	httptransport "github.com/spec-kit/employee-portal/internal/api/http"
	"github.com/spec-kit/employee-portal/internal/api/http/handlers"
	"github.com/spec-kit/employee-portal/internal/api/http/views"
	"github.com/spec-kit/employee-portal/internal/auth"
	"github.com/spec-kit/employee-portal/internal/config"
	"github.com/spec-kit/employee-portal/internal/events"
	"github.com/spec-kit/employee-portal/internal/observability"
	"github.com/spec-kit/employee-portal/internal/persistence"
	"github.com/spec-kit/employee-portal/internal/repository"
	"github.com/spec-kit/employee-portal/internal/service"
	"github.com/spec-kit/employee-portal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	employeeRepo := repository.NewEmployeeRepository(pg.PoolHandle())
	sessionRepo := repository.NewSessionRepository(redis.Client)

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	twoFactor := auth.NewTwoFactorProvider(cfg.TwoFactor.Issuer)
	tokens := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.App.Name)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	employeeService := service.NewEmployeeService(service.EmployeeDependencies{
		EmployeeRepo: employeeRepo,
		Hasher:       hasher,
		Secrets:      twoFactor,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		EmployeeRepo: employeeRepo,
		SessionRepo:  sessionRepo,
		Passwords:    hasher,
		Codes:        twoFactor,
	})

	firewallCfg := auth.DefaultFirewallConfig(cfg.Auth.DefaultTargetPath, cfg.Auth.CookieSecure)
	firewall := auth.NewFirewall(tokens, authService, firewallCfg, logger)

	metrics := observability.NewMetrics("employee_portal")

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		Views:   views.NewEngine(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	employeeHandler := handlers.NewEmployeeHandler(employeeService, twoFactor, firewall, dto.NewValidator(), handlers.EmployeeHandlerConfig{
		DefaultTargetPath:  firewallCfg.DefaultTargetPath,
		TwoFactorCheckPath: firewallCfg.TwoFactorCheckPath,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    healthHandler,
		Employees: employeeHandler,
		Firewall:  firewall.Handle,
		Metrics:   metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
