package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/ai"
	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/prompt"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := observability.SetupTracing(ctx, cfg.Telemetry, cfg.App, logger)
	metrics := observability.NewMetrics()

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

	prompts, err := prompt.Load(cfg.AI.PromptsFile)
	if err != nil {
		logger.Fatal("failed to load prompt catalog", zap.Error(err))
	}

	clk := clock.Real()
	dispatcher := events.NewInMemoryDispatcher(logger)
	if redis.Enabled() {
		events.NewRedisBridge(redis.Client, cfg.Redis.EventChannel, logger).Attach(dispatcher)
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)

	provider := ai.NewClient(cfg.AI, &http.Client{Timeout: cfg.AI.Timeout})
	if !provider.Available() {
		logger.Warn("AI provider not configured; triage features degrade to defaults")
	}

	triageService := service.NewTriageService(service.TriageDependencies{
		Provider:      provider,
		Prompts:       prompts,
		TicketRepo:    ticketRepo,
		CategoryRepo:  categoryRepo,
		KnowledgeRepo: repository.NewKnowledgeBaseRepository(pool),
		TemplateRepo:  repository.NewPromptTemplateRepository(pool),
		Metrics:       metrics,
		Logger:        logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Metrics:     metrics,
		Logger:      logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		UserRepo:     userRepo,
		CommentRepo:  repository.NewTicketCommentRepository(pool),
		CategoryRepo: categoryRepo,
		HistoryRepo:  historyRepo,
		Assigner:     assignmentService,
		Triage:       triageService,
		Dispatcher:   dispatcher,
		Clock:        clk,
		Logger:       logger,
	})

	sink, closeSinks := notify.FromConfig(cfg.Notification, logger)
	defer closeSinks()
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Sink:       sink,
		UserRepo:   userRepo,
		TicketRepo: ticketRepo,
		AppURL:     cfg.App.URL,
		Clock:      clk,
		Metrics:    metrics,
		Logger:     logger,
	})
	worker.StartNotificationWorker(notificationService, logger)

	monitor := service.NewSLAMonitor(ticketRepo, notificationService, clk, metrics, logger)
	sweepDone := worker.StartSLASweepWorker(ctx, monitor, clk, worker.SLASweepConfig{
		Interval: cfg.SLA.SweepInterval,
		Timeout:  cfg.SLA.SweepTimeout,
	}, logger)

	readiness := []handlers.Dependency{{Name: "postgres", Pinger: pg}}
	if redis.Enabled() {
		readiness = append(readiness, handlers.Dependency{Name: "redis", Pinger: redis})
	}
	if cfg.SLA.CronSecret == "" {
		logger.Warn("CRON_SECRET not set; the sweep endpoint is unauthenticated")
	}

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness...),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Agents:         handlers.NewAgentsHandler(assignmentService),
		AI:             handlers.NewAIHandler(triageService),
		SLA:            handlers.NewSLAHandler(monitor, cfg.SLA.CronSecret),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer), userRepo).Handle,
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
	cancel()
	<-sweepDone

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
