package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonartrack/api/internal/app"
	"github.com/sonartrack/api/internal/app/report"
	appsync "github.com/sonartrack/api/internal/app/sync"
	"github.com/sonartrack/api/internal/config"
	"github.com/sonartrack/api/internal/infra/http"
	"github.com/sonartrack/api/internal/infra/http/handler"
	"github.com/sonartrack/api/internal/infra/http/routes"
	"github.com/sonartrack/api/internal/infra/jobs"
	"github.com/sonartrack/api/internal/infra/postgres"
	"github.com/sonartrack/api/internal/infra/redis"
	"github.com/sonartrack/api/internal/infra/sonarqube"
	"github.com/sonartrack/api/internal/infra/trend"
	"github.com/sonartrack/api/internal/infra/websocket"
	"github.com/sonartrack/api/pkg/crypto"
	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/logger"
	"github.com/sonartrack/api/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	trendStore, err := trend.NewStore(cfg.Trend.Dir, log)
	if err != nil {
		log.Error("failed to initialize trend store", "error", err)
		return 1
	}

	encryptor, err := crypto.FromKey(cfg.Encryption.Key)
	if err != nil {
		log.Error("failed to initialize credential encryption", "error", err)
		return 1
	}

	// ==========================================================================
	// Repositories
	// ==========================================================================
	projectRepo := postgres.NewProjectRepository(db, encryptor)
	findingRepo := postgres.NewFindingRepository(db)
	historyRepo := postgres.NewFindingHistoryRepository(db)
	scanRepo := postgres.NewScanRepository(db)
	runRepo := postgres.NewSyncRunRepository(db)

	// ==========================================================================
	// WebSocket Hub
	// ==========================================================================
	hub := websocket.NewHub(log)
	wsCtx, wsCancel := context.WithCancel(ctx)
	defer wsCancel()
	go hub.Run(wsCtx)
	log.Info("websocket hub started")

	// ==========================================================================
	// Services
	// ==========================================================================
	registry := appsync.NewRegistry(cfg.Sync.Coalesce)
	versionCache := redis.MustNewCache[string](redisClient, "sonar:version", time.Hour)
	reportCache := redis.MustNewCache[report.Report](redisClient, "report", 5*time.Minute)

	reportService := report.NewService(projectRepo, findingRepo, scanRepo, runRepo, reportCache, log)

	syncService := appsync.NewService(
		projectRepo,
		findingRepo,
		scanRepo,
		runRepo,
		trendStore,
		registry,
		upstreamFactory(cfg, log),
		versionCache,
		websocket.NewProgressNotifier(hub),
		reportService,
		log,
	)

	projectService := app.NewProjectService(projectRepo, trendStore, log)
	findingService := app.NewFindingService(findingRepo, historyRepo, log)
	log.Info("services initialized")

	// ==========================================================================
	// Job Queue
	// ==========================================================================
	jobClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		return 1
	}
	defer closeWithLog(jobClient, "job client", log)

	var dispatcher handler.SyncDispatcher
	if cfg.Worker.Enabled {
		dispatcher = queueDispatcher{client: jobClient}
	} else {
		dispatcher = directDispatcher{service: syncService, log: log}
	}

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	v := validator.New()
	server := http.NewServer(cfg, log)
	routes.RegisterAll(server.Router(), routes.Handlers{
		Health:    handler.NewHealthHandler(db, redisClient),
		Projects:  handler.NewProjectHandler(projectService, v),
		Sync:      handler.NewSyncHandler(projectService, registry, dispatcher, cfg.Sync.Coalesce),
		Findings:  handler.NewFindingHandler(findingService, v),
		Scans:     handler.NewScanHandler(projectService, scanRepo, runRepo),
		Trends:    handler.NewTrendHandler(projectService, trendStore),
		Reports:   handler.NewReportHandler(reportService),
		WebSocket: websocket.NewHandler(hub, cfg.CORS.AllowedOrigins, log),
	})

	// ==========================================================================
	// Workers
	// ==========================================================================
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	if cfg.Worker.Enabled {
		worker, err := jobs.NewWorker(jobs.WorkerConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Worker.Concurrency,
		}, syncService, log)
		if err != nil {
			log.Error("failed to initialize worker", "error", err)
			return 1
		}
		go func() {
			if err := worker.Run(workerCtx); err != nil {
				log.Error("worker stopped", "error", err)
			}
		}()

		scheduler := jobs.NewScheduler(projectRepo, jobClient, 5*time.Minute, log)
		go func() {
			if err := scheduler.Run(workerCtx); err != nil {
				log.Error("scheduler stopped", "error", err)
			}
		}()
		log.Info("worker and scheduler started", "concurrency", cfg.Worker.Concurrency)
	}

	// ==========================================================================
	// Start Server
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop the hub first (closes all connections), then workers, then HTTP.
	wsCancel()
	workerCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// queueDispatcher enqueues sync runs on the job queue.
type queueDispatcher struct {
	client *jobs.Client
}

func (d queueDispatcher) Dispatch(ctx context.Context, projectID shared.ID) error {
	return d.client.EnqueueProjectSync(ctx, jobs.ProjectSyncPayload{ProjectID: projectID.String()})
}

// directDispatcher runs the sync on a goroutine when no worker is configured.
type directDispatcher struct {
	service *appsync.Service
	log     *logger.Logger
}

func (d directDispatcher) Dispatch(_ context.Context, projectID shared.ID) error {
	go func() {
		if err := d.service.Trigger(context.Background(), projectID); err != nil && !appsync.IsConflict(err) {
			d.log.Error("sync failed", "project_id", projectID, "error", err)
		}
	}()
	return nil
}

// upstreamFactory builds a per-project upstream client with the configured
// tuning knobs and the project's own endpoint and credentials.
func upstreamFactory(cfg *config.Config, log *logger.Logger) appsync.UpstreamFactory {
	return func(p *project.Project) (appsync.Upstream, error) {
		return sonarqube.NewClient(sonarqube.Config{
			BaseURL:  p.BaseURL,
			Token:    p.Credentials.Token,
			Login:    p.Credentials.Login,
			Password: p.Credentials.Password,

			RequestTimeout: cfg.Sonar.RequestTimeout,
			RetryCount:     cfg.Sonar.RetryCount,
			RetryAfterCap:  cfg.Sonar.RetryAfterCap,
			MaxConcurrent:  cfg.Sonar.MaxConcurrent,
			MinInterval:    cfg.Sonar.MinInterval,
			CacheSize:      cfg.Sonar.CacheSize,
			CacheTTL:       cfg.Sonar.CacheTTL,
			PageSize:       cfg.Sonar.PageSize,
			MaxPages:       cfg.Sonar.MaxPages,
		}, log.With("component", "sonarqube", "project_id", p.ID))
	}
}

func initLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if cfg.App.Debug {
		log = logger.NewDevelopment()
	}
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
