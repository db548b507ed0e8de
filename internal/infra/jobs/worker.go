package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	appsync "github.com/sonartrack/api/internal/app/sync"
	"github.com/sonartrack/api/internal/metrics"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/logger"
)

// Syncer triggers a sync run for one project.
type Syncer interface {
	Trigger(ctx context.Context, projectID shared.ID) error
}

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

// Worker processes background jobs.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

// NewWorker creates a new background job worker.
func NewWorker(cfg WorkerConfig, syncer Syncer, log *logger.Logger) (*Worker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				QueueSync:    6,
				QueueDefault: 4,
			},
		},
	)

	mux := asynq.NewServeMux()

	syncHandler := NewSyncTaskHandler(syncer, log)
	mux.HandleFunc(TypeProjectSync, syncHandler.HandleProjectSync)

	return &Worker{
		server: server,
		mux:    mux,
		logger: log,
	}, nil
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Start(w.mux)
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() {
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
}

// Run runs the worker until shutdown.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Start(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
		return nil
	}
}

// SyncTaskHandler processes project sync tasks.
type SyncTaskHandler struct {
	syncer Syncer
	logger *logger.Logger
}

// NewSyncTaskHandler creates a sync task handler.
func NewSyncTaskHandler(syncer Syncer, log *logger.Logger) *SyncTaskHandler {
	return &SyncTaskHandler{
		syncer: syncer,
		logger: log.With("component", "sync_task_handler"),
	}
}

// HandleProjectSync runs a sync for the project named by the task payload.
// A run already in flight is not an error from the queue's perspective.
func (h *SyncTaskHandler) HandleProjectSync(ctx context.Context, t *asynq.Task) error {
	var payload ProjectSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		metrics.JobsProcessedTotal.WithLabelValues(TypeProjectSync, "invalid").Inc()
		return fmt.Errorf("failed to unmarshal project sync payload: %v: %w", err, asynq.SkipRetry)
	}

	projectID, err := shared.ParseID(payload.ProjectID)
	if err != nil {
		metrics.JobsProcessedTotal.WithLabelValues(TypeProjectSync, "invalid").Inc()
		return fmt.Errorf("invalid project id in payload: %v: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("processing project sync task",
		"project_id", payload.ProjectID,
		"scheduled", payload.Scheduled,
	)

	if err := h.syncer.Trigger(ctx, projectID); err != nil {
		if appsync.IsConflict(err) {
			h.logger.Info("sync already running, skipping task", "project_id", payload.ProjectID)
			metrics.JobsProcessedTotal.WithLabelValues(TypeProjectSync, "skipped").Inc()
			return nil
		}
		if shared.IsNotFound(err) {
			// Project deleted after the task was enqueued.
			h.logger.Warn("project gone, dropping sync task", "project_id", payload.ProjectID)
			metrics.JobsProcessedTotal.WithLabelValues(TypeProjectSync, "dropped").Inc()
			return nil
		}
		metrics.JobsProcessedTotal.WithLabelValues(TypeProjectSync, "failed").Inc()
		return fmt.Errorf("project sync failed: %w", err)
	}

	metrics.JobsProcessedTotal.WithLabelValues(TypeProjectSync, "completed").Inc()
	return nil
}
