package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/logger"
)

// Scheduler registers a cron entry per sync-enabled project and enqueues a
// sync task when the entry fires. Schedules are re-read periodically so
// create/update/delete take effect without a restart.
type Scheduler struct {
	cron     *cron.Cron
	projects project.Repository
	client   *Client
	logger   *logger.Logger
	interval time.Duration

	entries map[shared.ID]scheduledEntry
}

type scheduledEntry struct {
	id   cron.EntryID
	spec string
}

// NewScheduler creates a periodic sync scheduler. refreshInterval controls
// how often the project schedules are re-read; zero means every 5 minutes.
func NewScheduler(projects project.Repository, client *Client, refreshInterval time.Duration, log *logger.Logger) *Scheduler {
	if refreshInterval <= 0 {
		refreshInterval = 5 * time.Minute
	}
	return &Scheduler{
		cron:     cron.New(),
		projects: projects,
		client:   client,
		logger:   log.With("component", "sync_scheduler"),
		interval: refreshInterval,
		entries:  make(map[shared.ID]scheduledEntry),
	}
}

// Run refreshes schedules, starts the cron loop and blocks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("initial schedule load failed", "error", err)
	}
	s.cron.Start()
	defer func() {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping sync scheduler")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("schedule refresh failed", "error", err)
			}
		}
	}
}

// Refresh reconciles cron entries against the current set of sync-enabled
// projects with a schedule. Entries are only rebuilt when the expression
// changed.
func (s *Scheduler) Refresh(ctx context.Context) error {
	projects, err := s.projects.ListSyncEnabled(ctx)
	if err != nil {
		return err
	}

	seen := make(map[shared.ID]bool, len(projects))
	for _, p := range projects {
		if p.SyncSchedule == "" {
			continue
		}
		seen[p.ID] = true

		current, ok := s.entries[p.ID]
		if ok && current.spec == p.SyncSchedule {
			continue
		}
		if ok {
			s.cron.Remove(current.id)
		}

		entryID, err := s.cron.AddFunc(p.SyncSchedule, s.fire(p.ID))
		if err != nil {
			s.logger.Error("invalid sync schedule, skipping project",
				"project_id", p.ID,
				"schedule", p.SyncSchedule,
				"error", err,
			)
			delete(s.entries, p.ID)
			continue
		}
		s.entries[p.ID] = scheduledEntry{id: entryID, spec: p.SyncSchedule}
		s.logger.Info("sync schedule registered",
			"project_id", p.ID,
			"schedule", p.SyncSchedule,
		)
	}

	for id, entry := range s.entries {
		if !seen[id] {
			s.cron.Remove(entry.id)
			delete(s.entries, id)
			s.logger.Info("sync schedule removed", "project_id", id)
		}
	}
	return nil
}

func (s *Scheduler) fire(projectID shared.ID) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.client.EnqueueProjectSync(ctx, ProjectSyncPayload{
			ProjectID: projectID.String(),
			Scheduled: true,
		})
		if err != nil {
			s.logger.Error("failed to enqueue scheduled sync",
				"project_id", projectID,
				"error", err,
			)
		}
	}
}
