package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/sonartrack/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueProjectSync enqueues a sync run for one project.
func (c *Client) EnqueueProjectSync(ctx context.Context, payload ProjectSyncPayload) error {
	task, err := NewProjectSyncTask(payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue project sync",
			"project_id", payload.ProjectID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("project sync queued",
		"task_id", info.ID,
		"project_id", payload.ProjectID,
		"queue", info.Queue,
		"scheduled", payload.Scheduled,
	)
	return nil
}
