// Package jobs provides background job definitions and handlers using Asynq.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types for sync jobs
const (
	TypeProjectSync = "sync:project"
)

// Queue names
const (
	QueueSync    = "sync"
	QueueDefault = "default"
)

// ProjectSyncPayload identifies the project a sync task targets.
type ProjectSyncPayload struct {
	ProjectID string `json:"project_id"`
	// Scheduled marks runs enqueued by the periodic scheduler rather than a
	// user trigger.
	Scheduled bool `json:"scheduled"`
}

// NewProjectSyncTask creates a project sync task.
func NewProjectSyncTask(payload ProjectSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project sync payload: %w", err)
	}
	return asynq.NewTask(
		TypeProjectSync,
		data,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue(QueueSync),
	), nil
}
