package handler

import (
	"context"
	"net/http"

	"github.com/sonartrack/api/internal/app"
	appsync "github.com/sonartrack/api/internal/app/sync"
	"github.com/sonartrack/api/pkg/apierror"
	"github.com/sonartrack/api/pkg/domain/shared"
)

// SyncDispatcher starts a sync run without blocking the request.
type SyncDispatcher interface {
	Dispatch(ctx context.Context, projectID shared.ID) error
}

// SyncHandler handles sync trigger and status endpoints.
type SyncHandler struct {
	projects *app.ProjectService
	registry *appsync.Registry
	dispatch SyncDispatcher
	coalesce bool
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(projects *app.ProjectService, registry *appsync.Registry, dispatch SyncDispatcher, coalesce bool) *SyncHandler {
	return &SyncHandler{projects: projects, registry: registry, dispatch: dispatch, coalesce: coalesce}
}

// TriggerResponse represents the response to a sync trigger.
type TriggerResponse struct {
	Message string         `json:"message"`
	Status  appsync.Status `json:"status"`
}

// Trigger handles POST /api/v1/projects/{id}/sync.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.projects.Get(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}

	if st := h.registry.Status(id); st.State == appsync.StateRunning {
		if !h.coalesce {
			writeError(w, r, apierror.Conflict("Sync already running for project"))
			return
		}
		// Coalesced: the running sync covers this trigger.
		writeJSON(w, http.StatusAccepted, TriggerResponse{Message: "sync already running", Status: st})
		return
	}

	if err := h.dispatch.Dispatch(r.Context(), id); err != nil {
		if appsync.IsConflict(err) {
			writeError(w, r, apierror.Conflict("Sync already running for project"))
			return
		}
		handleServiceError(w, r, err, "Sync")
		return
	}
	writeJSON(w, http.StatusAccepted, TriggerResponse{Message: "sync started", Status: h.registry.Status(id)})
}

// Status handles GET /api/v1/projects/{id}/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.projects.Get(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, h.registry.Status(id))
}
