package handler

import (
	"net/http"

	"github.com/sonartrack/api/internal/app"
	"github.com/sonartrack/api/pkg/domain/trend"
)

// TrendReader reads a project's snapshot history.
type TrendReader interface {
	History(projectKey string) ([]trend.Snapshot, error)
}

// TrendHandler handles trend history and analysis endpoints.
type TrendHandler struct {
	projects *app.ProjectService
	trends   TrendReader
}

// NewTrendHandler creates a trend handler.
func NewTrendHandler(projects *app.ProjectService, trends TrendReader) *TrendHandler {
	return &TrendHandler{projects: projects, trends: trends}
}

// TrendHistoryResponse represents a project's snapshot history.
type TrendHistoryResponse struct {
	ProjectID    string           `json:"project_id"`
	ComponentKey string           `json:"component_key"`
	Snapshots    []trend.Snapshot `json:"snapshots"`
}

// History handles GET /api/v1/projects/{id}/trends.
func (h *TrendHandler) History(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.projects.Get(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}

	history, err := h.trends.History(p.ComponentKey)
	if err != nil {
		handleServiceError(w, r, err, "Trend history")
		return
	}
	if history == nil {
		history = []trend.Snapshot{}
	}

	// Optional tail window over the full history.
	if limit := parseQueryInt(r.URL.Query().Get("limit"), 0); limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	writeJSON(w, http.StatusOK, TrendHistoryResponse{
		ProjectID:    p.ID.String(),
		ComponentKey: p.ComponentKey,
		Snapshots:    history,
	})
}

// Analysis handles GET /api/v1/projects/{id}/trends/analysis.
func (h *TrendHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.projects.Get(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}

	history, err := h.trends.History(p.ComponentKey)
	if err != nil {
		handleServiceError(w, r, err, "Trend history")
		return
	}

	analysis, err := trend.Compute(history)
	if err != nil {
		handleServiceError(w, r, err, "Trend analysis")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
