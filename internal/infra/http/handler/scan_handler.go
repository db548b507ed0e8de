package handler

import (
	"net/http"
	"time"

	"github.com/sonartrack/api/internal/app"
	"github.com/sonartrack/api/pkg/domain/scan"
	"github.com/sonartrack/api/pkg/domain/syncrun"
)

// ScanHandler handles scan snapshot and sync run history endpoints.
type ScanHandler struct {
	projects *app.ProjectService
	scans    scan.Repository
	runs     syncrun.Repository
}

// NewScanHandler creates a scan handler.
func NewScanHandler(projects *app.ProjectService, scans scan.Repository, runs syncrun.Repository) *ScanHandler {
	return &ScanHandler{projects: projects, scans: scans, runs: runs}
}

// ScanResponse represents one aggregate snapshot.
type ScanResponse struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	HighCount     int      `json:"high_count"`
	MediumCount   int      `json:"medium_count"`
	LowCount      int      `json:"low_count"`
	HotspotCount  int      `json:"hotspot_count"`
	TotalIssues   int      `json:"total_issues"`
	QualityGate   string   `json:"quality_gate,omitempty"`
	Coverage      *float64 `json:"coverage,omitempty"`
	NewCodePeriod string   `json:"new_code_period,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	ServerVersion string   `json:"server_version,omitempty"`

	TakenAt   time.Time `json:"taken_at"`
	CreatedAt time.Time `json:"created_at"`
}

func toScanResponse(s *scan.Scan) ScanResponse {
	return ScanResponse{
		ID:            s.ID.String(),
		ProjectID:     s.ProjectID.String(),
		HighCount:     s.HighCount,
		MediumCount:   s.MediumCount,
		LowCount:      s.LowCount,
		HotspotCount:  s.HotspotCount,
		TotalIssues:   s.TotalIssues(),
		QualityGate:   s.QualityGate,
		Coverage:      s.Coverage,
		NewCodePeriod: s.NewCodePeriod,
		Branch:        s.Branch,
		ServerVersion: s.ServerVersion,
		TakenAt:       s.TakenAt,
		CreatedAt:     s.CreatedAt,
	}
}

// List handles GET /api/v1/projects/{id}/scans.
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.projects.Get(r.Context(), projectID); err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}

	limit := parseQueryInt(r.URL.Query().Get("limit"), 30)
	scans, err := h.scans.ListByProject(r.Context(), projectID, limit)
	if err != nil {
		handleServiceError(w, r, err, "Scan")
		return
	}

	data := make([]ScanResponse, 0, len(scans))
	for _, s := range scans {
		data = append(data, toScanResponse(s))
	}
	writeJSON(w, http.StatusOK, ListResponse[ScanResponse]{
		Data:       data,
		Total:      int64(len(data)),
		Page:       1,
		PerPage:    len(data),
		TotalPages: 1,
	})
}

// Latest handles GET /api/v1/projects/{id}/scans/latest.
func (h *ScanHandler) Latest(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.projects.Get(r.Context(), projectID); err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}

	s, err := h.scans.Latest(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, r, err, "Scan")
		return
	}
	writeJSON(w, http.StatusOK, toScanResponse(s))
}

// RunResponse represents one sync run outcome.
type RunResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message,omitempty"`
	Duration  string `json:"duration"`

	IssuesFound      int    `json:"issues_found"`
	HotspotsFound    int    `json:"hotspots_found"`
	FindingsUpserted int    `json:"findings_upserted"`
	StaleMarked      int    `json:"stale_marked"`
	QualityGate      string `json:"quality_gate,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func toRunResponse(run *syncrun.Run) RunResponse {
	return RunResponse{
		ID:               run.ID.String(),
		ProjectID:        run.ProjectID.String(),
		Outcome:          string(run.Outcome),
		Message:          run.Message,
		Duration:         run.Duration.String(),
		IssuesFound:      run.IssuesFound,
		HotspotsFound:    run.HotspotsFound,
		FindingsUpserted: run.FindingsUpserted,
		StaleMarked:      run.StaleMarked,
		QualityGate:      run.QualityGate,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
	}
}

// Runs handles GET /api/v1/projects/{id}/sync/runs.
func (h *ScanHandler) Runs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.projects.Get(r.Context(), projectID); err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}

	limit := parseQueryInt(r.URL.Query().Get("limit"), 30)
	runs, err := h.runs.ListByProject(r.Context(), projectID, limit)
	if err != nil {
		handleServiceError(w, r, err, "Sync run")
		return
	}

	data := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		data = append(data, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, ListResponse[RunResponse]{
		Data:       data,
		Total:      int64(len(data)),
		Page:       1,
		PerPage:    len(data),
		TotalPages: 1,
	})
}
