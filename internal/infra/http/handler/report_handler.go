package handler

import (
	"net/http"

	"github.com/sonartrack/api/internal/app/report"
)

// ReportHandler handles the aggregated report endpoint.
type ReportHandler struct {
	service *report.Service
}

// NewReportHandler creates a report handler.
func NewReportHandler(service *report.Service) *ReportHandler {
	return &ReportHandler{service: service}
}

// Generate handles GET /api/v1/projects/{id}/report.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	rep, err := h.service.Generate(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
