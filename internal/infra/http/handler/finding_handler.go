package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sonartrack/api/internal/app"
	"github.com/sonartrack/api/pkg/apierror"
	"github.com/sonartrack/api/pkg/domain/finding"
	"github.com/sonartrack/api/pkg/pagination"
	"github.com/sonartrack/api/pkg/validator"
)

// FindingHandler handles finding listing and the triage workflow endpoints.
type FindingHandler struct {
	service  *app.FindingService
	validate *validator.Validator
}

// NewFindingHandler creates a finding handler.
func NewFindingHandler(service *app.FindingService, validate *validator.Validator) *FindingHandler {
	return &FindingHandler{service: service, validate: validate}
}

// FindingResponse represents a finding in responses.
type FindingResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	SonarKey  string `json:"sonar_key"`

	RuleKey   string   `json:"rule_key,omitempty"`
	RuleName  string   `json:"rule_name,omitempty"`
	Severity  string   `json:"severity"`
	Type      string   `json:"type"`
	Status    string   `json:"status"`
	Component string   `json:"component,omitempty"`
	Line      int      `json:"line,omitempty"`
	Message   string   `json:"message,omitempty"`
	Tags      []string `json:"tags"`
	Link      string   `json:"link,omitempty"`

	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`

	LocalStatus string     `json:"local_status"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Priority    int        `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toFindingResponse(f *finding.Finding) FindingResponse {
	return FindingResponse{
		ID:          f.ID.String(),
		ProjectID:   f.ProjectID.String(),
		SonarKey:    f.SonarKey,
		RuleKey:     f.RuleKey,
		RuleName:    f.RuleName,
		Severity:    string(f.Severity),
		Type:        string(f.Type),
		Status:      f.Status,
		Component:   f.Component,
		Line:        f.Line,
		Message:     f.Message,
		Tags:        f.Tags,
		Link:        f.Link,
		FirstSeenAt: f.FirstSeenAt,
		LastSeenAt:  f.LastSeenAt,
		ResolvedAt:  f.ResolvedAt,
		LocalStatus: string(f.LocalStatus),
		AssignedTo:  f.AssignedTo,
		Priority:    f.Priority,
		DueDate:     f.DueDate,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// List handles GET /api/v1/projects/{id}/findings.
func (h *FindingHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := finding.Filter{
		AssignedTo: q.Get("assigned_to"),
		RuleKey:    q.Get("rule_key"),
		Statuses:   parseQueryArray(q.Get("status")),
	}
	for _, s := range parseQueryArray(q.Get("severity")) {
		sev := finding.Severity(s).Normalize()
		if !sev.IsValid() {
			writeError(w, r, apierror.BadRequest("Unknown severity: "+s))
			return
		}
		filter.Severities = append(filter.Severities, sev)
	}
	for _, s := range parseQueryArray(q.Get("type")) {
		typ := finding.Type(s)
		if !typ.IsValid() {
			writeError(w, r, apierror.BadRequest("Unknown finding type: "+s))
			return
		}
		filter.Types = append(filter.Types, typ)
	}
	for _, s := range parseQueryArray(q.Get("local_status")) {
		ls := finding.LocalStatus(s)
		if !ls.IsValid() {
			writeError(w, r, apierror.BadRequest("Unknown workflow status: "+s))
			return
		}
		filter.LocalStatuses = append(filter.LocalStatuses, ls)
	}

	page := pagination.New(parseQueryInt(q.Get("page"), 1), parseQueryInt(q.Get("per_page"), 50))
	result, err := h.service.List(r.Context(), projectID, filter, page)
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}

	data := make([]FindingResponse, 0, len(result.Data))
	for _, f := range result.Data {
		data = append(data, toFindingResponse(f))
	}
	writeJSON(w, http.StatusOK, ListResponse[FindingResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// SeveritySummaryResponse aggregates a project's active findings per
// normalized severity bucket.
type SeveritySummaryResponse struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Total  int `json:"total"`
}

// Summary handles GET /api/v1/projects/{id}/findings/summary.
func (h *FindingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	counts, err := h.service.SeveritySummary(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, SeveritySummaryResponse{
		High:   counts.High,
		Medium: counts.Medium,
		Low:    counts.Low,
		Total:  counts.Total(),
	})
}

// Get handles GET /api/v1/findings/{id}.
func (h *FindingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	f, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "Finding")
		return
	}
	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// UpdateWorkflowRequest represents a triage workflow update. Absent fields
// keep their current value; clear_due_date removes the due date.
type UpdateWorkflowRequest struct {
	LocalStatus  *string    `json:"local_status,omitempty" validate:"omitempty,local_status"`
	AssignedTo   *string    `json:"assigned_to,omitempty" validate:"omitempty,max=255"`
	Priority     *int       `json:"priority,omitempty" validate:"omitempty,min=0,max=4"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
	PerformedBy  string     `json:"performed_by,omitempty" validate:"omitempty,max=255"`
}

// UpdateWorkflow handles PATCH /api/v1/findings/{id}.
func (h *FindingHandler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		handleValidationError(w, r, err)
		return
	}

	update := app.WorkflowUpdate{
		AssignedTo:  req.AssignedTo,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		ClearDue:    req.ClearDueDate,
		PerformedBy: req.PerformedBy,
	}
	if req.LocalStatus != nil {
		ls := finding.LocalStatus(*req.LocalStatus)
		update.LocalStatus = &ls
	}

	f, err := h.service.UpdateWorkflow(r.Context(), id, update)
	if err != nil {
		handleServiceError(w, r, err, "Finding")
		return
	}
	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// CommentRequest represents a new comment on a finding.
type CommentRequest struct {
	Text   string `json:"text" validate:"required,min=1,max=4000"`
	Author string `json:"author,omitempty" validate:"omitempty,max=255"`
}

// Comment handles POST /api/v1/findings/{id}/comments.
func (h *FindingHandler) Comment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		handleValidationError(w, r, err)
		return
	}

	entry, err := h.service.Comment(r.Context(), id, req.Text, req.Author)
	if err != nil {
		handleServiceError(w, r, err, "Finding")
		return
	}
	writeJSON(w, http.StatusCreated, toHistoryResponse(entry))
}

// HistoryResponse represents one audit trail entry.
type HistoryResponse struct {
	ID          string    `json:"id"`
	FindingID   string    `json:"finding_id"`
	Action      string    `json:"action"`
	Field       string    `json:"field,omitempty"`
	OldValue    string    `json:"old_value,omitempty"`
	NewValue    string    `json:"new_value,omitempty"`
	PerformedBy string    `json:"performed_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toHistoryResponse(e *finding.History) HistoryResponse {
	return HistoryResponse{
		ID:          e.ID.String(),
		FindingID:   e.FindingID.String(),
		Action:      string(e.Action),
		Field:       e.Field,
		OldValue:    e.OldValue,
		NewValue:    e.NewValue,
		PerformedBy: e.PerformedBy,
		CreatedAt:   e.CreatedAt,
	}
}

// History handles GET /api/v1/findings/{id}/history.
func (h *FindingHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "Finding")
		return
	}
	data := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, toHistoryResponse(e))
	}
	writeJSON(w, http.StatusOK, ListResponse[HistoryResponse]{
		Data:       data,
		Total:      int64(len(data)),
		Page:       1,
		PerPage:    len(data),
		TotalPages: 1,
	})
}
