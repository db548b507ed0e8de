package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sonartrack/api/internal/app"
	"github.com/sonartrack/api/pkg/apierror"
	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/validator"
)

// ProjectHandler handles project CRUD endpoints.
type ProjectHandler struct {
	service  *app.ProjectService
	validate *validator.Validator
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(service *app.ProjectService, validate *validator.Validator) *ProjectHandler {
	return &ProjectHandler{service: service, validate: validate}
}

// CreateProjectRequest represents the request to register a project.
type CreateProjectRequest struct {
	Name         string                 `json:"name" validate:"required,min=1,max=255"`
	BaseURL      string                 `json:"base_url" validate:"required,http_url"`
	ComponentKey string                 `json:"component_key" validate:"required,component_key"`
	Branch       string                 `json:"branch,omitempty" validate:"omitempty,max=255"`
	Token        string                 `json:"token,omitempty"`
	Login        string                 `json:"login,omitempty"`
	Password     string                 `json:"password,omitempty"`
	Options      *ProjectOptionsRequest `json:"options,omitempty"`
	SyncEnabled  *bool                  `json:"sync_enabled,omitempty"`
	SyncSchedule *string                `json:"sync_schedule,omitempty" validate:"omitempty,cron_schedule"`
}

// UpdateProjectRequest represents a partial project update. All fields are
// optional; absent fields keep their current value.
type UpdateProjectRequest struct {
	Name         string                 `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	BaseURL      string                 `json:"base_url,omitempty" validate:"omitempty,http_url"`
	ComponentKey string                 `json:"component_key,omitempty" validate:"omitempty,component_key"`
	Branch       string                 `json:"branch,omitempty" validate:"omitempty,max=255"`
	Token        string                 `json:"token,omitempty"`
	Login        string                 `json:"login,omitempty"`
	Password     string                 `json:"password,omitempty"`
	Options      *ProjectOptionsRequest `json:"options,omitempty"`
	SyncEnabled  *bool                  `json:"sync_enabled,omitempty"`
	SyncSchedule *string                `json:"sync_schedule,omitempty" validate:"omitempty,cron_schedule"`
}

// ProjectOptionsRequest mirrors the optional collector toggles.
type ProjectOptionsRequest struct {
	QualityGate   bool `json:"quality_gate"`
	Coverage      bool `json:"coverage"`
	NewCodePeriod bool `json:"new_code_period"`
	Hotspots      bool `json:"hotspots"`
}

// ProjectResponse represents a project in responses. Credentials are never
// echoed back.
type ProjectResponse struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	BaseURL        string                `json:"base_url"`
	ComponentKey   string                `json:"component_key"`
	Branch         string                `json:"branch,omitempty"`
	HasCredentials bool                  `json:"has_credentials"`
	Options        ProjectOptionsRequest `json:"options"`
	SyncEnabled    bool                  `json:"sync_enabled"`
	SyncSchedule   string                `json:"sync_schedule,omitempty"`
	LastSyncAt     *time.Time            `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func toProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:             p.ID.String(),
		Name:           p.Name,
		BaseURL:        p.BaseURL,
		ComponentKey:   p.ComponentKey,
		Branch:         p.Branch,
		HasCredentials: !p.Credentials.IsZero(),
		Options: ProjectOptionsRequest{
			QualityGate:   p.Options.QualityGate,
			Coverage:      p.Options.Coverage,
			NewCodePeriod: p.Options.NewCodePeriod,
			Hotspots:      p.Options.Hotspots,
		},
		SyncEnabled:  p.SyncEnabled,
		SyncSchedule: p.SyncSchedule,
		LastSyncAt:   p.LastSyncAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// Create handles POST /api/v1/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		handleValidationError(w, r, err)
		return
	}

	p, err := h.service.Create(r.Context(), toProjectInput(req.Name, req.BaseURL, req.ComponentKey, req.Branch,
		req.Token, req.Login, req.Password, req.Options, req.SyncEnabled, req.SyncSchedule))
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

// List handles GET /api/v1/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}

	data := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		data = append(data, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, ListResponse[ProjectResponse]{
		Data:       data,
		Total:      int64(len(data)),
		Page:       1,
		PerPage:    len(data),
		TotalPages: 1,
	})
}

// Get handles GET /api/v1/projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// Update handles PATCH /api/v1/projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierror.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		handleValidationError(w, r, err)
		return
	}

	p, err := h.service.Update(r.Context(), id, toProjectInput(req.Name, req.BaseURL, req.ComponentKey, req.Branch,
		req.Token, req.Login, req.Password, req.Options, req.SyncEnabled, req.SyncSchedule))
	if err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// Delete handles DELETE /api/v1/projects/{id}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "Project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toProjectInput(name, baseURL, componentKey, branch, token, login, password string,
	opts *ProjectOptionsRequest, syncEnabled *bool, syncSchedule *string) app.ProjectInput {
	in := app.ProjectInput{
		Name:         name,
		BaseURL:      baseURL,
		ComponentKey: componentKey,
		Branch:       branch,
		Credentials: project.Credentials{
			Token:    token,
			Login:    login,
			Password: password,
		},
		SyncEnabled:  syncEnabled,
		SyncSchedule: syncSchedule,
	}
	if opts != nil {
		in.Options = &project.Options{
			QualityGate:   opts.QualityGate,
			Coverage:      opts.Coverage,
			NewCodePeriod: opts.NewCodePeriod,
			Hotspots:      opts.Hotspots,
		}
	}
	return in
}
