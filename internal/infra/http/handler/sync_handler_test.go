package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonartrack/api/internal/app"
	appsync "github.com/sonartrack/api/internal/app/sync"
	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/logger"
)

type mockProjects struct {
	byID map[shared.ID]*project.Project
}

func newMockProjects(ps ...*project.Project) *mockProjects {
	m := &mockProjects{byID: make(map[shared.ID]*project.Project)}
	for _, p := range ps {
		m.byID[p.ID] = p
	}
	return m
}

func (m *mockProjects) Create(_ context.Context, p *project.Project) error {
	m.byID[p.ID] = p
	return nil
}

func (m *mockProjects) Update(_ context.Context, p *project.Project) error {
	m.byID[p.ID] = p
	return nil
}

func (m *mockProjects) Delete(_ context.Context, id shared.ID) error {
	delete(m.byID, id)
	return nil
}

func (m *mockProjects) GetByID(_ context.Context, id shared.ID) (*project.Project, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", shared.ErrNotFound, id)
	}
	return p, nil
}

func (m *mockProjects) GetByComponentKey(_ context.Context, key string) (*project.Project, error) {
	for _, p := range m.byID {
		if p.ComponentKey == key {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: project %s", shared.ErrNotFound, key)
}

func (m *mockProjects) List(_ context.Context) ([]*project.Project, error) {
	var out []*project.Project
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProjects) ListSyncEnabled(ctx context.Context) ([]*project.Project, error) {
	return m.List(ctx)
}

type mockDispatcher struct {
	dispatched []shared.ID
	err        error
}

func (d *mockDispatcher) Dispatch(_ context.Context, projectID shared.ID) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, projectID)
	return nil
}

func syncRequest(method, target, id string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.SetPathValue("id", id)
	return r
}

func TestSyncHandlerTrigger(t *testing.T) {
	p, err := project.New("Payments", "https://sonar.example.com", "com.example:payments")
	require.NoError(t, err)
	projects := app.NewProjectService(newMockProjects(p), nil, logger.NewNop())

	t.Run("starts a sync", func(t *testing.T) {
		registry := appsync.NewRegistry(false)
		dispatch := &mockDispatcher{}
		h := NewSyncHandler(projects, registry, dispatch, false)

		w := httptest.NewRecorder()
		h.Trigger(w, syncRequest(http.MethodPost, "/api/v1/projects/x/sync", p.ID.String()))

		assert.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, dispatch.dispatched, 1)
		assert.Equal(t, p.ID, dispatch.dispatched[0])

		var resp TriggerResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "sync started", resp.Message)
	})

	t.Run("conflict while running", func(t *testing.T) {
		registry := appsync.NewRegistry(false)
		started, err := registry.Begin(p.ID)
		require.NoError(t, err)
		require.True(t, started)

		dispatch := &mockDispatcher{}
		h := NewSyncHandler(projects, registry, dispatch, false)

		w := httptest.NewRecorder()
		h.Trigger(w, syncRequest(http.MethodPost, "/api/v1/projects/x/sync", p.ID.String()))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Empty(t, dispatch.dispatched)
	})

	t.Run("coalesces while running", func(t *testing.T) {
		registry := appsync.NewRegistry(true)
		started, err := registry.Begin(p.ID)
		require.NoError(t, err)
		require.True(t, started)

		dispatch := &mockDispatcher{}
		h := NewSyncHandler(projects, registry, dispatch, true)

		w := httptest.NewRecorder()
		h.Trigger(w, syncRequest(http.MethodPost, "/api/v1/projects/x/sync", p.ID.String()))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Empty(t, dispatch.dispatched)

		var resp TriggerResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "sync already running", resp.Message)
		assert.Equal(t, appsync.StateRunning, resp.Status.State)
	})

	t.Run("unknown project", func(t *testing.T) {
		h := NewSyncHandler(projects, appsync.NewRegistry(false), &mockDispatcher{}, false)

		w := httptest.NewRecorder()
		h.Trigger(w, syncRequest(http.MethodPost, "/api/v1/projects/x/sync", shared.NewID().String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		h := NewSyncHandler(projects, appsync.NewRegistry(false), &mockDispatcher{}, false)

		w := httptest.NewRecorder()
		h.Trigger(w, syncRequest(http.MethodPost, "/api/v1/projects/x/sync", "not-a-uuid"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("dispatcher conflict maps to 409", func(t *testing.T) {
		dispatch := &mockDispatcher{err: appsync.ErrAlreadyRunning}
		h := NewSyncHandler(projects, appsync.NewRegistry(false), dispatch, false)

		w := httptest.NewRecorder()
		h.Trigger(w, syncRequest(http.MethodPost, "/api/v1/projects/x/sync", p.ID.String()))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestSyncHandlerStatus(t *testing.T) {
	p, err := project.New("Payments", "https://sonar.example.com", "com.example:payments")
	require.NoError(t, err)
	projects := app.NewProjectService(newMockProjects(p), nil, logger.NewNop())

	t.Run("idle by default", func(t *testing.T) {
		h := NewSyncHandler(projects, appsync.NewRegistry(false), &mockDispatcher{}, false)

		w := httptest.NewRecorder()
		h.Status(w, syncRequest(http.MethodGet, "/api/v1/projects/x/sync/status", p.ID.String()))

		assert.Equal(t, http.StatusOK, w.Code)

		var status appsync.Status
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, appsync.StateIdle, status.State)
	})

	t.Run("reports progress mid run", func(t *testing.T) {
		registry := appsync.NewRegistry(false)
		_, err := registry.Begin(p.ID)
		require.NoError(t, err)
		registry.Step(p.ID, 60, "collecting hotspots")

		h := NewSyncHandler(projects, registry, &mockDispatcher{}, false)

		w := httptest.NewRecorder()
		h.Status(w, syncRequest(http.MethodGet, "/api/v1/projects/x/sync/status", p.ID.String()))

		var status appsync.Status
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, appsync.StateRunning, status.State)
		assert.Equal(t, 60, status.Progress)
		assert.Equal(t, "collecting hotspots", status.CurrentStep)
	})
}
