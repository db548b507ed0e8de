// Package routes wires the HTTP handlers onto the router.
package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihttp "github.com/sonartrack/api/internal/infra/http"
	"github.com/sonartrack/api/internal/infra/http/handler"
	"github.com/sonartrack/api/internal/infra/websocket"
)

// Handlers collects the handlers the router serves. Optional entries may be
// nil; their routes are skipped.
type Handlers struct {
	Health    *handler.HealthHandler
	Projects  *handler.ProjectHandler
	Sync      *handler.SyncHandler
	Findings  *handler.FindingHandler
	Scans     *handler.ScanHandler
	Trends    *handler.TrendHandler
	Reports   *handler.ReportHandler
	WebSocket *websocket.Handler
}

// RegisterAll mounts every route on the router.
func RegisterAll(r apihttp.Router, h Handlers) {
	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", promhttp.Handler().ServeHTTP)

	r.Group("/api/v1", func(api apihttp.Router) {
		api.Group("/projects", func(projects apihttp.Router) {
			projects.GET("/", h.Projects.List)
			projects.POST("/", h.Projects.Create)
			projects.GET("/{id}", h.Projects.Get)
			projects.PATCH("/{id}", h.Projects.Update)
			projects.DELETE("/{id}", h.Projects.Delete)

			projects.POST("/{id}/sync", h.Sync.Trigger)
			projects.GET("/{id}/sync/status", h.Sync.Status)
			projects.GET("/{id}/sync/runs", h.Scans.Runs)

			projects.GET("/{id}/findings", h.Findings.List)
			projects.GET("/{id}/findings/summary", h.Findings.Summary)

			projects.GET("/{id}/scans", h.Scans.List)
			projects.GET("/{id}/scans/latest", h.Scans.Latest)

			projects.GET("/{id}/trends", h.Trends.History)
			projects.GET("/{id}/trends/analysis", h.Trends.Analysis)

			if h.Reports != nil {
				projects.GET("/{id}/report", h.Reports.Generate)
			}
		})

		api.Group("/findings", func(findings apihttp.Router) {
			findings.GET("/{id}", h.Findings.Get)
			findings.PATCH("/{id}", h.Findings.UpdateWorkflow)
			findings.GET("/{id}/history", h.Findings.History)
			findings.POST("/{id}/comments", h.Findings.Comment)
		})

		if h.WebSocket != nil {
			api.GET("/ws", h.WebSocket.ServeWS)
		}
	})
}
