// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oncoscope/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Workflows   WorkflowManager
	Store       storage.Store
	Templates   TemplateSource
	Metrics     http.Handler
	PreviewRows int
	SheetName   string
	Version     string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Workflow WorkflowHandler
	Results  ResultsHandler
	Template TemplateHandler
	Metrics  http.Handler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Workflows, deps.Store),
		Workflow: NewWorkflowHandler(deps.Workflows, deps.Store, deps.PreviewRows),
		Results:  NewResultsHandler(deps.Workflows, deps.SheetName),
		Template: NewTemplateHandler(deps.Templates),
		Metrics:  deps.Metrics,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.GET("/template", handlers.Template.HandleTemplate)

	// Workflow routes
	wf := apiGroup.Group("/workflows")
	wf.POST("", handlers.Workflow.HandleCreateWorkflow)
	wf.GET("/:id", handlers.Workflow.HandleGetWorkflow)
	wf.DELETE("/:id", handlers.Workflow.HandleDeleteWorkflow)
	wf.POST("/:id/upload", handlers.Workflow.HandleUpload)
	wf.POST("/:id/reset", handlers.Workflow.HandleReset)
	wf.GET("/:id/status/stream", handlers.Workflow.HandleStatusStream)
	wf.GET("/:id/preview", handlers.Workflow.HandlePreview)

	// Result views
	wf.GET("/:id/summary", handlers.Results.HandleSummary)
	wf.GET("/:id/results", handlers.Results.HandleResults)
	wf.GET("/:id/results/msgpack", handlers.Results.HandleResultsMsgpack)
	wf.POST("/:id/results/sort", handlers.Results.HandleToggleSort)
	wf.GET("/:id/export.csv", handlers.Results.HandleExportCSV)
	wf.GET("/:id/export.xlsx", handlers.Results.HandleExportXLSX)

	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}
}
