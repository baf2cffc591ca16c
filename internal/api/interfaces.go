// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/oncoscope/backend/internal/predict"
	"github.com/oncoscope/backend/internal/workflow"
)

// WorkflowHandler handles workflow lifecycle operations
type WorkflowHandler interface {
	HandleCreateWorkflow(c echo.Context) error
	HandleGetWorkflow(c echo.Context) error
	HandleDeleteWorkflow(c echo.Context) error
	HandleUpload(c echo.Context) error
	HandleReset(c echo.Context) error
	HandleStatusStream(c echo.Context) error
	HandlePreview(c echo.Context) error
}

// ResultsHandler handles views over a settled batch
type ResultsHandler interface {
	HandleSummary(c echo.Context) error
	HandleResults(c echo.Context) error
	HandleResultsMsgpack(c echo.Context) error
	HandleToggleSort(c echo.Context) error
	HandleExportCSV(c echo.Context) error
	HandleExportXLSX(c echo.Context) error
}

// TemplateHandler proxies the sample sheet download
type TemplateHandler interface {
	HandleTemplate(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// WorkflowManager defines the interface for workflow management
// This allows mocking in tests
type WorkflowManager interface {
	Create() (*workflow.Controller, error)
	Get(id string) (*workflow.Controller, error)
	Delete(id string) error
	Len() int
}

// TemplateSource fetches the sample sheet
type TemplateSource interface {
	Template(ctx context.Context) (*predict.Template, error)
}
