// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oncoscope/backend/internal/storage"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version   string
	workflows WorkflowManager
	store     storage.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, workflows WorkflowManager, store storage.Store) HealthHandler {
	return &HealthHandlerImpl{
		version:   version,
		workflows: workflows,
		store:     store,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.workflows != nil {
		body["workflows"] = h.workflows.Len()
	}
	if h.store != nil {
		files, size := h.store.Usage()
		body["stagedFiles"] = files
		body["stagedBytes"] = size
	}
	return c.JSON(http.StatusOK, body)
}
