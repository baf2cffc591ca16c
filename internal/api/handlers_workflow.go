// handlers_workflow.go - Workflow lifecycle handlers
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oncoscope/backend/internal/intake"
	"github.com/oncoscope/backend/internal/models"
	"github.com/oncoscope/backend/internal/storage"
	"github.com/oncoscope/backend/internal/tabular"
	"github.com/oncoscope/backend/internal/workflow"
)

const (
	streamPollInterval = 100 * time.Millisecond
	streamTimeout      = 5 * time.Minute
)

// WorkflowHandlerImpl implements the WorkflowHandler interface
type WorkflowHandlerImpl struct {
	workflows   WorkflowManager
	store       storage.Store
	readers     *tabular.Registry
	previewRows int
}

// NewWorkflowHandler creates a new workflow handler instance
func NewWorkflowHandler(workflows WorkflowManager, store storage.Store, previewRows int) WorkflowHandler {
	return &WorkflowHandlerImpl{
		workflows:   workflows,
		store:       store,
		readers:     tabular.GetGlobalRegistry(),
		previewRows: previewRows,
	}
}

// lookupWorkflow resolves :id and marks the workflow as in use.
func lookupWorkflow(c echo.Context, workflows WorkflowManager) (*workflow.Controller, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewBadRequestError("workflow id is required", nil)
	}
	wf, err := workflows.Get(id)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return nil, NewNotFoundError("workflow", id)
		}
		return nil, err
	}
	wf.Touch()
	return wf, nil
}

// HandleCreateWorkflow creates an idle workflow
func (h *WorkflowHandlerImpl) HandleCreateWorkflow(c echo.Context) error {
	wf, err := h.workflows.Create()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, wf.Snapshot())
}

// HandleGetWorkflow returns the current snapshot
func (h *WorkflowHandlerImpl) HandleGetWorkflow(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf.Snapshot())
}

// HandleDeleteWorkflow cancels and forgets a workflow
func (h *WorkflowHandlerImpl) HandleDeleteWorkflow(c echo.Context) error {
	id := c.Param("id")
	if err := h.workflows.Delete(id); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return NewNotFoundError("workflow", id)
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleUpload validates and stages the multipart "file" field, then starts
// the prediction run
func (h *WorkflowHandlerImpl) HandleUpload(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	sel := intake.NewSelection(file.Filename, file.Size, file.Header.Get("Content-Type"))
	if err := intake.Validate(sel); err != nil {
		return err
	}

	// Refuse early so a busy workflow never stages bytes it cannot use.
	switch state := wf.State(); {
	case state.InFlight():
		return workflow.ErrBusy
	case state != models.StateIdle:
		return workflow.ErrNotIdle
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	staged, err := h.store.Stage(sel, src)
	if err != nil {
		return err
	}
	content, err := h.store.Open(staged.ID)
	if err != nil {
		return NewInternalError("failed to read staged file", err)
	}

	if err := wf.Start(staged, content); err != nil {
		_ = h.store.Delete(staged.ID)
		return err
	}

	return c.JSON(http.StatusAccepted, wf.Snapshot())
}

// HandleReset returns a settled workflow to idle
func (h *WorkflowHandlerImpl) HandleReset(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}
	if err := wf.Reset(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf.Snapshot())
}

// HandleStatusStream streams workflow snapshots via SSE until the run settles
func (h *WorkflowHandlerImpl) HandleStatusStream(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	run := wf.Snapshot()
	sendSSEData(c, run)
	if !run.State.InFlight() {
		return nil
	}
	lastGen := run.Generation

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(streamTimeout)
	defer timeout.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-wf.Changed():
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		}

		// Deleted while in flight: the state never settles.
		if wf.Closed() {
			sendSSEError(c, workflowNotFoundDetail)
			return nil
		}

		run := wf.Snapshot()
		if run.Generation == lastGen {
			continue
		}
		lastGen = run.Generation
		sendSSEData(c, run)

		if !run.State.InFlight() {
			return nil
		}
	}
}

// HandlePreview returns the header and first rows of the staged file
func (h *WorkflowHandlerImpl) HandlePreview(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}

	sel, ok := wf.File()
	if !ok {
		return NewConflictError("No file has been uploaded")
	}

	content, err := h.store.Open(sel.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewConflictError("The uploaded file is no longer available")
		}
		return NewInternalError("failed to read staged file", err)
	}

	table, err := h.readers.Read(intake.Format(sel), content, h.previewRows)
	if err != nil {
		return NewUnprocessableError("Could not read the uploaded file", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"file":      sel,
		"header":    table.Header,
		"rows":      table.Rows,
		"totalRows": table.TotalRows,
	})
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
