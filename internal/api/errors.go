// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oncoscope/backend/internal/intake"
	"github.com/oncoscope/backend/internal/models"
	"github.com/oncoscope/backend/internal/storage"
	"github.com/oncoscope/backend/internal/workflow"
	"github.com/rs/zerolog/log"
)

// Every error response has the same {"detail","status"} body as the
// workflow's own error object, so the dashboard renders both the same way.

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *models.APIError {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &models.APIError{Status: http.StatusBadRequest, Detail: message}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *models.APIError {
	return &models.APIError{
		Status: http.StatusNotFound,
		Detail: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *models.APIError {
	return &models.APIError{Status: http.StatusConflict, Detail: message}
}

// NewUnprocessableError creates a 422 error for files that cannot be read
func NewUnprocessableError(message string, cause error) *models.APIError {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &models.APIError{Status: http.StatusUnprocessableEntity, Detail: message}
}

// NewBadGatewayError creates a 502 error for upstream failures
func NewBadGatewayError(message string) *models.APIError {
	return &models.APIError{Status: http.StatusBadGateway, Detail: message}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *models.APIError {
	if cause != nil {
		log.Error().Err(cause).Msg(message)
	}
	return &models.APIError{Status: http.StatusInternalServerError, Detail: message}
}

const workflowNotFoundDetail = "Workflow not found"

// apiErrorer is implemented by errors that carry their own response, such as
// intake rejections.
type apiErrorer interface {
	APIError() *models.APIError
}

// toAPIError maps domain errors onto response bodies.
func toAPIError(err error) *models.APIError {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var carrier apiErrorer
	if errors.As(err, &carrier) {
		return carrier.APIError()
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return &models.APIError{Status: he.Code, Detail: fmt.Sprintf("%v", he.Message)}
	}

	switch {
	case errors.Is(err, intake.ErrInvalidFileType):
		return models.NewInvalidFileTypeError()
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, workflow.ErrClosed):
		return &models.APIError{Status: http.StatusNotFound, Detail: workflowNotFoundDetail}
	case errors.Is(err, workflow.ErrBusy):
		return NewConflictError("A prediction is already in progress")
	case errors.Is(err, workflow.ErrNotIdle):
		return NewConflictError("Reset the workflow before uploading another file")
	case errors.Is(err, workflow.ErrNoResults):
		return NewConflictError("No prediction results are available")
	case errors.Is(err, workflow.ErrTooManyWorkflows):
		return &models.APIError{Status: http.StatusServiceUnavailable, Detail: "Too many active workflows, try again later"}
	case errors.Is(err, storage.ErrTooLarge):
		return &models.APIError{Status: http.StatusRequestEntityTooLarge, Detail: err.Error()}
	}

	log.Error().Err(err).Msg("unhandled API error")
	return &models.APIError{Status: http.StatusInternalServerError, Detail: "An unexpected error occurred"}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	apiErr := toAPIError(err)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
