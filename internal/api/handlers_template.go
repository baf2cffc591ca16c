// handlers_template.go - Sample sheet download
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oncoscope/backend/internal/models"
	"github.com/rs/zerolog/log"
)

// TemplateHandlerImpl implements the TemplateHandler interface
type TemplateHandlerImpl struct {
	source TemplateSource
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(source TemplateSource) TemplateHandler {
	return &TemplateHandlerImpl{source: source}
}

// HandleTemplate streams the template from the prediction service. Any
// upstream failure is reported as 502 and leaves workflows untouched.
func (h *TemplateHandlerImpl) HandleTemplate(c echo.Context) error {
	tpl, err := h.source.Template(c.Request().Context())
	if err != nil {
		log.Warn().Err(err).Msg("template download failed")
		detail := "Failed to download template"
		var apiErr *models.APIError
		if errors.As(err, &apiErr) {
			detail = fmt.Sprintf("%s: %s", detail, apiErr.Detail)
		}
		return NewBadGatewayError(detail)
	}

	setAttachment(c, tpl.Name)
	return c.Blob(http.StatusOK, tpl.ContentType, tpl.Data)
}
