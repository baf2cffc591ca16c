// handlers_results.go - Summary, table and export handlers
package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oncoscope/backend/internal/export"
	"github.com/oncoscope/backend/internal/models"
	"github.com/oncoscope/backend/internal/query"
	"github.com/vmihailenco/msgpack/v5"
)

// ResultsHandlerImpl implements the ResultsHandler interface
type ResultsHandlerImpl struct {
	workflows WorkflowManager
	sheetName string
}

// NewResultsHandler creates a new results handler instance
func NewResultsHandler(workflows WorkflowManager, sheetName string) ResultsHandler {
	return &ResultsHandlerImpl{
		workflows: workflows,
		sheetName: sheetName,
	}
}

// columnarView is the msgpack body: one value slice per row, ordered like
// Columns, with nil for a missing field.
type columnarView struct {
	Columns      []string            `msgpack:"columns"`
	Rows         [][]interface{}     `msgpack:"rows"`
	Shown        int                 `msgpack:"shown"`
	Total        int                 `msgpack:"total"`
	Class        string              `msgpack:"class"`
	Search       string              `msgpack:"search"`
	SortKey      string              `msgpack:"sortKey"`
	SortDir      string              `msgpack:"sortDir"`
	ClassOptions []query.ClassOption `msgpack:"classOptions"`
}

// HandleSummary returns the aggregate view of the batch
func (h *ResultsHandlerImpl) HandleSummary(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}
	s, err := wf.Summary()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// HandleResults returns the filtered, searched and sorted rows
func (h *ResultsHandlerImpl) HandleResults(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}
	p, err := buildQueryParams(c, wf.ViewParams())
	if err != nil {
		return err
	}
	v, err := wf.Query(p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// HandleResultsMsgpack returns the same view as HandleResults in columnar
// msgpack form
func (h *ResultsHandlerImpl) HandleResultsMsgpack(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}
	p, err := buildQueryParams(c, wf.ViewParams())
	if err != nil {
		return err
	}
	v, err := wf.Query(p)
	if err != nil {
		return err
	}

	body := columnarView{
		Columns:      v.Columns,
		Rows:         make([][]interface{}, len(v.Rows)),
		Shown:        v.Shown,
		Total:        v.Total,
		Class:        v.Params.Class,
		Search:       v.Params.Search,
		SortKey:      v.Params.Sort.Key,
		SortDir:      string(v.Params.Sort.Direction),
		ClassOptions: v.Options,
	}
	for i, r := range v.Rows {
		row := make([]interface{}, len(v.Columns))
		for j, col := range v.Columns {
			if val, ok := r.Get(col); ok {
				row[j] = val.Raw()
			}
		}
		body.Rows[i] = row
	}

	data, err := msgpack.Marshal(body)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleToggleSort flips or selects the sort column of the workflow's view
func (h *ResultsHandlerImpl) HandleToggleSort(c echo.Context) error {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return err
	}
	key := c.QueryParam("key")
	if key == "" {
		return NewBadRequestError("sort key is required", nil)
	}
	v, err := wf.ToggleSort(key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// HandleExportCSV downloads the current view, or the whole batch with
// scope=all, as delimited text
func (h *ResultsHandlerImpl) HandleExportCSV(c echo.Context) error {
	records, columns, err := h.exportRecords(c)
	if err != nil {
		return err
	}
	text, err := export.ToDelimitedText(records, columns)
	if err != nil {
		return NewInternalError("failed to build export", err)
	}
	setAttachment(c, export.CSVFileName)
	return c.Blob(http.StatusOK, export.CSVContentType, []byte(text))
}

// HandleExportXLSX downloads the same table as a workbook
func (h *ResultsHandlerImpl) HandleExportXLSX(c echo.Context) error {
	records, columns, err := h.exportRecords(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, records, columns, h.sheetName); err != nil {
		return NewInternalError("failed to build workbook", err)
	}
	setAttachment(c, export.XLSXFileName)
	return c.Blob(http.StatusOK, export.XLSXContentType, buf.Bytes())
}

// exportRecords returns the rows to export and the batch's column order,
// which does not depend on which rows survived the view.
func (h *ResultsHandlerImpl) exportRecords(c echo.Context) ([]models.ResultRecord, []string, error) {
	wf, err := lookupWorkflow(c, h.workflows)
	if err != nil {
		return nil, nil, err
	}
	if c.QueryParam("scope") == "all" {
		batch, err := wf.Results()
		if err != nil {
			return nil, nil, err
		}
		return batch.Records, batch.Columns, nil
	}
	p, err := buildQueryParams(c, wf.ViewParams())
	if err != nil {
		return nil, nil, err
	}
	v, err := wf.Query(p)
	if err != nil {
		return nil, nil, err
	}
	return v.Rows, v.Columns, nil
}

// buildQueryParams overlays the request's class, search, sort and dir
// parameters on the workflow's remembered view.
func buildQueryParams(c echo.Context, current query.Params) (query.Params, error) {
	p := current
	qp := c.QueryParams()
	if _, ok := qp["class"]; ok {
		p.Class = c.QueryParam("class")
	}
	if _, ok := qp["search"]; ok {
		p.Search = c.QueryParam("search")
	}
	if _, ok := qp["sort"]; ok {
		p.Sort.Key = c.QueryParam("sort")
	}
	if _, ok := qp["dir"]; ok {
		dir, err := query.ParseDirection(c.QueryParam("dir"))
		if err != nil {
			return p, NewBadRequestError("invalid sort direction", err)
		}
		p.Sort.Direction = dir
	}
	return p.Normalize(), nil
}

func setAttachment(c echo.Context, name string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
}
