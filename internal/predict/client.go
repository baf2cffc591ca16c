// Package predict talks to the remote prediction and template services.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/oncoscope/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPredictPath      = "/predict"
	DefaultTemplatePath     = "/template"
	DefaultTemplateFileName = "cancer_prediction_template.xlsx"
	DefaultTimeout          = 2 * time.Minute
	// FormField is the multipart field carrying the uploaded file.
	FormField = "file"

	maxResponseBytes = 64 << 20
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL      string
	PredictPath  string
	TemplatePath string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client calls the prediction service. It is safe for concurrent use.
type Client struct {
	baseURL      string
	predictPath  string
	templatePath string
	timeout      time.Duration
	http         *http.Client
	logger       zerolog.Logger
}

// Template is a downloadable sample sheet.
type Template struct {
	Name        string
	ContentType string
	Data        []byte
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		predictPath:  opts.PredictPath,
		templatePath: opts.TemplatePath,
		timeout:      opts.Timeout,
		http:         opts.HTTPClient,
		logger:       log.With().Str("component", "predict").Logger(),
	}
	if c.predictPath == "" {
		c.predictPath = DefaultPredictPath
	}
	if c.templatePath == "" {
		c.templatePath = DefaultTemplatePath
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

// Predict uploads content and returns the decoded rows in service order.
// Every failure is returned as a *models.APIError.
func (c *Client) Predict(ctx context.Context, sel *models.FileSelection, content io.Reader) ([]models.ResultRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := multipartBody(sel, content)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.predictPath, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := transportError(ctx, err)
		c.logger.Warn().Err(err).Str("kind", string(apiErr.Kind)).Msg("predict request failed")
		return nil, apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		apiErr := transportError(ctx, err)
		c.logger.Warn().Err(err).Msg("reading predict response failed")
		return nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := models.NewServiceError(errorDetail(data), resp.StatusCode)
		c.logger.Warn().Int("status", resp.StatusCode).Str("detail", apiErr.Detail).Msg("prediction service rejected upload")
		return nil, apiErr
	}

	records, err := decodeRecords(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("malformed prediction response")
		return nil, models.NewMalformedResponseError(err)
	}

	c.logger.Debug().
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("prediction complete")
	return records, nil
}

// Template fetches the sample sheet.
func (c *Client) Template(ctx context.Context) (*Template, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.templatePath, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, models.NewServiceError(errorDetail(data), resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Template{
		Name:        attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: ct,
		Data:        data,
	}, nil
}

func multipartBody(sel *models.FileSelection, content io.Reader) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := "upload"
	ct := "application/octet-stream"
	if sel != nil {
		if sel.Name != "" {
			name = sel.Name
		}
		if sel.MIMEType != "" {
			ct = sel.MIMEType
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     FormField,
		"filename": name,
	}))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// transportError classifies a failure that produced no usable response.
func transportError(ctx context.Context, err error) *models.APIError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return models.NewTimeoutError()
	}
	return models.NewNetworkError()
}

// errorDetail extracts a string "detail" from an error body.
func errorDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil {
		return ""
	}
	return detail
}

func decodeRecords(data []byte) ([]models.ResultRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("expected a JSON array of records")
	}
	var records []models.ResultRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = make([]models.ResultRecord, 0)
	}
	return records, nil
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return DefaultTemplateFileName
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return DefaultTemplateFileName
	}
	return params["filename"]
}
