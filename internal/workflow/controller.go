// Package workflow runs the upload-and-predict state machine and owns each
// run's canonical result batch.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oncoscope/backend/internal/intake"
	"github.com/oncoscope/backend/internal/models"
	"github.com/oncoscope/backend/internal/query"
	"github.com/oncoscope/backend/internal/storage"
	"github.com/oncoscope/backend/internal/summary"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrBusy is returned while a prediction call is outstanding.
	ErrBusy = errors.New("workflow is busy")
	// ErrNotIdle is returned by Start when a settled run has not been reset.
	ErrNotIdle = errors.New("workflow must be reset before a new upload")
	// ErrNoResults is returned by result accessors outside the success state.
	ErrNoResults = errors.New("workflow has no results")
	// ErrClosed is returned once a workflow has been deleted.
	ErrClosed = errors.New("workflow is closed")
)

// Predictor submits a file for classification.
type Predictor interface {
	Predict(ctx context.Context, sel *models.FileSelection, content io.Reader) ([]models.ResultRecord, error)
}

// Options tune a Controller. Zero values are usable.
type Options struct {
	// FeedbackDelay holds the uploading state before dispatch.
	FeedbackDelay time.Duration
	// Timeout bounds a whole run; zero leaves it to the Predictor.
	Timeout time.Duration
	Catalog *models.Catalog
	Engine  *query.Engine
	// Store, when set, has the run's staged file deleted on Reset and Close.
	Store   storage.Store
	Metrics *Metrics
}

// Controller is one workflow instance. All methods are safe for concurrent
// use.
type Controller struct {
	id        string
	predictor Predictor
	opts      Options
	logger    zerolog.Logger

	mu           sync.Mutex
	state        models.UploadState
	file         *models.FileSelection
	batch        *models.Batch
	apiErr       *models.APIError
	createdAt    time.Time
	startedAt    time.Time
	completedAt  time.Time
	processingMs int64
	generation   uint64
	lastAccessed time.Time
	closed       bool

	cancel  context.CancelFunc
	changed chan struct{}

	view        query.Params
	summary     *models.SummaryView
	summaryGen  uint64
	cachedQuery *cachedView
}

type cachedView struct {
	gen    uint64
	params query.Params
	view   query.View
}

// NewController creates an idle workflow.
func NewController(id string, p Predictor, opts Options) *Controller {
	if opts.Catalog == nil {
		opts.Catalog = models.DefaultCatalog()
	}
	if opts.Engine == nil {
		opts.Engine, _ = query.NewEngine(query.DefaultLocale)
	}
	now := time.Now()
	return &Controller{
		id:           id,
		predictor:    p,
		opts:         opts,
		logger:       log.With().Str("component", "workflow").Str("workflow", shortID(id)).Logger(),
		state:        models.StateIdle,
		createdAt:    now,
		lastAccessed: now,
		changed:      make(chan struct{}),
		view:         query.DefaultParams(),
	}
}

// ID returns the workflow id.
func (c *Controller) ID() string { return c.id }

// State returns the current upload state.
func (c *Controller) State() models.UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start validates sel and dispatches a prediction call in the background.
// It is accepted only from idle; a rejected file never changes state.
func (c *Controller) Start(sel *models.FileSelection, content io.Reader) error {
	if err := intake.Validate(sel); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return ErrClosed
	case c.state.InFlight():
		return ErrBusy
	case c.state != models.StateIdle:
		return ErrNotIdle
	}

	base := context.Background()
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(base, c.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(base)
	}

	c.cancel = cancel
	c.file = sel
	c.apiErr = nil
	c.batch = nil
	c.startedAt = time.Now()
	c.completedAt = time.Time{}
	c.processingMs = 0
	c.lastAccessed = c.startedAt
	c.transitionLocked(models.StateUploading)
	gen := c.generation

	c.opts.Metrics.started()
	c.logger.Info().
		Str("file", sel.Name).
		Int64("size", sel.Size).
		Msg("upload started")

	go c.run(ctx, cancel, gen, sel, content)
	return nil
}

// Submit starts a run and waits until it settles or ctx is done.
func (c *Controller) Submit(ctx context.Context, sel *models.FileSelection, content io.Reader) (models.WorkflowRun, error) {
	if err := c.Start(sel, content); err != nil {
		return c.Snapshot(), err
	}
	return c.Wait(ctx)
}

// Wait blocks until no prediction call is outstanding.
func (c *Controller) Wait(ctx context.Context) (models.WorkflowRun, error) {
	for {
		c.mu.Lock()
		inFlight := c.state.InFlight()
		ch := c.changed
		c.mu.Unlock()

		if !inFlight {
			return c.Snapshot(), nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

// Changed returns a channel closed at the next state change.
func (c *Controller) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, sel *models.FileSelection, content io.Reader) {
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("prediction run panicked")
			c.settle(gen, nil, models.NewServiceError("", 500), time.Since(start))
		}
	}()

	if d := c.opts.FeedbackDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	c.mu.Lock()
	if c.generation != gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(models.StateProcessing)
	gen = c.generation
	c.mu.Unlock()

	records, err := c.predictor.Predict(ctx, sel, content)
	c.settle(gen, records, err, time.Since(start))
}

func (c *Controller) settle(gen uint64, records []models.ResultRecord, err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen || c.closed {
		return
	}

	c.completedAt = time.Now()
	c.processingMs = elapsed.Milliseconds()
	c.cancel = nil

	if err != nil {
		c.apiErr = normalize(err)
		c.transitionLocked(models.StateError)
		c.opts.Metrics.settled(string(c.apiErr.Kind), elapsed, 0)
		c.logger.Warn().
			Str("kind", string(c.apiErr.Kind)).
			Int("status", c.apiErr.Status).
			Str("detail", c.apiErr.Detail).
			Msg("prediction failed")
		return
	}

	c.batch = models.NewBatch(records)
	c.transitionLocked(models.StateSuccess)
	c.opts.Metrics.settled("success", elapsed, c.batch.Len())
	if len(c.batch.DriftColumns) > 0 {
		c.logger.Warn().Strs("columns", c.batch.DriftColumns).Msg("later rows introduced new columns")
	}
	c.logger.Info().
		Int("records", c.batch.Len()).
		Int64("elapsed_ms", c.processingMs).
		Msg("prediction complete")
}

// normalize maps any failure onto the user-facing error shape.
func normalize(err error) *models.APIError {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError()
	}
	return models.NewNetworkError()
}

// transitionLocked moves to next, bumps the generation and wakes waiters.
func (c *Controller) transitionLocked(next models.UploadState) {
	c.state = next
	c.generation++
	close(c.changed)
	c.changed = make(chan struct{})
}

// Reset returns a settled workflow to idle and drops its file and batch.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state.InFlight() {
		return ErrBusy
	}

	c.dropFileLocked()
	c.batch = nil
	c.apiErr = nil
	c.startedAt = time.Time{}
	c.completedAt = time.Time{}
	c.processingMs = 0
	c.view = query.DefaultParams()
	c.summary = nil
	c.cachedQuery = nil
	c.transitionLocked(models.StateIdle)
	c.logger.Debug().Msg("workflow reset")
	return nil
}

// Close cancels any outstanding call and releases the staged file. A closed
// workflow rejects further operations.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.opts.Metrics.settled("cancelled", time.Since(c.startedAt), 0)
	}
	c.closed = true
	c.dropFileLocked()
	c.batch = nil
	c.summary = nil
	c.cachedQuery = nil
	c.transitionLocked(c.state)
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) dropFileLocked() {
	if c.file != nil && c.opts.Store != nil {
		if err := c.opts.Store.Delete(c.file.ID); err != nil {
			c.logger.Warn().Err(err).Msg("dropping staged file")
		}
	}
	c.file = nil
}

// Touch records activity so the manager keeps the workflow alive.
func (c *Controller) Touch() {
	c.mu.Lock()
	c.lastAccessed = time.Now()
	c.mu.Unlock()
}

func (c *Controller) idleSince() (time.Time, models.UploadState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAccessed, c.state
}

// Snapshot returns a copy of the workflow's externally visible state.
func (c *Controller) Snapshot() models.WorkflowRun {
	c.mu.Lock()
	defer c.mu.Unlock()

	run := models.WorkflowRun{
		ID:               c.id,
		State:            c.state,
		CreatedAt:        c.createdAt,
		ProcessingTimeMs: c.processingMs,
		Generation:       c.generation,
	}
	if c.file != nil {
		f := *c.file
		run.File = &f
	}
	if c.apiErr != nil {
		e := *c.apiErr
		run.Error = &e
	}
	if c.batch != nil {
		run.RecordCount = c.batch.Len()
		run.Columns = append([]string(nil), c.batch.Columns...)
		run.DriftColumns = append([]string(nil), c.batch.DriftColumns...)
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		run.StartedAt = &t
	}
	if !c.completedAt.IsZero() {
		t := c.completedAt
		run.CompletedAt = &t
	}
	return run
}

// File returns the selection of the current run, if any.
func (c *Controller) File() (*models.FileSelection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil, false
	}
	f := *c.file
	return &f, true
}

// Results returns the canonical batch. Callers must treat it as read-only.
func (c *Controller) Results() (*models.Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != models.StateSuccess || c.batch == nil {
		return nil, ErrNoResults
	}
	return c.batch, nil
}

// Summary returns the aggregate view of the batch, computed once per batch.
func (c *Controller) Summary() (models.SummaryView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != models.StateSuccess || c.batch == nil {
		return models.SummaryView{}, ErrNoResults
	}
	if c.summary == nil || c.summaryGen != c.generation {
		s := summary.Summarize(c.batch.Records, c.opts.Catalog)
		c.summary = &s
		c.summaryGen = c.generation
	}
	return *c.summary, nil
}

// Query renders p over the batch and remembers p as the workflow's view.
// The last rendered view is reused while the batch and params are unchanged.
func (c *Controller) Query(p query.Params) (query.View, error) {
	p = p.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryLocked(p)
}

func (c *Controller) queryLocked(p query.Params) (query.View, error) {
	if c.state != models.StateSuccess || c.batch == nil {
		return query.View{}, ErrNoResults
	}
	c.view = p
	if cq := c.cachedQuery; cq != nil && cq.gen == c.generation && cq.params == p {
		return cq.view, nil
	}
	v := c.opts.Engine.View(c.batch.Records, p)
	c.cachedQuery = &cachedView{gen: c.generation, params: p, view: v}
	return v, nil
}

// ViewParams returns the params of the last query.
func (c *Controller) ViewParams() query.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// ToggleSort applies SortState.Toggle to the remembered view and renders it.
func (c *Controller) ToggleSort(key string) (query.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.view
	p.Sort = p.Sort.Toggle(key)
	return c.queryLocked(p.Normalize())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (c *Controller) String() string {
	return fmt.Sprintf("workflow %s (%s)", shortID(c.id), c.State())
}
