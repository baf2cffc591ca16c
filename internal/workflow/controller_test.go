package workflow

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oncoscope/backend/internal/intake"
	"github.com/oncoscope/backend/internal/models"
	"github.com/oncoscope/backend/internal/query"
	"github.com/oncoscope/backend/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedPredictor blocks each call until release is closed.
type gatedPredictor struct {
	release chan struct{}
	records []models.ResultRecord
	err     error

	mu    sync.Mutex
	calls int
	body  string
}

func newGatedPredictor(records []models.ResultRecord, err error) *gatedPredictor {
	return &gatedPredictor{release: make(chan struct{}), records: records, err: err}
}

func (p *gatedPredictor) Predict(ctx context.Context, sel *models.FileSelection, content io.Reader) ([]models.ResultRecord, error) {
	b, _ := io.ReadAll(content)
	p.mu.Lock()
	p.calls++
	p.body = string(b)
	p.mu.Unlock()

	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.records, p.err
}

type predictorFunc func(ctx context.Context, sel *models.FileSelection, content io.Reader) ([]models.ResultRecord, error)

func (f predictorFunc) Predict(ctx context.Context, sel *models.FileSelection, content io.Reader) ([]models.ResultRecord, error) {
	return f(ctx, sel, content)
}

func sampleRecords() []models.ResultRecord {
	return []models.ResultRecord{
		models.NewResultRecord("Lung", 0.95, models.Field{Name: "Sample", Value: models.StringValue("S1")}),
		models.NewResultRecord("Breast", 0.80, models.Field{Name: "Sample", Value: models.StringValue("S2")}),
		models.NewResultRecord("Lung", 0.91, models.Field{Name: "Sample", Value: models.StringValue("S3")}),
	}
}

func csvSelection() *models.FileSelection {
	return intake.NewSelection("data.csv", 8, "text/csv")
}

func waitForState(t *testing.T, c *Controller, want models.UploadState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, 2*time.Second, 5*time.Millisecond)
}

func TestController_Lifecycle(t *testing.T) {
	p := newGatedPredictor(sampleRecords(), nil)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := NewController("wf-1", p, Options{Metrics: metrics})

	assert.Equal(t, models.StateIdle, c.State())

	require.NoError(t, c.Start(csvSelection(), strings.NewReader("a,b\n1,2\n")))
	state := c.State()
	assert.True(t, state == models.StateUploading || state == models.StateProcessing, "got %s", state)

	waitForState(t, c, models.StateProcessing)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.inFlight))

	close(p.release)
	run, err := c.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StateSuccess, run.State)
	assert.Equal(t, 3, run.RecordCount)
	assert.Equal(t, []string{"Class", "Confidence", "Sample"}, run.Columns)
	assert.Nil(t, run.Error)
	require.NotNil(t, run.File)
	assert.Equal(t, "data.csv", run.File.Name)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, "a,b\n1,2\n", p.body)

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.submissions.WithLabelValues("success")))

	require.NoError(t, c.Reset())
	run = c.Snapshot()
	assert.Equal(t, models.StateIdle, run.State)
	assert.Nil(t, run.File)
	assert.Zero(t, run.RecordCount)
	_, err = c.Results()
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestController_ReentrancyGuard(t *testing.T) {
	p := newGatedPredictor(sampleRecords(), nil)
	c := NewController("wf-2", p, Options{})

	require.NoError(t, c.Start(csvSelection(), strings.NewReader("x")))

	err := c.Start(csvSelection(), strings.NewReader("y"))
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, c.Reset(), ErrBusy)

	close(p.release)
	_, err = c.Wait(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Start(csvSelection(), strings.NewReader("z")), ErrNotIdle)

	p.mu.Lock()
	assert.Equal(t, 1, p.calls)
	p.mu.Unlock()
}

func TestController_RejectsInvalidFileWithoutStateChange(t *testing.T) {
	c := NewController("wf-3", newGatedPredictor(nil, nil), Options{})
	before := c.Snapshot()

	err := c.Start(intake.NewSelection("data.txt", 4, "text/plain"), strings.NewReader("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, intake.ErrInvalidFileType)

	after := c.Snapshot()
	assert.Equal(t, models.StateIdle, after.State)
	assert.Equal(t, before.Generation, after.Generation)
}

func TestController_ErrorState(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind models.ErrorKind
		wantCode int
	}{
		{"service error", models.NewServiceError("Missing gene columns", 422), models.KindServiceError, 422},
		{"malformed", models.NewMalformedResponseError(errors.New("bad")), models.KindMalformedResponse, 502},
		{"plain error", errors.New("connection reset"), models.KindNetworkFailure, 500},
		{"deadline", context.DeadlineExceeded, models.KindTimeout, 504},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := predictorFunc(func(ctx context.Context, _ *models.FileSelection, _ io.Reader) ([]models.ResultRecord, error) {
				return nil, tt.err
			})
			c := NewController("wf", p, Options{})

			run, err := c.Submit(context.Background(), csvSelection(), strings.NewReader("x"))
			require.NoError(t, err)
			assert.Equal(t, models.StateError, run.State)
			require.NotNil(t, run.Error)
			assert.Equal(t, tt.wantKind, run.Error.Kind)
			assert.Equal(t, tt.wantCode, run.Error.Status)

			_, err = c.Summary()
			assert.ErrorIs(t, err, ErrNoResults)

			require.NoError(t, c.Reset())
			assert.Nil(t, c.Snapshot().Error)
		})
	}
}

func TestController_Timeout(t *testing.T) {
	p := newGatedPredictor(sampleRecords(), nil)
	c := NewController("wf-t", p, Options{Timeout: 30 * time.Millisecond})

	run, err := c.Submit(context.Background(), csvSelection(), strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, models.StateError, run.State)
	require.NotNil(t, run.Error)
	assert.Equal(t, models.KindTimeout, run.Error.Kind)
}

func TestController_FeedbackDelay(t *testing.T) {
	p := newGatedPredictor(sampleRecords(), nil)
	c := NewController("wf-d", p, Options{FeedbackDelay: 50 * time.Millisecond})

	require.NoError(t, c.Start(csvSelection(), strings.NewReader("x")))
	assert.Equal(t, models.StateUploading, c.State())
	waitForState(t, c, models.StateProcessing)

	close(p.release)
	run, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateSuccess, run.State)
}

func TestController_SummaryAndQuery(t *testing.T) {
	p := predictorFunc(func(ctx context.Context, _ *models.FileSelection, _ io.Reader) ([]models.ResultRecord, error) {
		return sampleRecords(), nil
	})
	c := NewController("wf-q", p, Options{})
	_, err := c.Submit(context.Background(), csvSelection(), strings.NewReader("x"))
	require.NoError(t, err)

	s, err := c.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, "Lung", s.MostCommon)
	assert.Equal(t, "Lung Cancer", s.MostCommonDisplayName)

	v, err := c.Query(query.Params{Class: "Lung"})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Shown)
	assert.Equal(t, 3, v.Total)

	v, err = c.ToggleSort("Confidence")
	require.NoError(t, err)
	require.Len(t, v.Rows, 2)
	assert.Equal(t, 0.91, v.Rows[0].Confidence)
	assert.Equal(t, query.Ascending, v.Params.Sort.Direction)

	v, err = c.ToggleSort("Confidence")
	require.NoError(t, err)
	assert.Equal(t, 0.95, v.Rows[0].Confidence)
	assert.Equal(t, query.Descending, v.Params.Sort.Direction)

	batch, err := c.Results()
	require.NoError(t, err)
	assert.Equal(t, "S1", batch.Records[0].Fields[0].Value.String(), "canonical order is untouched")

	require.NoError(t, c.Reset())
	assert.Equal(t, query.DefaultParams(), c.ViewParams())
	_, err = c.Query(query.DefaultParams())
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestController_ConcurrentToggleSort(t *testing.T) {
	c := NewController("wf-toggle", instantPredictor(), Options{})
	_, err := c.Submit(context.Background(), csvSelection(), strings.NewReader("x"))
	require.NoError(t, err)

	// The first toggle of a new key sorts ascending, every later one flips,
	// so an even count must end descending.
	const toggles = 50
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ToggleSort("Confidence")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p := c.ViewParams()
	assert.Equal(t, "Confidence", p.Sort.Key)
	assert.Equal(t, query.Descending, p.Sort.Direction)
}

func TestController_ResetDropsStagedFile(t *testing.T) {
	store := storage.NewMemoryStore(0)
	p := predictorFunc(func(ctx context.Context, _ *models.FileSelection, _ io.Reader) ([]models.ResultRecord, error) {
		return sampleRecords(), nil
	})
	c := NewController("wf-s", p, Options{Store: store})

	sel, err := store.Stage(csvSelection(), strings.NewReader("a\n1\n"))
	require.NoError(t, err)
	r, err := store.Open(sel.ID)
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), sel, r)
	require.NoError(t, err)
	files, _ := store.Usage()
	assert.Equal(t, 1, files)

	require.NoError(t, c.Reset())
	files, _ = store.Usage()
	assert.Zero(t, files)
}

func TestController_CloseCancelsRun(t *testing.T) {
	p := newGatedPredictor(sampleRecords(), nil)
	c := NewController("wf-c", p, Options{})
	require.NoError(t, c.Start(csvSelection(), strings.NewReader("x")))
	waitForState(t, c, models.StateProcessing)

	c.Close()

	assert.ErrorIs(t, c.Reset(), ErrClosed)
	assert.ErrorIs(t, c.Start(csvSelection(), strings.NewReader("x")), ErrClosed)
}

func TestController_WaitHonorsContext(t *testing.T) {
	p := newGatedPredictor(sampleRecords(), nil)
	defer close(p.release)
	c := NewController("wf-w", p, Options{})
	require.NoError(t, c.Start(csvSelection(), strings.NewReader("x")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	run, err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, run.State.InFlight())
}
