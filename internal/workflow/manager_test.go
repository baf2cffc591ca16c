package workflow

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/oncoscope/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instantPredictor() Predictor {
	return predictorFunc(func(ctx context.Context, _ *models.FileSelection, _ io.Reader) ([]models.ResultRecord, error) {
		return sampleRecords(), nil
	})
}

func TestManager_CreateGetDelete(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	m := NewManager(instantPredictor(), Options{Metrics: metrics}, 0)

	c, err := m.Create()
	require.NoError(t, err)
	assert.Len(t, c.ID(), 36)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.workflows))

	got, err := m.Get(c.ID())
	require.NoError(t, err)
	assert.Same(t, c, got)

	require.NoError(t, m.Delete(c.ID()))
	_, err = m.Get(c.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(c.ID()), ErrNotFound)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.workflows))
}

func TestManager_CapacityEvictsSettled(t *testing.T) {
	m := NewManager(instantPredictor(), Options{}, 2)

	first, err := m.Create()
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := m.Create()
	require.NoError(t, err)

	third, err := m.Create()
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	_, err = m.Get(first.ID())
	assert.ErrorIs(t, err, ErrNotFound, "least recently used is evicted")
	_, err = m.Get(second.ID())
	assert.NoError(t, err)
	_, err = m.Get(third.ID())
	assert.NoError(t, err)
}

func TestManager_CapacityKeepsInFlight(t *testing.T) {
	p := newGatedPredictor(sampleRecords(), nil)
	defer close(p.release)
	m := NewManager(p, Options{}, 1)

	c, err := m.Create()
	require.NoError(t, err)
	require.NoError(t, c.Start(csvSelection(), strings.NewReader("x")))

	_, err = m.Create()
	assert.ErrorIs(t, err, ErrTooManyWorkflows)
	assert.Equal(t, 1, m.Len())
}

func TestManager_CleanupIdle(t *testing.T) {
	m := NewManager(instantPredictor(), Options{}, 0)

	stale, err := m.Create()
	require.NoError(t, err)
	fresh, err := m.Create()
	require.NoError(t, err)

	stale.mu.Lock()
	stale.lastAccessed = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()

	removed := m.CleanupIdle(time.Hour)
	assert.Equal(t, 1, removed)

	_, err = m.Get(stale.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestManager_Shutdown(t *testing.T) {
	m := NewManager(instantPredictor(), Options{}, 0)
	c, err := m.Create()
	require.NoError(t, err)

	m.Shutdown()
	assert.Zero(t, m.Len())
	assert.ErrorIs(t, c.Reset(), ErrClosed)
}
