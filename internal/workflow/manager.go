package workflow

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxWorkflows limits concurrent workflows to bound memory.
	DefaultMaxWorkflows = 50
	// KeepAliveWindow protects recently used workflows from cleanup.
	KeepAliveWindow = 5 * time.Minute
)

var (
	ErrNotFound         = errors.New("workflow not found")
	ErrTooManyWorkflows = errors.New("too many active workflows")
)

// Manager holds the live workflows.
type Manager struct {
	mu        sync.RWMutex
	workflows map[string]*Controller
	predictor Predictor
	opts      Options
	max       int
	logger    zerolog.Logger
}

// NewManager creates a manager whose controllers share predictor and opts.
// max <= 0 uses DefaultMaxWorkflows.
func NewManager(predictor Predictor, opts Options, max int) *Manager {
	if max <= 0 {
		max = DefaultMaxWorkflows
	}
	return &Manager{
		workflows: make(map[string]*Controller),
		predictor: predictor,
		opts:      opts,
		max:       max,
		logger:    log.With().Str("component", "workflow-manager").Logger(),
	}
}

// Create registers a new idle workflow. At capacity, settled workflows are
// evicted oldest first; if every workflow is in flight Create fails.
func (m *Manager) Create() (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.workflows) >= m.max {
		m.evictLocked(len(m.workflows) - m.max + 1)
	}
	if len(m.workflows) >= m.max {
		return nil, ErrTooManyWorkflows
	}

	id := uuid.New().String()
	c := NewController(id, m.predictor, m.opts)
	m.workflows[id] = c
	m.opts.Metrics.setWorkflows(len(m.workflows))
	m.logger.Debug().Str("workflow", shortID(id)).Msg("workflow created")
	return c, nil
}

// evictLocked removes up to n workflows that have no outstanding call,
// least recently used first.
func (m *Manager) evictLocked(n int) {
	type candidate struct {
		id   string
		last time.Time
	}
	var candidates []candidate
	for id, c := range m.workflows {
		last, state := c.idleSince()
		if state.InFlight() {
			continue
		}
		candidates = append(candidates, candidate{id, last})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].last.Before(candidates[j].last)
	})
	for i := 0; i < n && i < len(candidates); i++ {
		id := candidates[i].id
		m.workflows[id].Close()
		delete(m.workflows, id)
		m.logger.Info().Str("workflow", shortID(id)).Msg("evicted workflow to free capacity")
	}
	m.opts.Metrics.setWorkflows(len(m.workflows))
}

// Get returns a workflow by id.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Delete closes and forgets a workflow.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.workflows[id]
	if !ok {
		return ErrNotFound
	}
	c.Close()
	delete(m.workflows, id)
	m.opts.Metrics.setWorkflows(len(m.workflows))
	return nil
}

// Len returns the number of live workflows.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workflows)
}

// CleanupIdle removes workflows untouched for longer than maxAge. In-flight
// workflows and those used within KeepAliveWindow are kept.
func (m *Manager) CleanupIdle(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAlive := now.Add(-KeepAliveWindow)

	removed := 0
	for id, c := range m.workflows {
		last, state := c.idleSince()
		if state.InFlight() || last.After(keepAlive) || !last.Before(cutoff) {
			continue
		}
		c.Close()
		delete(m.workflows, id)
		removed++
		m.logger.Info().
			Str("workflow", shortID(id)).
			Dur("idle", now.Sub(last).Round(time.Second)).
			Msg("cleaned up idle workflow")
	}
	if removed > 0 {
		m.opts.Metrics.setWorkflows(len(m.workflows))
	}
	return removed
}

// Shutdown closes every workflow.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.workflows {
		c.Close()
		delete(m.workflows, id)
	}
	m.opts.Metrics.setWorkflows(0)
}
