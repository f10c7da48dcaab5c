package playground

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/logging"
	"go.uber.org/zap"
)

var (
	ErrNotFound           = errors.New("playground not found")
	ErrTooManyPlaygrounds = errors.New("too many playgrounds")
	ErrInvalidID          = errors.New("invalid playground id")
)

// Stats summarises the registry
type Stats struct {
	Active  int `json:"active"`
	Running int `json:"running"`
	Errored int `json:"errored"`
	Max     int `json:"max"`
}

// Manager keeps the live playgrounds of the process
type Manager struct {
	playgrounds sync.Map
	mu          sync.Mutex
	count       int
	max         int
	opts        []Option
	logger      *logging.Logger
	metrics     Metrics
}

// NewManager creates a registry capped at max instances (0 means no cap).
// opts are applied to every playground it creates.
func NewManager(max int, logger *logging.Logger, metrics Metrics, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	base := append([]Option{WithLogger(logger), WithMetrics(metrics)}, opts...)
	return &Manager{
		max:     max,
		opts:    base,
		logger:  logger.Component("playgrounds"),
		metrics: metrics,
	}
}

// Create initializes and registers a new playground
func (m *Manager) Create(initialSource string, uiModeHint bool, opts ...Option) (*Playground, error) {
	m.mu.Lock()
	if m.max > 0 && m.count >= m.max {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManyPlaygrounds, m.max)
	}
	m.count++
	count := m.count
	m.mu.Unlock()

	all := append(append([]Option{}, m.opts...), opts...)
	p := New(initialSource, uiModeHint, all...)
	m.playgrounds.Store(p.ID(), p)
	m.metrics.SetPlaygroundsActive(count)

	m.logger.Debug("Playground created",
		zap.String("playground_id", p.ID()),
		zap.String("target_id", p.TargetID()),
		zap.String("mode", p.mode.String()),
	)
	return p, nil
}

// Get returns a playground by id
func (m *Manager) Get(id string) (*Playground, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	val, ok := m.playgrounds.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return val.(*Playground), nil
}

// Delete closes and unregisters a playground
func (m *Manager) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	val, ok := m.playgrounds.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.mu.Lock()
	m.count--
	count := m.count
	m.mu.Unlock()
	m.metrics.SetPlaygroundsActive(count)

	m.logger.Debug("Playground deleted", zap.String("playground_id", id))
	return val.(*Playground).Close()
}

// List returns every playground, oldest first
func (m *Manager) List() []*Playground {
	var out []*Playground
	m.playgrounds.Range(func(_, value interface{}) bool {
		out = append(out, value.(*Playground))
		return true
	})
	// ULIDs sort in creation order
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Stats returns registry statistics
func (m *Manager) Stats() Stats {
	stats := Stats{Max: m.max}
	for _, p := range m.List() {
		stats.Active++
		switch p.Snapshot().State {
		case StateRunning:
			stats.Running++
		case StateError:
			stats.Errored++
		}
	}
	return stats
}

// Close closes every playground
func (m *Manager) Close() {
	for _, p := range m.List() {
		_ = m.Delete(p.ID())
	}
}
