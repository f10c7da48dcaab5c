package progress

import (
	"context"
	"sync"
)

// Memory is an in-process Store
type Memory struct {
	mu       sync.RWMutex
	learners map[string]map[string]bool
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{learners: make(map[string]map[string]bool)}
}

func (m *Memory) Completed(_ context.Context, learner string) ([]string, error) {
	if err := validate(learner); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sorted(m.learners[learner]), nil
}

func (m *Memory) Mark(_ context.Context, learner, questionID string, done bool) error {
	if err := validate(learner, questionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mark(m.learners, learner, questionID, done)
	return nil
}

func (m *Memory) Reset(_ context.Context, learner string) error {
	if err := validate(learner); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.learners, learner)
	return nil
}

func (m *Memory) Close() error { return nil }

func mark(learners map[string]map[string]bool, learner, questionID string, done bool) {
	set, ok := learners[learner]
	if !done {
		if ok {
			delete(set, questionID)
			if len(set) == 0 {
				delete(learners, learner)
			}
		}
		return
	}
	if !ok {
		set = make(map[string]bool)
		learners[learner] = set
	}
	set[questionID] = true
}
