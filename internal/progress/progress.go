// Package progress tracks which questions a learner has completed.
//
// Backends:
//   - memory: process-local, lost on restart
//   - file: one JSON document, gzip-compressed when the path ends in .gz
//   - redis: one set per learner
package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/config"
)

// ErrInvalidID is returned for empty or oversized learner and question ids
var ErrInvalidID = errors.New("invalid id")

const maxIDLength = 256

// Store records completed questions per learner
type Store interface {
	// Completed returns the completed question ids of a learner, sorted
	Completed(ctx context.Context, learner string) ([]string, error)
	// Mark sets or clears the completion of one question
	Mark(ctx context.Context, learner, questionID string, done bool) error
	// Reset forgets everything about a learner
	Reset(ctx context.Context, learner string) error
	Close() error
}

// New opens the backend selected by cfg
func New(cfg config.ProgressConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "file":
		return OpenFile(cfg.Path)
	case "redis":
		return NewRedis(cfg.RedisAddr, cfg.RedisDB), nil
	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.Backend)
	}
}

func validate(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" || len(id) > maxIDLength {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}

func sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
