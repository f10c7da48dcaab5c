package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// acquireTimeout bounds how long a run waits for a free slot
const acquireTimeout = 5 * time.Second

// Pool bounds how many synchronous phases run at once. Runtimes are
// stateless between runs, so each slot is a runtime handed out in turn.
type Pool struct {
	config   Config
	runtimes chan *Runtime
	size     int
	mu       sync.RWMutex
	closed   bool
}

// NewPool creates a pool with size execution slots
func NewPool(config Config, size int) *Pool {
	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		config:   config,
		runtimes: make(chan *Runtime, size),
		size:     size,
	}
	for i := 0; i < size; i++ {
		pool.runtimes <- New(config)
	}
	return pool
}

// Acquire gets a runtime from the pool with timeout
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(acquireTimeout)
	defer timer.Stop()

	select {
	case rt, ok := <-p.runtimes:
		if !ok {
			return nil, ErrPoolClosed
		}
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release returns a runtime to the pool
func (p *Pool) Release(rt *Runtime) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	select {
	case p.runtimes <- rt:
	default:
	}
}

// Execute runs script on a pooled runtime. The slot is held for the
// synchronous phase only; timers keep running after it is released.
func (p *Pool) Execute(ctx context.Context, script string, target *Target, out *OutputLog) *Execution {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return Failed(StageExecution, "Error: "+err.Error())
	}
	defer p.Release(rt)

	return rt.Execute(ctx, script, target, out)
}

// Close closes the pool; later acquisitions fail with ErrPoolClosed
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.runtimes)
	for range p.runtimes {
	}
	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"size":      p.size,
		"available": len(p.runtimes),
		"in_use":    p.size - len(p.runtimes),
		"closed":    p.closed,
	}
}
