package playground

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/CodePrep/backend/internal/sandbox"
	"github.com/GriffinCanCode/CodePrep/backend/internal/shared/id"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed playground
var ErrClosed = errors.New("playground is closed")

// State is the session state of a playground
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Transformer turns source into an executable script
type Transformer interface {
	Transform(source string, mode sandbox.Mode) (string, error)
}

// Executor runs a script against a render target
type Executor interface {
	Execute(ctx context.Context, script string, target *sandbox.Target, out *sandbox.OutputLog) *sandbox.Execution
}

// Metrics receives run and output counts
type Metrics interface {
	RecordRun(outcome string, duration time.Duration)
	RecordOutput(kind string)
	SetPlaygroundsActive(count int)
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string, time.Duration) {}
func (nopMetrics) RecordOutput(string)             {}
func (nopMetrics) SetPlaygroundsActive(int)        {}

// Snapshot is the observable state of a playground at one instant
type Snapshot struct {
	ID         string                 `json:"id"`
	TargetID   string                 `json:"target_id"`
	Source     string                 `json:"source"`
	State      State                  `json:"state"`
	Mode       string                 `json:"mode"`
	Generation uint64                 `json:"generation"`
	Output     []sandbox.OutputRecord `json:"output"`
	Fault      *sandbox.FaultRecord   `json:"fault"`
	HTML       string                 `json:"html"`
}

// EventType classifies events delivered to subscribers
type EventType string

const (
	EventOutput EventType = "output"
	EventState  EventType = "state"
)

// Event is a live notification. Output events only ever carry records of
// the current generation.
type Event struct {
	Type       EventType             `json:"type"`
	Generation uint64                `json:"generation"`
	State      State                 `json:"state,omitempty"`
	Record     *sandbox.OutputRecord `json:"record,omitempty"`
	Fault      *sandbox.FaultRecord  `json:"fault,omitempty"`
}

// Listener receives events. It is called from whichever goroutine produced
// the event and must not block.
type Listener func(Event)

// Option configures a Playground
type Option func(*Playground)

// WithTransformer replaces the esbuild-backed transformer
func WithTransformer(t Transformer) Option {
	return func(p *Playground) { p.transformer = t }
}

// WithExecutor replaces the default runtime, e.g. with a sandbox.Pool
func WithExecutor(e Executor) Option {
	return func(p *Playground) { p.executor = e }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(p *Playground) { p.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(p *Playground) { p.metrics = m }
}

// WithMode overrides the mode derived from the UI hint, e.g. with the
// declared language of a catalog question
func WithMode(mode sandbox.Mode) Option {
	return func(p *Playground) { p.mode = mode }
}

// WithMaxOutput caps the records kept per run
func WithMaxOutput(n int) Option {
	return func(p *Playground) { p.maxOutput = n }
}

// Playground is one code playground: a source buffer, the output and fault
// of the latest run and a render target of its own.
type Playground struct {
	id          id.PlaygroundID
	initial     string
	mode        sandbox.Mode
	maxOutput   int
	transformer Transformer
	executor    Executor
	logger      *logging.Logger
	metrics     Metrics
	target      *sandbox.Target
	created     time.Time

	// runMu serialises Run, Reset and Close
	runMu sync.Mutex

	mu         sync.RWMutex
	source     string
	state      State
	generation uint64
	out        *sandbox.OutputLog
	fault      *sandbox.FaultRecord
	exec       *sandbox.Execution
	closed     bool
	listeners  map[int]Listener
	nextSub    int
}

// New initializes a playground showing initialSource. uiModeHint selects UI
// compilation; without it the source is compiled only when it looks like UI code.
func New(initialSource string, uiModeHint bool, opts ...Option) *Playground {
	p := &Playground{
		id:        id.NewPlaygroundID(),
		initial:   initialSource,
		mode:      sandbox.ModeFromHint(uiModeHint),
		maxOutput: sandbox.DefaultConfig().MaxOutputRecords,
		logger:    logging.NewNop(),
		metrics:   nopMetrics{},
		target:    sandbox.NewTarget(),
		created:   time.Now(),
		source:    initialSource,
		state:     StateIdle,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.transformer == nil {
		p.transformer = sandbox.NewTransformer()
	}
	if p.executor == nil {
		p.executor = sandbox.New(sandbox.DefaultConfig())
	}
	p.out = sandbox.NewOutputLog(0, p.maxOutput, nil)
	p.logger = p.logger.Component("playground")
	return p
}

// validID rejects anything that is not "pg_<ULID>" before a registry lookup
func validID(s string) bool {
	return id.IsValidPrefixed(s, id.PlaygroundPrefix)
}

// ID returns the playground id
func (p *Playground) ID() string {
	return p.id.String()
}

// TargetID returns the id of the mount element
func (p *Playground) TargetID() string {
	return p.target.ID()
}

// Created returns when the playground was initialized
func (p *Playground) Created() time.Time {
	return p.created
}

// Edit replaces the source buffer. It is allowed in every state and never
// changes the state.
func (p *Playground) Edit(source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.source = source
	return nil
}

// Run executes the current source buffer. The returned snapshot is taken
// once the synchronous phase has finished; output from timers keeps
// arriving afterwards and is visible to subscribers and later snapshots.
func (p *Playground) Run(ctx context.Context) (Snapshot, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	p.generation++
	gen := p.generation
	out := sandbox.NewOutputLog(gen, p.maxOutput, p.sink)
	p.out = out
	p.fault = nil
	p.state = StateRunning
	source := p.source
	prev := p.exec
	p.exec = nil
	p.mu.Unlock()

	p.notify(Event{Type: EventState, Generation: gen, State: StateRunning})

	p.stop(prev)
	p.target.Clear()

	start := time.Now()
	var fault *sandbox.FaultRecord
	var exec *sandbox.Execution

	script, err := p.transformer.Transform(source, p.mode)
	if err != nil {
		fault = &sandbox.FaultRecord{Message: err.Error(), Stage: sandbox.StageTransform}
	} else {
		exec = p.executor.Execute(ctx, script, p.target, out)
		fault = exec.Fault()
	}

	state := StateIdle
	if fault != nil {
		state = StateError
	}

	p.mu.Lock()
	p.exec = exec
	p.fault = fault
	p.state = state
	p.mu.Unlock()

	duration := time.Since(start)
	p.metrics.RecordRun(runOutcome(fault), duration)
	p.logger.Debug("Run finished",
		zap.String("playground_id", p.ID()),
		zap.Uint64("generation", gen),
		zap.String("state", string(state)),
		zap.Duration("duration", duration),
	)
	p.notify(Event{Type: EventState, Generation: gen, State: state, Fault: fault})

	return p.Snapshot(), nil
}

// Reset restores the initial source, clears output, fault and render target
// and returns to idle. Calling it repeatedly is harmless.
func (p *Playground) Reset() error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.generation++
	gen := p.generation
	p.source = p.initial
	p.out = sandbox.NewOutputLog(gen, p.maxOutput, p.sink)
	p.fault = nil
	p.state = StateIdle
	prev := p.exec
	p.exec = nil
	p.mu.Unlock()

	p.stop(prev)
	p.target.Clear()

	p.notify(Event{Type: EventState, Generation: gen, State: StateIdle})
	return nil
}

// Close stops pending async work and releases the render target
func (p *Playground) Close() error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	prev := p.exec
	p.exec = nil
	p.listeners = make(map[int]Listener)
	p.mu.Unlock()

	p.stop(prev)
	p.target.Close()
	return nil
}

// Wait blocks until the latest run has no more async work
func (p *Playground) Wait() {
	p.mu.RLock()
	exec := p.exec
	p.mu.RUnlock()
	if exec != nil {
		exec.Wait()
	}
}

// Snapshot returns the current observable state
func (p *Playground) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Snapshot{
		ID:         p.ID(),
		TargetID:   p.target.ID(),
		Source:     p.source,
		State:      p.state,
		Mode:       p.mode.String(),
		Generation: p.generation,
		Output:     p.out.Records(),
		Fault:      p.fault,
		HTML:       p.target.HTML(),
	}
}

// Subscribe registers a listener for live events and returns a function
// that removes it.
func (p *Playground) Subscribe(fn Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := p.nextSub
	p.nextSub++
	p.listeners[key] = fn
	return func() {
		p.mu.Lock()
		delete(p.listeners, key)
		p.mu.Unlock()
	}
}

// sink receives records as they are appended to a run's log. Records of a
// superseded run are dropped here.
func (p *Playground) sink(rec sandbox.OutputRecord) {
	p.mu.RLock()
	stale := rec.Generation != p.generation || p.closed
	p.mu.RUnlock()
	if stale {
		return
	}
	p.metrics.RecordOutput(string(rec.Kind))
	p.notify(Event{Type: EventOutput, Generation: rec.Generation, Record: &rec})
}

func (p *Playground) notify(ev Event) {
	p.mu.RLock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// stop cancels a previous run's async work and waits for it to end
func (p *Playground) stop(exec *sandbox.Execution) {
	if exec == nil {
		return
	}
	exec.Cancel()
	exec.Wait()
}

func runOutcome(fault *sandbox.FaultRecord) string {
	if fault == nil {
		return "ok"
	}
	return string(fault.Stage) + "_fault"
}
