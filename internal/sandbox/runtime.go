package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/dop251/goja"
)

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Execution is one run of a script. The synchronous phase has finished when
// Execute returns; timers may keep firing until Done is closed.
type Execution struct {
	fault    *FaultRecord
	duration time.Duration
	loop     *loop
}

// Failed builds an execution that never ran
func Failed(stage Stage, message string) *Execution {
	return &Execution{fault: &FaultRecord{Message: message, Stage: stage}}
}

// Fault returns the run's fault, or nil when the synchronous phase completed
func (e *Execution) Fault() *FaultRecord {
	return e.fault
}

// Duration returns how long the synchronous phase took
func (e *Execution) Duration() time.Duration {
	return e.duration
}

// Cancel discards pending timers and interrupts a running callback
func (e *Execution) Cancel() {
	if e.loop != nil {
		e.loop.cancel()
	}
}

// Done is closed once no more code of this execution will run
func (e *Execution) Done() <-chan struct{} {
	if e.loop == nil {
		return closedDone
	}
	return e.loop.done
}

// Wait blocks until Done is closed
func (e *Execution) Wait() {
	<-e.Done()
}

// Runtime executes scripts, each in a fresh goja VM
type Runtime struct {
	config Config
}

// New creates a sandboxed runtime
func New(config Config) *Runtime {
	return &Runtime{config: config}
}

// Config returns the runtime configuration
func (r *Runtime) Config() Config {
	return r.config
}

// Execute runs script as an execution unit against target, appending console
// output to out. Faults never escape as Go errors: they are returned on the
// Execution.
func (r *Runtime) Execute(ctx context.Context, script string, target *Target, out *OutputLog) *Execution {
	start := time.Now()

	vm := goja.New()
	if r.config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}

	console := NewConsole(vm, out)
	l := newLoop(vm, console, r.config)
	b := newBindings(vm, target.DOM())
	ui := newReactRuntime(vm, b, l, target, r.config)
	react, reactDOM := ui.React(), ui.ReactDOM()

	exec := &Execution{loop: l}
	setupGlobals(vm, console, l, b, react, reactDOM)

	prog, err := compileUnit(script)
	if err != nil {
		l.finish()
		exec.fault = &FaultRecord{Message: errorMessage(err), Stage: StageExecution}
		exec.duration = time.Since(start)
		return exec
	}

	err = guard(ctx, vm, r.config.Timeout, func() error {
		return invokeUnit(vm, prog, console.Object(), react, reactDOM, b.wrap(target.Element()))
	})
	exec.duration = time.Since(start)

	if err != nil {
		exec.fault = &FaultRecord{Message: errorMessage(err), Stage: StageExecution}
	}

	switch {
	case err != nil && (isInterrupt(err) || isInternal(err)):
		// The VM is abandoned; nothing scheduled on it may run
		l.cancel()
		l.finish()
	case !l.pending():
		l.reportRejections()
		l.finish()
	case r.config.AsyncTimeout <= 0:
		l.reportRejections()
		l.expire()
		l.finish()
	default:
		l.reportRejections()
		go l.run()
	}
	return exec
}

func isInternal(err error) bool {
	var ex *goja.Exception
	return !errors.As(err, &ex) && !errors.Is(err, errNotCallable)
}

// setupGlobals removes host escape hatches and installs the browser-like
// globals user code expects.
func setupGlobals(vm *goja.Runtime, console *Console, l *loop, b *bindings, react, reactDOM *goja.Object) {
	global := vm.GlobalObject()

	_ = global.Delete("process")

	module := vm.NewObject()
	exports := vm.NewObject()
	_ = module.Set("exports", exports)
	_ = global.Set("module", module)
	_ = global.Set("exports", exports)
	_ = global.Set("require", func(call goja.FunctionCall) goja.Value {
		switch name := call.Argument(0).String(); name {
		case "react":
			return react
		case "react-dom", "react-dom/client":
			return reactDOM
		default:
			throwError(vm, "Cannot find module '"+name+"'")
			return goja.Undefined()
		}
	})

	_ = global.Set("window", global)
	_ = global.Set("console", console.Object())
	_ = global.Set("document", b.document())
	l.install()
}
