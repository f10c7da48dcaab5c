package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// minInterval keeps zero-delay intervals from spinning
const minInterval = time.Millisecond

// task is a unit of work scheduled on the loop: a timer callback or a render
type task struct {
	id       int64
	seq      uint64
	at       time.Time
	interval time.Duration
	repeat   bool
	fn       goja.Callable
	args     []goja.Value
}

// loop serves timers for one execution after its synchronous phase. All JS
// runs on whichever goroutine currently owns the VM: the caller during the
// synchronous phase, the loop goroutine afterwards.
type loop struct {
	vm      *goja.Runtime
	console *Console
	config  Config

	mu       sync.Mutex
	tasks    map[int64]*task
	nextID   int64
	seq      uint64
	rejected []*goja.Promise
	running  bool
	stopped  bool
	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

func newLoop(vm *goja.Runtime, console *Console, config Config) *loop {
	l := &loop{
		vm:      vm,
		console: console,
		config:  config,
		tasks:   make(map[int64]*task),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	vm.SetPromiseRejectionTracker(l.trackRejection)
	return l
}

// install exposes the timer globals
func (l *loop) install() {
	global := l.vm.GlobalObject()
	_ = global.Set("setTimeout", l.setTimer(false))
	_ = global.Set("setInterval", l.setTimer(true))
	_ = global.Set("clearTimeout", l.clearTimer)
	_ = global.Set("clearInterval", l.clearTimer)
	_ = global.Set("queueMicrotask", l.queueMicrotask)
}

func (l *loop) setTimer(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(l.vm.NewTypeError("The \"callback\" argument must be of type function"))
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		if repeat && delay < minInterval {
			delay = minInterval
		}
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}

		t := &task{fn: fn, args: args, interval: delay, repeat: repeat}
		return l.vm.ToValue(l.schedule(t, delay))
	}
}

func (l *loop) clearTimer(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	l.mu.Lock()
	delete(l.tasks, id)
	l.mu.Unlock()
	return goja.Undefined()
}

// queueMicrotask rides on the engine's promise job queue
func (l *loop) queueMicrotask(call goja.FunctionCall) goja.Value {
	fn := call.Argument(0)
	if _, ok := goja.AssertFunction(fn); !ok {
		panic(l.vm.NewTypeError("The \"callback\" argument must be of type function"))
	}
	p, resolve, _ := l.vm.NewPromise()
	then, _ := goja.AssertFunction(l.vm.ToValue(p).ToObject(l.vm).Get("then"))
	if _, err := then(l.vm.ToValue(p), fn); err != nil {
		rethrow(l.vm, err)
	}
	if err := resolve(goja.Undefined()); err != nil {
		rethrow(l.vm, err)
	}
	return goja.Undefined()
}

// enqueue schedules a Go job, such as a re-render, to run on the loop. It
// must be called while the VM is owned by the caller.
func (l *loop) enqueue(job func()) {
	fn, _ := goja.AssertFunction(l.vm.ToValue(func(goja.FunctionCall) goja.Value {
		job()
		return goja.Undefined()
	}))
	l.schedule(&task{fn: fn}, 0)
}

func (l *loop) schedule(t *task, delay time.Duration) int64 {
	l.mu.Lock()
	l.nextID++
	l.seq++
	t.id = l.nextID
	t.seq = l.seq
	t.at = time.Now().Add(delay)
	l.tasks[t.id] = t
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return t.id
}

// pending reports whether any timer or job is waiting
func (l *loop) pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks) > 0
}

// next returns the earliest task, or how long until it is due
func (l *loop) next() (*task, time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var first *task
	for _, t := range l.tasks {
		if first == nil || t.at.Before(first.at) || (t.at.Equal(first.at) && t.seq < first.seq) {
			first = t
		}
	}
	if first == nil {
		return nil, 0, false
	}
	if wait := time.Until(first.at); wait > 0 {
		return nil, wait, true
	}
	return first, 0, true
}

// run fires tasks until none are left, the async budget is spent or the
// loop is cancelled.
func (l *loop) run() {
	defer close(l.done)

	deadline := time.NewTimer(l.config.AsyncTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-deadline.C:
			l.expire()
			return
		default:
		}

		t, wait, ok := l.next()
		if !ok {
			return
		}
		if t == nil {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-l.wake:
			case <-l.stop:
				timer.Stop()
				return
			case <-deadline.C:
				timer.Stop()
				l.expire()
				return
			}
			timer.Stop()
			continue
		}

		if !l.fire(t) {
			return
		}
	}
}

// fire runs one task; it returns false when the loop must stop
func (l *loop) fire(t *task) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	if t.repeat {
		t.at = time.Now().Add(t.interval)
		l.seq++
		t.seq = l.seq
	} else {
		delete(l.tasks, t.id)
	}
	l.running = true
	l.mu.Unlock()

	err := guard(context.Background(), l.vm, l.config.Timeout, func() error {
		_, err := t.fn(goja.Undefined(), t.args...)
		return err
	})

	l.mu.Lock()
	l.running = false
	l.vm.ClearInterrupt()
	stopped := l.stopped
	l.mu.Unlock()

	if stopped {
		return false
	}
	if err != nil {
		l.console.Emit(KindError, "Uncaught "+errorMessage(err))
		if isInterrupt(err) {
			// A callback that hit the watchdog would hit it again
			l.drop(t.id)
		}
	}
	l.reportRejections()
	return true
}

func (l *loop) drop(id int64) {
	l.mu.Lock()
	delete(l.tasks, id)
	l.mu.Unlock()
}

func (l *loop) expire() {
	l.mu.Lock()
	n := len(l.tasks)
	l.tasks = make(map[int64]*task)
	l.mu.Unlock()

	if n > 0 {
		l.console.Emit(KindWarn, fmt.Sprintf("async work stopped after %s; %d pending timer(s) discarded", l.config.AsyncTimeout, n))
	}
}

// cancel stops the loop and interrupts a callback that is still running
func (l *loop) cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}
	l.stopped = true
	l.tasks = make(map[int64]*task)
	if l.running {
		l.vm.Interrupt(reasonCancelled)
	}
	close(l.stop)
}

// finish marks a loop that never started as done
func (l *loop) finish() {
	close(l.done)
}

func (l *loop) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		l.rejected = append(l.rejected, p)
	case goja.PromiseRejectionHandle:
		for i, r := range l.rejected {
			if r == p {
				l.rejected = append(l.rejected[:i], l.rejected[i+1:]...)
				break
			}
		}
	}
}

// reportRejections logs promises that are still unhandled once the job queue drained
func (l *loop) reportRejections() {
	rejected := l.rejected
	l.rejected = nil
	for _, p := range rejected {
		l.console.Emit(KindError, "Uncaught (in promise) "+l.console.String(p.Result()))
	}
}
