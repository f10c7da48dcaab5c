package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Interrupt reasons surfaced as fault messages
const (
	reasonTimeout   = "execution timeout exceeded"
	reasonCancelled = "execution cancelled"
)

// guard runs fn with a watchdog that interrupts vm when the timeout elapses
// or ctx is done. The interrupt flag is cleared before guard returns.
func guard(ctx context.Context, vm *goja.Runtime, timeout time.Duration, fn func() error) error {
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		var expired <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}

		select {
		case <-expired:
			vm.Interrupt(reasonTimeout)
		case <-ctx.Done():
			vm.Interrupt(reasonCancelled)
		case <-done:
		}
	}()

	err := call(fn)

	close(done)
	wg.Wait()
	vm.ClearInterrupt()
	return err
}

// call converts a Go panic escaping fn into an error
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return fn()
}

// rethrow propagates an error returned by a nested JS call out of a native
// function, so the enclosing script sees the original exception.
func rethrow(vm *goja.Runtime, err error) {
	if err == nil {
		return
	}
	var (
		interrupted *goja.InterruptedError
		overflow    *goja.StackOverflowError
		ex          *goja.Exception
	)
	switch {
	case errors.As(err, &interrupted), errors.As(err, &overflow):
		panic(err)
	case errors.As(err, &ex):
		panic(ex)
	default:
		panic(vm.NewGoError(err))
	}
}

// errorMessage renders an error the way a thrown value prints in a browser
func errorMessage(err error) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = "Error: " + Unserializable
		}
	}()

	var (
		interrupted *goja.InterruptedError
		overflow    *goja.StackOverflowError
		syntax      *goja.CompilerSyntaxError
		ex          *goja.Exception
	)
	switch {
	case errors.As(err, &interrupted):
		return fmt.Sprintf("Error: %v", interrupted.Value())
	case errors.As(err, &overflow):
		return "RangeError: Maximum call stack size exceeded"
	case errors.As(err, &syntax):
		return "SyntaxError: " + syntax.Message
	case errors.As(err, &ex):
		if v := ex.Value(); v != nil {
			return v.String()
		}
		return ex.Error()
	default:
		return "Error: " + err.Error()
	}
}

// isInterrupt reports whether err came from a watchdog or a cancellation
func isInterrupt(err error) bool {
	var interrupted *goja.InterruptedError
	return errors.As(err, &interrupted)
}

// throwError throws a plain JS Error with msg from native code
func throwError(vm *goja.Runtime, msg string) {
	if ctor, ok := goja.AssertConstructor(vm.Get("Error")); ok {
		if obj, err := ctor(nil, vm.ToValue(msg)); err == nil {
			panic(obj)
		}
	}
	panic(vm.NewGoError(errors.New(msg)))
}
