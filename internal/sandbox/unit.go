package sandbox

import (
	"errors"
	"strings"

	"github.com/dop251/goja"
)

const unitName = "playground.js"

var errNotCallable = errors.New("execution unit did not evaluate to a function")

// wrapUnit places script in a function scope whose parameters are the
// collaborators, so user code sees them as locals.
func wrapUnit(script string) string {
	return "(function(" + strings.Join(unitParams, ", ") + ") {\n" + script + "\n})"
}

// compileUnit compiles script into an execution unit. Syntax errors in plain
// scripts surface here.
func compileUnit(script string) (*goja.Program, error) {
	return goja.Compile(unitName, wrapUnit(script), false)
}

// invokeUnit evaluates the unit and calls it once with args in parameter order
func invokeUnit(vm *goja.Runtime, prog *goja.Program, args ...goja.Value) error {
	v, err := vm.RunProgram(prog)
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return errNotCallable
	}
	_, err = fn(goja.Undefined(), args...)
	return err
}
