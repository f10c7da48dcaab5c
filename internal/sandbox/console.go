package sandbox

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Unserializable is logged in place of a value that cannot be stringified
const Unserializable = "[Unserializable object]"

// OutputLog is the ordered, append-only record sequence of one run.
// It is shared by reference between the controller and the executing code.
type OutputLog struct {
	mu         sync.Mutex
	generation uint64
	limit      int
	records    []OutputRecord
	truncated  bool
	sink       func(OutputRecord)
}

// NewOutputLog creates an empty log for the given run generation. sink, when
// set, receives every record right after it is appended.
func NewOutputLog(generation uint64, limit int, sink func(OutputRecord)) *OutputLog {
	return &OutputLog{
		generation: generation,
		limit:      limit,
		records:    []OutputRecord{},
		sink:       sink,
	}
}

// Generation returns the run number the log belongs to
func (l *OutputLog) Generation() uint64 {
	return l.generation
}

// Append adds a record. Once the limit is reached a single truncation warning
// is recorded and everything after it is dropped.
func (l *OutputLog) Append(kind Kind, content string) {
	l.mu.Lock()
	var rec OutputRecord
	switch {
	case l.limit > 0 && len(l.records) >= l.limit && l.truncated:
		l.mu.Unlock()
		return
	case l.limit > 0 && len(l.records) >= l.limit:
		l.truncated = true
		rec = l.record(KindWarn, fmt.Sprintf("output truncated after %d records", l.limit))
	default:
		rec = l.record(kind, content)
	}
	l.records = append(l.records, rec)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink(rec)
	}
}

func (l *OutputLog) record(kind Kind, content string) OutputRecord {
	return OutputRecord{
		Kind:       kind,
		Content:    content,
		Generation: l.generation,
		Time:       time.Now(),
	}
}

// Records returns a copy of the records in insertion order
func (l *OutputLog) Records() []OutputRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]OutputRecord{}, l.records...)
}

// Len returns the number of records
func (l *OutputLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Console is the substitute console handed to user code. It never touches a
// real console and never throws.
type Console struct {
	vm        *goja.Runtime
	out       *OutputLog
	stringify goja.Callable
}

// NewConsole binds a console to vm. JSON.stringify is captured here, before
// user code gets a chance to replace it.
func NewConsole(vm *goja.Runtime, out *OutputLog) *Console {
	c := &Console{vm: vm, out: out}
	if j := vm.Get("JSON"); j != nil && !goja.IsUndefined(j) {
		if fn, ok := goja.AssertFunction(j.ToObject(vm).Get("stringify")); ok {
			c.stringify = fn
		}
	}
	return c
}

// Object builds the JS console object
func (c *Console) Object() *goja.Object {
	obj := c.vm.NewObject()
	_ = obj.Set("log", c.method(KindLog))
	_ = obj.Set("info", c.method(KindLog))
	_ = obj.Set("debug", c.method(KindLog))
	_ = obj.Set("warn", c.method(KindWarn))
	_ = obj.Set("error", c.method(KindError))
	return obj
}

// Emit appends a record produced by the sandbox itself, such as an uncaught
// async error.
func (c *Console) Emit(kind Kind, content string) {
	c.out.Append(kind, content)
}

func (c *Console) method(kind Kind) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		c.out.Append(kind, c.Format(call.Arguments))
		return goja.Undefined()
	}
}

// Format stringifies each argument and joins them with single spaces
func (c *Console) Format(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = c.String(arg)
	}
	return strings.Join(parts, " ")
}

// String renders one value the way the playground displays it: primitives in
// their plain form, objects as indented JSON.
func (c *Console) String(v goja.Value) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = Unserializable
		}
	}()

	if v == nil {
		return "undefined"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, isFunc := goja.AssertFunction(obj); isFunc {
		return obj.String()
	}
	// JSON.stringify turns errors into "{}"
	if obj.ClassName() == "Error" {
		return obj.String()
	}
	if c.stringify == nil {
		return Unserializable
	}

	res, err := c.stringify(goja.Undefined(), obj, goja.Null(), c.vm.ToValue(2))
	if err != nil || res == nil || goja.IsUndefined(res) {
		return Unserializable
	}
	return res.String()
}
