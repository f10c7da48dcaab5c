package sandbox

import (
	"sync"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputLogAppend(t *testing.T) {
	var mu sync.Mutex
	var seen []OutputRecord
	out := NewOutputLog(7, 0, func(rec OutputRecord) {
		mu.Lock()
		seen = append(seen, rec)
		mu.Unlock()
	})

	out.Append(KindLog, "one")
	out.Append(KindWarn, "two")
	out.Append(KindError, "three")

	records := out.Records()
	require.Len(t, records, 3)
	assert.Equal(t, []string{"one", "two", "three"}, contents(records))
	assert.Equal(t, []Kind{KindLog, KindWarn, KindError}, kinds(records))
	for _, rec := range records {
		assert.Equal(t, uint64(7), rec.Generation)
		assert.False(t, rec.Time.IsZero())
	}
	assert.Equal(t, records, seen)
	assert.Equal(t, uint64(7), out.Generation())
}

func TestOutputLogTruncation(t *testing.T) {
	out := NewOutputLog(1, 2, nil)
	for i := 0; i < 5; i++ {
		out.Append(KindLog, "x")
	}

	records := out.Records()
	require.Len(t, records, 3)
	assert.Equal(t, KindWarn, records[2].Kind)
	assert.Equal(t, "output truncated after 2 records", records[2].Content)
}

func TestOutputLogRecordsIsCopy(t *testing.T) {
	out := NewOutputLog(1, 0, nil)
	out.Append(KindLog, "a")

	records := out.Records()
	records[0].Content = "changed"

	assert.Equal(t, "a", out.Records()[0].Content)
	assert.Equal(t, 1, out.Len())
}

func TestConsoleString(t *testing.T) {
	vm := goja.New()
	c := NewConsole(vm, NewOutputLog(1, 0, nil))

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{name: "string", script: `"hello"`, want: "hello"},
		{name: "number", script: `42`, want: "42"},
		{name: "float", script: `1.5`, want: "1.5"},
		{name: "boolean", script: `true`, want: "true"},
		{name: "undefined", script: `undefined`, want: "undefined"},
		{name: "null", script: `null`, want: "null"},
		{name: "object", script: `({a: 1})`, want: "{\n  \"a\": 1\n}"},
		{name: "array", script: `[1, 2]`, want: "[\n  1,\n  2\n]"},
		{name: "nested", script: `({a: {b: "c"}})`, want: "{\n  \"a\": {\n    \"b\": \"c\"\n  }\n}"},
		{name: "empty array", script: `[]`, want: "[]"},
		{name: "error", script: `new Error("boom")`, want: "Error: boom"},
		{name: "type error", script: `new TypeError("bad")`, want: "TypeError: bad"},
		{name: "function", script: `(function add(a, b) { return a + b; })`, want: "function add(a, b) { return a + b; }"},
		{name: "cycle", script: `(function() { var a = {}; a.self = a; return a; })()`, want: Unserializable},
		{name: "throwing toJSON", script: `({toJSON: function() { throw new Error("no"); }})`, want: Unserializable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := vm.RunString(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String(v))
		})
	}
}

func TestConsoleStringSurvivesReplacedJSON(t *testing.T) {
	vm := goja.New()
	c := NewConsole(vm, NewOutputLog(1, 0, nil))

	_, err := vm.RunString(`JSON.stringify = function() { throw new Error("hijacked"); }`)
	require.NoError(t, err)

	v, err := vm.RunString(`({ok: true})`)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"ok\": true\n}", c.String(v))
}

func TestConsoleMethods(t *testing.T) {
	vm := goja.New()
	out := NewOutputLog(1, 0, nil)
	c := NewConsole(vm, out)
	require.NoError(t, vm.Set("console", c.Object()))

	_, err := vm.RunString(`
		console.log("a", 1, {b: 2});
		console.info("info");
		console.debug("debug");
		console.warn("careful");
		console.error("bad");
		console.log();
	`)
	require.NoError(t, err)

	records := out.Records()
	require.Len(t, records, 6)
	assert.Equal(t, "a 1 {\n  \"b\": 2\n}", records[0].Content)
	assert.Equal(t, []Kind{KindLog, KindLog, KindLog, KindWarn, KindError, KindLog}, kinds(records))
	assert.Equal(t, "", records[5].Content)
}

func contents(records []OutputRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Content
	}
	return out
}

func kinds(records []OutputRecord) []Kind {
	out := make([]Kind, len(records))
	for i, r := range records {
		out[i] = r.Kind
	}
	return out
}
