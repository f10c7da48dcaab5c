package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSource(t *testing.T, name, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestRunPrintsOutput(t *testing.T) {
	path := writeSource(t, "main.js", `console.log("a", 1); console.warn("careful");`)

	stdout, stderr, err := execute(t, "", "run", path)
	require.NoError(t, err)
	assert.Equal(t, "a 1\n[warn] careful\n", stdout)
	assert.Empty(t, stderr)
}

func TestRunWaitsForTimers(t *testing.T) {
	stdout, _, err := execute(t, `setTimeout(() => console.log("later"), 10); console.log("now");`,
		"run", "-", "--async-timeout", "1s")
	require.NoError(t, err)
	assert.Equal(t, "now\nlater\n", stdout)
}

func TestRunFault(t *testing.T) {
	stdout, stderr, err := execute(t, `console.log("before"); throw new Error("boom");`, "run", "-")
	require.ErrorIs(t, err, errFault)
	assert.Equal(t, "before\n", stdout)
	assert.Equal(t, "execution fault: Error: boom\n", stderr)
}

func TestRunUIPrintsHTML(t *testing.T) {
	source := `ReactDOM.createRoot(mountNode).render(<h1>Hi</h1>);`

	stdout, _, err := execute(t, source, "run", "-", "--ui", "--html")
	require.NoError(t, err)
	assert.Contains(t, stdout, "<h1>Hi</h1>")
}

func TestRunJSON(t *testing.T) {
	stdout, _, err := execute(t, `console.log("x")`, "run", "-", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"generation": 1`)
	assert.Contains(t, stdout, `"content": "x"`)
}

func TestRunQuestionStarter(t *testing.T) {
	_, stderr, err := execute(t, "", "run", "--question", "implement-a-debounce-function")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	_, _, err = execute(t, "", "run", "--question", "no-such-question")
	assert.Error(t, err)
}

func TestRunRequiresSource(t *testing.T) {
	_, _, err := execute(t, "", "run")
	assert.Error(t, err)

	_, _, err = execute(t, "", "run", filepath.Join(t.TempDir(), "missing.js"))
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	stdout, _, err := execute(t, "", "catalog")
	require.NoError(t, err)
	assert.Contains(t, stdout, "javascript")
	assert.Contains(t, stdout, "react")

	stdout, _, err = execute(t, "", "catalog", "--challenges")
	require.NoError(t, err)
	assert.Contains(t, stdout, "implement-a-debounce-function")
	assert.NotContains(t, stdout, "event-loop")

	stdout, _, err = execute(t, "", "catalog", "react")
	require.NoError(t, err)
	assert.Contains(t, stdout, "virtual-dom-react")

	_, _, err = execute(t, "", "catalog", "cobol")
	assert.Error(t, err)
}

func TestRunRejectsBinary(t *testing.T) {
	path := writeSource(t, "app.bin", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	_, _, err := execute(t, "", "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a text file")
}

func TestBench(t *testing.T) {
	res, err := bench(context.Background(), `let s = 0; for (let i = 0; i < 100; i++) s += i;`, false, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Runs)
	assert.Zero(t, res.Faults)
	assert.Positive(t, int64(res.Max))
	assert.LessOrEqual(t, res.P50, res.Max)

	res, err = bench(context.Background(), `throw new Error("x")`, false, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Faults)

	_, err = bench(context.Background(), "", false, 0)
	assert.Error(t, err)
}

func TestBenchCommand(t *testing.T) {
	stdout, _, err := execute(t, `console.log(1)`, "bench", "-", "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, stdout, "runs:   3 (0 faulted)")
	assert.Contains(t, stdout, "p95:")
}
