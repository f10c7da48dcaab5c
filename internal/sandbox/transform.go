package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Mode tells the transformer whether source is expected to contain JSX
type Mode int

const (
	// ModeAuto transpiles when the source looks like UI code
	ModeAuto Mode = iota
	// ModeScript never transpiles; the caller declared plain JavaScript
	ModeScript
	// ModeUI always transpiles
	ModeUI
)

func (m Mode) String() string {
	switch m {
	case ModeScript:
		return "script"
	case ModeUI:
		return "ui"
	default:
		return "auto"
	}
}

// ModeFromHint maps the boolean UI-mode hint of a freeform playground
func ModeFromHint(uiMode bool) Mode {
	if uiMode {
		return ModeUI
	}
	return ModeAuto
}

// ModeForLanguage maps a question's declared language to a mode. Unknown or
// empty languages fall back to detection.
func ModeForLanguage(language string) Mode {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "jsx", "react", "tsx":
		return ModeUI
	case "javascript", "js":
		return ModeScript
	default:
		return ModeAuto
	}
}

// uiIdentifier marks source that references the UI library
const uiIdentifier = "React"

// moduleSyntax matches import/export statements at a statement boundary
var moduleSyntax = regexp.MustCompile(`(?m)^\s*(import|export)\s`)

// SyntaxError is returned when the JSX compiler rejects the source
type SyntaxError struct {
	Text   string
	Line   int
	Column int
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("Syntax Error: %s (%d:%d)", e.Text, e.Line, e.Column)
	}
	return "Syntax Error: " + e.Text
}

// CompileFunc turns JSX source into plain script. modules asks for
// import/export to be rewritten to require calls.
type CompileFunc func(source string, modules bool) (string, error)

// Transformer decides whether source needs JSX compilation and performs it
type Transformer struct {
	compile CompileFunc
}

// NewTransformer creates a transformer backed by esbuild
func NewTransformer() *Transformer {
	return &Transformer{compile: compileJSX}
}

// NewTransformerWith creates a transformer using a custom compiler
func NewTransformerWith(compile CompileFunc) *Transformer {
	return &Transformer{compile: compile}
}

// NeedsTransform applies the mode, falling back to detection for ModeAuto
func NeedsTransform(source string, mode Mode) bool {
	switch mode {
	case ModeUI:
		return true
	case ModeScript:
		return false
	default:
		return strings.Contains(source, uiIdentifier) || strings.Contains(source, "<")
	}
}

// Transform returns executable script for source. Source that does not need
// compilation is returned unchanged. A compiler failure is a *SyntaxError and
// no partial output is returned.
func (t *Transformer) Transform(source string, mode Mode) (string, error) {
	if !NeedsTransform(source, mode) {
		return source, nil
	}
	code, err := t.compile(source, moduleSyntax.MatchString(source))
	if err != nil {
		return "", err
	}
	return code, nil
}

func compileJSX(source string, modules bool) (string, error) {
	opts := api.TransformOptions{
		Loader:      api.LoaderJSX,
		Target:      api.ES2020,
		JSX:         api.JSXTransform,
		JSXFactory:  "React.createElement",
		JSXFragment: "React.Fragment",
		Sourcefile:  "playground.jsx",
		LogLevel:    api.LogLevelSilent,
	}
	if modules {
		opts.Format = api.FormatCommonJS
	}

	result := api.Transform(source, opts)
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		serr := &SyntaxError{Text: msg.Text}
		if msg.Location != nil {
			serr.Line = msg.Location.Line
			serr.Column = msg.Location.Column
		}
		return "", serr
	}
	return string(result.Code), nil
}
