// Package typescript lowers TypeScript source to JavaScript with esbuild.
//
// Types are erased, not checked: diagnostics cover what esbuild rejects
// (syntax errors, malformed type annotations, invalid TypeScript-only
// constructs).
package typescript

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Diagnostic is one problem found while transforming source.
type Diagnostic struct {
	// Line is 1-based.
	Line    int
	Column  int
	Message string
}

// String formats the diagnostic as "Line <n>: <message>".
func (d Diagnostic) String() string {
	return fmt.Sprintf("Line %d: %s", d.Line, d.Message)
}

// Transpiler turns TypeScript into JavaScript that QuickJS can evaluate as a
// classic script.
type Transpiler struct {
	opts api.TransformOptions
}

// New returns a Transpiler targeting ES2022.
func New() *Transpiler {
	return &Transpiler{
		opts: api.TransformOptions{
			Loader:     api.LoaderTS,
			Target:     api.ES2022,
			Sourcefile: "main.ts",
			LogLevel:   api.LogLevelSilent,
		},
	}
}

// Load builds a Transpiler and checks it end to end with a trivial input.
func Load(ctx context.Context) (*Transpiler, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := New()
	out, diags := t.Transform("const probe: number = 1;")
	if len(diags) > 0 {
		return nil, fmt.Errorf("typescript toolchain self-check: %s", diags[0])
	}
	if !strings.Contains(out, "probe") {
		return nil, errors.New("typescript toolchain self-check: unexpected output")
	}
	return t, nil
}

// Transform returns the lowered source, or the diagnostics in the order
// esbuild reported them. Exactly one of the two is non-empty for any input
// with content.
func (t *Transpiler) Transform(source string) (string, []Diagnostic) {
	result := api.Transform(source, t.opts)
	if len(result.Errors) == 0 {
		return string(result.Code), nil
	}

	diags := make([]Diagnostic, 0, len(result.Errors))
	for _, msg := range result.Errors {
		d := Diagnostic{Line: 1, Message: msg.Text}
		if msg.Location != nil {
			d.Line = msg.Location.Line
			d.Column = msg.Location.Column
		}
		diags = append(diags, d)
	}
	return "", diags
}
