// Package javascript provides the JavaScript guest for runbox.
//
// Code runs inside QuickJS compiled to WASI. A fixed prelude reads one JSON
// request ({"source", "stdin"}) from the guest's stdin, captures console
// output in memory, evaluates the source, and writes exactly one framed JSON
// reply to stdout.
package javascript

import (
	"context"
	_ "embed"

	quickjswasi "github.com/paralin/go-quickjs-wasi"
)

//go:embed prelude.js
var prelude string

// JavaScript implements executor.Interpreter for QuickJS.
type JavaScript struct{}

// New returns a JavaScript guest.
func New() *JavaScript {
	return &JavaScript{}
}

// Name returns "javascript".
func (j *JavaScript) Name() string {
	return "javascript"
}

// Module returns the QuickJS WASM binary.
func (j *JavaScript) Module(ctx context.Context) ([]byte, error) {
	return quickjswasi.QuickJSWASM, nil
}

// Args returns the QuickJS command line. The guest source never appears on
// it; it arrives on stdin.
func (j *JavaScript) Args() []string {
	return []string{"qjs", "--std", "-e", prelude}
}

// LibDir returns "": QuickJS needs no filesystem.
func (j *JavaScript) LibDir() string {
	return ""
}

// Version reports the embedded QuickJS release.
func Version() string {
	return quickjswasi.Version
}
