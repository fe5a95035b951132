// Package python provides the Python guest for runbox.
//
// Python is too heavy to embed in the binary, so the interpreter (a WASI
// build of Python) is resolved from disk when first needed and, if a download
// URL is configured, fetched once into the cache directory.
package python

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/caffeineduck/runbox/internal/paths"
)

//go:embed prelude.py
var prelude string

// HostFile is the name Python gives the prelude's frames in tracebacks.
const HostFile = "<string>"

// ErrRuntimeMissing is returned when no runtime binary exists and none can
// be downloaded.
var ErrRuntimeMissing = errors.New("python runtime not found")

// Source says where the Python runtime comes from.
type Source struct {
	// WasmPath is the runtime binary. Empty means paths.PythonWasm().
	WasmPath string
	// LibDir, if set, is mounted read-only at /usr/local/lib for builds that
	// keep the standard library outside the binary.
	LibDir string
	// DownloadURL is fetched into WasmPath when the file is missing.
	DownloadURL string
	// Client performs the download. Nil means http.DefaultClient.
	Client *http.Client
}

// Python implements executor.Interpreter for a WASI Python build.
type Python struct {
	src Source
}

// New returns a Python guest reading its runtime from src.
func New(src Source) *Python {
	if src.WasmPath == "" {
		src.WasmPath = paths.PythonWasm()
	}
	return &Python{src: src}
}

// Name returns "python".
func (p *Python) Name() string {
	return "python"
}

// Module reads the runtime binary, downloading it first if it is missing
// and a URL is configured.
func (p *Python) Module(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.src.WasmPath)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read python runtime: %w", err)
	}
	if p.src.DownloadURL == "" {
		return nil, fmt.Errorf("%w at %s", ErrRuntimeMissing, p.src.WasmPath)
	}

	if err := Download(ctx, p.src.Client, p.src.DownloadURL, p.src.WasmPath); err != nil {
		return nil, err
	}
	return os.ReadFile(p.src.WasmPath)
}

// Args runs the prelude unbuffered; the guest source arrives on stdin.
func (p *Python) Args() []string {
	return []string{"python", "-u", "-c", prelude}
}

// LibDir returns the standard library directory to mount, if any.
func (p *Python) LibDir() string {
	return p.src.LibDir
}

// WasmPath returns where the runtime binary is expected.
func (p *Python) WasmPath() string {
	return p.src.WasmPath
}
