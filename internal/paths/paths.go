// Package paths resolves on-disk locations shared by runbox components.
package paths

import (
	"os"
	"path/filepath"
)

// CacheDir returns the runbox cache directory: $XDG_CACHE_HOME/runbox,
// ~/.cache/runbox, or a temp-dir fallback.
func CacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "runbox")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "runbox")
	}
	return filepath.Join(os.TempDir(), "runbox-cache")
}

// CompilationCacheDir is where compiled WASM modules are cached between runs.
func CompilationCacheDir() string {
	return filepath.Join(CacheDir(), "compiled")
}

// PythonWasm is the default location of the Python runtime binary.
func PythonWasm() string {
	return filepath.Join(CacheDir(), "python", "python.wasm")
}
