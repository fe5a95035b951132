package executor

import (
	"context"
	"time"

	"github.com/caffeineduck/runbox/language/python"
	"github.com/rs/zerolog"
)

// Option configures a single run.
type Option func(*runConfig)

type runConfig struct {
	stdin   string
	timeout time.Duration
}

// WithStdin sets the text served line by line to the guest's input primitive.
func WithStdin(stdin string) Option {
	return func(c *runConfig) {
		c.stdin = stdin
	}
}

// WithTimeout sets the maximum execution time.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

// ToolchainLoader builds the TypeScript toolchain on first use.
type ToolchainLoader func(ctx context.Context) (Transpiler, error)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Language
	memoryLimitPages uint32 // 0 = wazero default (4GB)
	timeout          time.Duration
	logger           zerolog.Logger
	progress         func(status string)
	python           python.Source
	interpreters     map[Language]Interpreter
	toolchain        ToolchainLoader
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		timeout:      DefaultTimeout,
		logger:       zerolog.Nop(),
		interpreters: make(map[Language]Interpreter),
	}
}

// WithDiskCache enables a persistent compilation cache so later processes
// skip compiling the interpreters. Optionally provide a directory; otherwise
// the runbox cache directory is used.
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile loads the given languages' runtimes at creation time,
// moving the first-run cost to startup.
func WithPrecompile(langs ...Language) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = langs
	}
}

// WithMemoryLimit caps guest memory in 64KB pages. Examples:
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(4096) = 256MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16
	MemoryLimit16MB  uint32 = 256
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
	MemoryLimit1GB   uint32 = 16384
)

// WithDefaultTimeout sets the budget used when a request has none.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(c *executorConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = logger
	}
}

// WithProgress registers a hook called with human-readable status while the
// Python runtime loads for the first time. The hook cannot affect results;
// a panic inside it is ignored.
func WithProgress(fn func(status string)) ExecutorOption {
	return func(c *executorConfig) {
		c.progress = fn
	}
}

// WithPython sets where the Python runtime is loaded from.
func WithPython(src python.Source) ExecutorOption {
	return func(c *executorConfig) {
		c.python = src
	}
}

// WithInterpreter replaces the interpreter used for a JavaScript or Python
// backend.
func WithInterpreter(lang Language, interp Interpreter) ExecutorOption {
	return func(c *executorConfig) {
		c.interpreters[lang] = interp
	}
}

// WithToolchain replaces the TypeScript toolchain loader.
func WithToolchain(load ToolchainLoader) ExecutorOption {
	return func(c *executorConfig) {
		c.toolchain = load
	}
}
