package executor

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/caffeineduck/runbox/internal/lazy"
	"github.com/caffeineduck/runbox/internal/paths"
	"github.com/caffeineduck/runbox/language/javascript"
	"github.com/caffeineduck/runbox/language/python"
	"github.com/caffeineduck/runbox/language/typescript"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// ErrClosed is returned by operations on a closed Executor.
var ErrClosed = errors.New("executor closed")

// guestLibMount is where Interpreter.LibDir is mounted inside the guest.
const guestLibMount = "/usr/local/lib"

// Executor routes execution requests to a backend and owns the shared WASM
// runtime, the compiled interpreter modules and the lazily loaded toolchains.
type Executor struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache

	modules    lazy.Group[wazero.CompiledModule]
	toolchains lazy.Group[Transpiler]
	runtimes   lazy.Group[*pythonRuntime]

	direct    *directBackend
	transform *transformBackend
	embedded  *embeddedBackend

	timeout   time.Duration
	logger    zerolog.Logger
	onLoading func(status string)

	mu     sync.RWMutex
	closed bool
}

// New creates an Executor.
func New(opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = paths.CompilationCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	js, ok := cfg.interpreters[JavaScript]
	if !ok {
		js = javascript.New()
	}
	py, ok := cfg.interpreters[Python]
	if !ok {
		py = python.New(cfg.python)
	}
	toolchain := cfg.toolchain
	if toolchain == nil {
		toolchain = loadTypeScript
	}

	e := &Executor{
		runtime:   rt,
		cache:     cache,
		timeout:   cfg.timeout,
		logger:    cfg.logger,
		onLoading: cfg.progress,
	}
	e.direct = &directBackend{e: e, interp: js}
	e.transform = &transformBackend{e: e, direct: e.direct, load: toolchain}
	e.embedded = &embeddedBackend{e: e, interp: py}

	for _, lang := range cfg.precompile {
		if err := e.warm(ctx, lang); err != nil {
			e.Close()
			return nil, fmt.Errorf("precompile %s: %w", lang, err)
		}
	}

	return e, nil
}

func loadTypeScript(ctx context.Context) (Transpiler, error) {
	t, err := typescript.Load(ctx)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// backend is one execution strategy.
type backend interface {
	run(ctx context.Context, code string, cfg runConfig) Result
}

// Ready reports whether everything lang needs is already loaded, so the next
// run pays no load cost.
func (e *Executor) Ready(lang Language) bool {
	switch lang = ParseLanguage(string(lang)); lang.Strategy() {
	case StrategyDirect:
		return e.modules.Ready(e.direct.interp.Name())
	case StrategyTransform:
		return e.toolchains.Ready(toolchainKey) && e.modules.Ready(e.direct.interp.Name())
	case StrategyEmbedded:
		return e.runtimes.Ready(e.embedded.interp.Name())
	default:
		return false
	}
}

func (e *Executor) backend(s Strategy) backend {
	switch s {
	case StrategyDirect:
		return e.direct
	case StrategyTransform:
		return e.transform
	case StrategyEmbedded:
		return e.embedded
	case StrategyNone:
		return nil
	}
	panic(fmt.Sprintf("executor: unknown strategy %d", s))
}

// Execute runs req and always returns a Result; failures are reported
// through ExitCode and ErrorTag.
func (e *Executor) Execute(ctx context.Context, req Request) (result Result) {
	start := time.Now()
	lang := ParseLanguage(string(req.Language))

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("language", string(lang)).
				Interface("panic", r).
				Msg("execution panicked")
			result = failure(TagInternal, fmt.Sprintf("Internal error: %v", r))
			result.Duration = time.Since(start)
		}
	}()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		result = failure(TagClosed, "The executor has been shut down.")
		result.Duration = time.Since(start)
		return result
	}

	b := e.backend(lang.Strategy())
	if b == nil {
		result = unsupported(lang)
		result.Duration = time.Since(start)
		return result
	}

	if err := ctx.Err(); err != nil {
		result = cancelled(err)
		result.Duration = time.Since(start)
		return result
	}

	cfg := runConfig{stdin: req.Stdin, timeout: req.Timeout}
	if cfg.timeout <= 0 {
		cfg.timeout = e.timeout
	}

	result = b.run(ctx, req.Code, cfg)
	if !result.TimedOut() {
		result.Duration = time.Since(start)
	}

	event := e.logger.Debug()
	if result.TimedOut() {
		event = e.logger.Warn()
	}
	event.Str("language", string(lang)).
		Int("exit_code", result.ExitCode).
		Str("error", result.ErrorTag).
		Dur("duration", result.Duration).
		Msg("execution finished")

	return result
}

// Run executes code in the specified language.
func (e *Executor) Run(ctx context.Context, lang Language, code string, opts ...Option) Result {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return e.Execute(ctx, Request{
		Code:     code,
		Language: lang,
		Stdin:    cfg.stdin,
		Timeout:  cfg.timeout,
	})
}

// IsSupported reports whether lang has a backend.
func (e *Executor) IsSupported(lang Language) bool {
	return e.backend(ParseLanguage(string(lang)).Strategy()) != nil
}

// LoadCount returns how many runtime and toolchain loads have been started.
func (e *Executor) LoadCount() int64 {
	return e.modules.Loads() + e.toolchains.Loads() + e.runtimes.Loads()
}

// warm loads everything lang needs ahead of the first run.
func (e *Executor) warm(ctx context.Context, lang Language) error {
	lang = ParseLanguage(string(lang))
	switch lang.Strategy() {
	case StrategyDirect:
		_, err := e.direct.module(ctx)
		return err
	case StrategyTransform:
		if _, err := e.transform.toolchain(ctx); err != nil {
			return err
		}
		_, err := e.direct.module(ctx)
		return err
	case StrategyEmbedded:
		_, err := e.embedded.runtime(ctx)
		return err
	default:
		return fmt.Errorf("%s is not supported", lang.DisplayName())
	}
}

// compile compiles interp's module. Callers memoize the result.
func (e *Executor) compile(ctx context.Context, interp Interpreter) (wazero.CompiledModule, error) {
	start := time.Now()
	e.logger.Info().Str("runtime", interp.Name()).Msg("loading runtime")

	data, err := interp.Module(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("runtime", interp.Name()).Msg("runtime load failed")
		return nil, fmt.Errorf("load %s: %w", interp.Name(), err)
	}
	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		e.logger.Warn().Err(err).Str("runtime", interp.Name()).Msg("runtime compile failed")
		return nil, fmt.Errorf("compile %s: %w", interp.Name(), err)
	}

	e.logger.Info().
		Str("runtime", interp.Name()).
		Dur("took", time.Since(start)).
		Msg("runtime ready")
	return compiled, nil
}

// moduleConfig builds the sandbox for one run: the interpreter's argv, the
// given streams, real clocks and entropy, and no environment, network or
// filesystem beyond an optional read-only library mount.
func moduleConfig(interp Interpreter, stdin io.Reader, stdout, stderr io.Writer) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(interp.Args()...).
		WithStdin(stdin).
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)

	if dir := interp.LibDir(); dir != "" {
		cfg = cfg.WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(dir, guestLibMount))
	}
	return cfg
}

// instantiate runs compiled to completion and discards the instance.
func (e *Executor) instantiate(ctx context.Context, compiled wazero.CompiledModule, cfg wazero.ModuleConfig) error {
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if mod != nil {
		mod.Close(context.Background())
	}
	return err
}

// progress reports loading status to the WithProgress hook, if any.
func (e *Executor) progress(status string) {
	if e.onLoading == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug().Interface("panic", r).Msg("progress hook panicked")
		}
	}()
	e.onLoading(status)
}

// Close releases all resources held by the Executor. Runs in progress finish
// first; later calls to Execute report TagClosed.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	for _, m := range e.modules.Values() {
		if err := m.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// stopped converts an early stop into a Result: a caller cancellation or a
// timeout. The second value is false when the run was not stopped.
func stopped(caller, run context.Context, budget time.Duration, stdout, stderr string) (Result, bool) {
	if err := caller.Err(); err != nil {
		res := cancelled(err)
		res.Stdout = stdout
		res.Stderr = joinLines(stderr, res.Stderr)
		return res, true
	}
	if run.Err() != nil {
		return timedOut(budget, stdout, stderr), true
	}
	return Result{}, false
}
