package executor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
)

// pythonRuntime owns the compiled Python module and the right to run it.
// Holding sem is required to bind streams to it; only one run at a time.
type pythonRuntime struct {
	compiled wazero.CompiledModule
	sem      chan struct{}
}

func (r *pythonRuntime) acquire(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *pythonRuntime) release() {
	<-r.sem
}

// embeddedBackend runs Python in the shared, lazily loaded runtime.
type embeddedBackend struct {
	e      *Executor
	interp Interpreter
}

func (b *embeddedBackend) runtime(ctx context.Context) (*pythonRuntime, error) {
	return b.e.runtimes.Get(ctx, b.interp.Name(), func(ctx context.Context) (*pythonRuntime, error) {
		b.e.progress("Loading Python runtime...")
		compiled, err := b.e.compile(ctx, b.interp)
		if err != nil {
			b.e.progress("Python runtime failed to load")
			return nil, err
		}
		b.e.progress("Python runtime ready")
		return &pythonRuntime{compiled: compiled, sem: make(chan struct{}, 1)}, nil
	})
}

func (b *embeddedBackend) run(ctx context.Context, code string, cfg runConfig) Result {
	rt, err := b.runtime(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		return loadFailed("Python", err)
	}

	request, err := encodeRequest(code, cfg.stdin)
	if err != nil {
		return failure(TagInternal, fmt.Sprintf("Internal error: encode request: %v", err))
	}

	// The budget covers waiting for the runtime as well as running in it.
	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	if err := rt.acquire(runCtx); err != nil {
		res, _ := stopped(ctx, runCtx, cfg.timeout, "", "")
		return res
	}

	// Fresh streams per run: an abandoned run can only write into its own.
	stdout := &syncBuffer{}
	stderr := &errorSignalWriter{}
	modCfg := moduleConfig(b.interp, bytes.NewReader(request), stdout, stderr)

	done := make(chan error, 1)
	go func() {
		done <- b.e.instantiate(runCtx, rt.compiled, modCfg)
	}()

	select {
	case err = <-done:
		rt.release()
		if err != nil {
			if res, ok := stopped(ctx, runCtx, cfg.timeout, stdout.String(), cleanPythonTrace(stderr.String())); ok {
				return res
			}
		}
	case <-runCtx.Done():
		out, errOut := stdout.String(), cleanPythonTrace(stderr.String())
		// The instance is closed on context done. The next run waits until
		// it has actually stopped.
		go func() {
			<-done
			rt.release()
		}()
		res, _ := stopped(ctx, runCtx, cfg.timeout, out, errOut)
		return res
	}

	return pythonResult(err, stdout.String(), stderr)
}

func pythonResult(err error, stdout string, stderr *errorSignalWriter) Result {
	res := Result{Stdout: stdout, Stderr: cleanPythonTrace(stderr.String())}
	if err == nil {
		return res
	}

	code, ok := exitStatus(err)
	switch {
	case ok && code == 0:
		return res
	case ok && stderr.ErrorMessage() != "":
		res.ExitCode = ExitFailure
		res.ErrorTag = stderr.ErrorMessage()
	case ok:
		res.ExitCode = int(code)
		res.ErrorTag = fmt.Sprintf("Exited with status %d", code)
	default:
		res.ExitCode = ExitFailure
		res.ErrorTag = TagExecutionFailed
		res.Stderr = joinLines(res.Stderr, "Execution failed: "+err.Error())
	}
	return res
}
