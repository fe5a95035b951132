package executor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
)

// directBackend runs JavaScript in a fresh QuickJS instance per call. The
// instance sees only its stdin request and stdout reply.
type directBackend struct {
	e      *Executor
	interp Interpreter
}

func (b *directBackend) module(ctx context.Context) (wazero.CompiledModule, error) {
	return b.e.modules.Get(ctx, b.interp.Name(), func(ctx context.Context) (wazero.CompiledModule, error) {
		return b.e.compile(ctx, b.interp)
	})
}

func (b *directBackend) run(ctx context.Context, code string, cfg runConfig) Result {
	compiled, err := b.module(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		return loadFailed("JavaScript", err)
	}

	request, err := encodeRequest(code, cfg.stdin)
	if err != nil {
		return failure(TagInternal, fmt.Sprintf("Internal error: encode request: %v", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	stdout := &syncBuffer{}
	stderr := &syncBuffer{}
	modCfg := moduleConfig(b.interp, bytes.NewReader(request), stdout, stderr)

	done := make(chan error, 1)
	go func() {
		done <- b.e.instantiate(runCtx, compiled, modCfg)
	}()

	select {
	case err = <-done:
	case <-runCtx.Done():
		// The reply never arrived. wazero tears the instance down on its
		// own; nothing it writes from here on is read.
		if res, ok := stopped(ctx, runCtx, cfg.timeout, "", ""); ok {
			return res
		}
	}

	// A run that ended exactly at the deadline still counts as stopped
	// unless it managed to reply.
	reply, stray, ok := parseReply(stdout.String())
	if !ok {
		if res, stop := stopped(ctx, runCtx, cfg.timeout, "", ""); stop {
			return res
		}
		return crashed(err, stray, stderr.String())
	}
	return fromReply(reply)
}

// fromReply builds the Result for a guest that replied.
func fromReply(reply guestReply) Result {
	res := Result{Stdout: reply.Stdout, Stderr: reply.Stderr}
	if reply.Error != nil {
		res.ExitCode = ExitFailure
		res.ErrorTag = reply.Error.Message
		if res.ErrorTag == "" {
			res.ErrorTag = reply.Error.Text
		}
		if res.ErrorTag == "" {
			res.ErrorTag = TagExecutionFailed
		}
		res.Stderr = joinLines(reply.Stderr, reply.Error.Text, cleanJSStack(reply.Error.Stack))
		return res
	}
	if !reply.Printed && res.Stdout == "" && res.Stderr == "" {
		res.Stdout = NoOutput
	}
	return res
}

// crashed builds the Result for an interpreter that exited without replying.
func crashed(err error, stdout, stderr string) Result {
	detail := "the interpreter stopped without producing a result"
	if code, ok := exitStatus(err); ok {
		detail = fmt.Sprintf("the interpreter exited with status %d", code)
	} else if err != nil {
		detail = err.Error()
	}
	res := failure(TagExecutionFailed, joinLines(stderr, "Execution failed: "+detail))
	res.Stdout = stdout
	return res
}
