package executor

import (
	"context"

	"github.com/caffeineduck/runbox/language/typescript"
)

// Transpiler lowers TypeScript to JavaScript, or explains why it cannot.
type Transpiler interface {
	Transform(source string) (string, []typescript.Diagnostic)
}

const toolchainKey = "typescript"

// transformBackend strips TypeScript down to JavaScript and hands the result
// to the direct backend with the caller's stdin and budget.
type transformBackend struct {
	e      *Executor
	direct *directBackend
	load   ToolchainLoader
}

func (b *transformBackend) toolchain(ctx context.Context) (Transpiler, error) {
	return b.e.toolchains.Get(ctx, toolchainKey, func(ctx context.Context) (Transpiler, error) {
		b.e.logger.Info().Str("runtime", toolchainKey).Msg("loading toolchain")
		t, err := b.load(ctx)
		if err != nil {
			b.e.logger.Warn().Err(err).Str("runtime", toolchainKey).Msg("toolchain load failed")
			return nil, err
		}
		return t, nil
	})
}

func (b *transformBackend) run(ctx context.Context, code string, cfg runConfig) Result {
	t, err := b.toolchain(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		return loadFailed("TypeScript", err)
	}

	js, diags := t.Transform(code)
	if len(diags) > 0 {
		return compileFailed(diags)
	}
	return b.direct.run(ctx, js, cfg)
}
