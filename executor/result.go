package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/caffeineduck/runbox/language/typescript"
)

// Exit codes reported in Result.ExitCode.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitTimeout = 124
)

// Error tags reported in Result.ErrorTag. A guest exception uses its own
// message as the tag instead.
const (
	TagCompilationFailed = "Compilation failed"
	TagRuntimeLoadFailed = "Runtime load failed"
	TagTimeout           = "Timeout"
	TagExecutionFailed   = "Execution failed"
	TagCancelled         = "Cancelled"
	TagInternal          = "Internal error"
	TagClosed            = "Executor closed"
)

// NoOutput is the stdout reported by the direct backend when a clean run
// printed nothing at all.
const NoOutput = "(no output)"

// DefaultTimeout is the per-run wall-clock budget when none is given.
const DefaultTimeout = 10 * time.Second

// Request is one execution. The zero Timeout means DefaultTimeout (or the
// executor's configured default).
type Request struct {
	Code     string
	Language Language
	Stdin    string
	Timeout  time.Duration
}

// Result holds the captured output and status of one execution.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	ErrorTag string        `json:"error,omitempty"`
}

// Success reports a clean run.
func (r Result) Success() bool {
	return r.ExitCode == ExitOK && r.ErrorTag == ""
}

// TimedOut reports whether the run hit its wall-clock budget. A guest that
// exits with status 124 on its own did not time out.
func (r Result) TimedOut() bool {
	return r.ErrorTag == TagTimeout
}

func failure(tag, stderr string) Result {
	return Result{ExitCode: ExitFailure, ErrorTag: tag, Stderr: stderr}
}

func unsupported(l Language) Result {
	return Result{
		ExitCode: ExitFailure,
		Stderr: fmt.Sprintf("%s code cannot be executed here: no in-process interpreter is available for it. Supported languages: %s.",
			l.DisplayName(), supportedNames()),
	}
}

func loadFailed(name string, err error) Result {
	return failure(TagRuntimeLoadFailed, fmt.Sprintf("Failed to load the %s runtime: %v", name, err))
}

func compileFailed(diags []typescript.Diagnostic) Result {
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = d.String()
	}
	return failure(TagCompilationFailed, strings.Join(lines, "\n"))
}

func timedOut(budget time.Duration, stdout, stderr string) Result {
	return Result{
		Stdout:   stdout,
		Stderr:   joinLines(stderr, fmt.Sprintf("Execution timed out after %v", budget)),
		ExitCode: ExitTimeout,
		ErrorTag: TagTimeout,
		Duration: budget,
	}
}

func cancelled(err error) Result {
	return failure(TagCancelled, fmt.Sprintf("Execution cancelled: %v", err))
}

// joinLines joins the non-empty parts with newlines.
func joinLines(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimRight(p, "\n")
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p)
	}
	return b.String()
}
