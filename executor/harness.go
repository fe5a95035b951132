package executor

import (
	"context"
	"strings"
	"time"
)

// TestCase is one input/expected-output pair.
type TestCase struct {
	Input          string `json:"input" yaml:"input"`
	ExpectedOutput string `json:"expected" yaml:"expected"`
}

// TestCaseResult is the outcome of running code against one TestCase.
type TestCaseResult struct {
	Input          string        `json:"input"`
	ExpectedOutput string        `json:"expected"`
	ActualOutput   string        `json:"actual"`
	Passed         bool          `json:"passed"`
	ExitCode       int           `json:"exit_code"`
	ErrorTag       string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// RunTestCases runs code once per case, in order, with the case input as
// stdin. A failing case never stops the batch. WithStdin is ignored.
func (e *Executor) RunTestCases(ctx context.Context, lang Language, code string, cases []TestCase, opts ...Option) []TestCaseResult {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([]TestCaseResult, 0, len(cases))
	for _, tc := range cases {
		res := e.Execute(ctx, Request{
			Code:     code,
			Language: lang,
			Stdin:    tc.Input,
			Timeout:  cfg.timeout,
		})
		results = append(results, judge(tc, res))
	}
	return results
}

// judge compares trimmed stdout only. Stderr is appended to ActualOutput
// for display and never affects Passed.
func judge(tc TestCase, res Result) TestCaseResult {
	actual := strings.TrimSpace(res.Stdout)
	passed := res.ExitCode == ExitOK && actual == strings.TrimSpace(tc.ExpectedOutput)

	display := actual
	if errText := strings.TrimSpace(res.Stderr); errText != "" {
		display = joinLines(actual, "[Error] "+errText)
	}

	return TestCaseResult{
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
		ActualOutput:   display,
		Passed:         passed,
		ExitCode:       res.ExitCode,
		ErrorTag:       res.ErrorTag,
		Duration:       res.Duration,
	}
}

// Summary aggregates a batch of test case results.
type Summary struct {
	Passed   int           `json:"passed"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
}

// AllPassed reports whether every case passed. An empty batch passes.
func (s Summary) AllPassed() bool {
	return s.Passed == s.Total
}

// Summarize counts passes and adds up durations.
func Summarize(results []TestCaseResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Passed {
			s.Passed++
		}
		s.Duration += r.Duration
	}
	return s
}
