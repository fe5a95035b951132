package executor

import (
	"testing"
	"time"
)

func TestJudge(t *testing.T) {
	tests := []struct {
		name       string
		tc         TestCase
		res        Result
		wantPassed bool
		wantActual string
	}{
		{
			name:       "match ignores surrounding whitespace",
			tc:         TestCase{Input: "1", ExpectedOutput: "7\n"},
			res:        Result{Stdout: "  7\n"},
			wantPassed: true,
			wantActual: "7",
		},
		{
			name:       "mismatch",
			tc:         TestCase{ExpectedOutput: "7"},
			res:        Result{Stdout: "8"},
			wantActual: "8",
		},
		{
			name:       "stderr shown but not judged",
			tc:         TestCase{ExpectedOutput: "ok"},
			res:        Result{Stdout: "ok", Stderr: "deprecated\n"},
			wantPassed: true,
			wantActual: "ok\n[Error] deprecated",
		},
		{
			name:       "failed run never passes",
			tc:         TestCase{ExpectedOutput: "partial"},
			res:        Result{Stdout: "partial", Stderr: "Error: boom", ExitCode: ExitFailure, ErrorTag: "boom"},
			wantActual: "partial\n[Error] Error: boom",
		},
		{
			name:       "error without stdout",
			tc:         TestCase{ExpectedOutput: "x"},
			res:        Result{Stderr: "Execution timed out after 1s", ExitCode: ExitTimeout, ErrorTag: TagTimeout},
			wantActual: "[Error] Execution timed out after 1s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := judge(tt.tc, tt.res)
			if got.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", got.Passed, tt.wantPassed)
			}
			if got.ActualOutput != tt.wantActual {
				t.Errorf("ActualOutput = %q, want %q", got.ActualOutput, tt.wantActual)
			}
			if got.Input != tt.tc.Input || got.ExpectedOutput != tt.tc.ExpectedOutput {
				t.Errorf("case fields not carried over: %+v", got)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]TestCaseResult{
		{Passed: true, Duration: time.Second},
		{Passed: false, Duration: 2 * time.Second},
		{Passed: true, Duration: time.Second},
	})
	if s.Passed != 2 || s.Total != 3 {
		t.Errorf("got %d/%d, want 2/3", s.Passed, s.Total)
	}
	if s.Duration != 4*time.Second {
		t.Errorf("Duration = %v", s.Duration)
	}
	if s.AllPassed() {
		t.Error("AllPassed should be false")
	}
	if !Summarize(nil).AllPassed() {
		t.Error("empty batch should pass")
	}
}
