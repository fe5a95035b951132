package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/caffeineduck/runbox/executor"
	"github.com/rs/zerolog"
)

type executeRequest struct {
	Language  string `json:"language"`
	Code      string `json:"code"`
	Stdin     string `json:"stdin,omitempty"`
	TimeoutMs int64  `json:"timeout_ms,omitempty"`
}

type executeResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type testRequest struct {
	Language  string              `json:"language"`
	Code      string              `json:"code"`
	Cases     []executor.TestCase `json:"cases"`
	TimeoutMs int64               `json:"timeout_ms,omitempty"`
}

type testCaseResponse struct {
	Input      string `json:"input"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
	Passed     bool   `json:"passed"`
	ExitCode   int    `json:"exit_code"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type testResponse struct {
	Results    []testCaseResponse `json:"results"`
	Passed     int                `json:"passed"`
	Total      int                `json:"total"`
	DurationMs int64              `json:"duration_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.Language == "" {
		writeError(w, http.StatusBadRequest, "language is required")
		return
	}
	timeout, err := requestTimeout(req.TimeoutMs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lang := executor.ParseLanguage(req.Language)
	res := s.runner.Execute(r.Context(), executor.Request{
		Code:     req.Code,
		Language: lang,
		Stdin:    req.Stdin,
		Timeout:  timeout,
	})
	s.metrics.Observe(lang, res)

	zerolog.Ctx(r.Context()).Debug().
		Str("language", string(lang)).
		Int("exit_code", res.ExitCode).
		Msg("execute")

	writeJSON(w, http.StatusOK, executeResponse{
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		Error:      res.ErrorTag,
		DurationMs: res.Duration.Milliseconds(),
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.Language == "" {
		writeError(w, http.StatusBadRequest, "language is required")
		return
	}
	if len(req.Cases) == 0 {
		writeError(w, http.StatusBadRequest, "at least one test case is required")
		return
	}
	if len(req.Cases) > MaxTestCases {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d test cases per request", MaxTestCases))
		return
	}
	timeout, err := requestTimeout(req.TimeoutMs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lang := executor.ParseLanguage(req.Language)
	var opts []executor.Option
	if timeout > 0 {
		opts = append(opts, executor.WithTimeout(timeout))
	}
	results := s.runner.RunTestCases(r.Context(), lang, req.Code, req.Cases, opts...)

	resp := testResponse{Results: make([]testCaseResponse, len(results))}
	for i, tr := range results {
		s.metrics.Observe(lang, executor.Result{ExitCode: tr.ExitCode, ErrorTag: tr.ErrorTag, Duration: tr.Duration})
		resp.Results[i] = testCaseResponse{
			Input:      tr.Input,
			Expected:   tr.ExpectedOutput,
			Actual:     tr.ActualOutput,
			Passed:     tr.Passed,
			ExitCode:   tr.ExitCode,
			Error:      tr.ErrorTag,
			DurationMs: tr.Duration.Milliseconds(),
		}
	}
	summary := executor.Summarize(results)
	resp.Passed = summary.Passed
	resp.Total = summary.Total
	resp.DurationMs = summary.Duration.Milliseconds()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, executor.Languages())
}

// requestTimeout converts timeout_ms; 0 means the executor default.
func requestTimeout(ms int64) (time.Duration, error) {
	if ms < 0 {
		return 0, errors.New("timeout_ms must not be negative")
	}
	d := time.Duration(ms) * time.Millisecond
	if d > MaxTimeout {
		return 0, fmt.Errorf("timeout_ms must be at most %d", MaxTimeout.Milliseconds())
	}
	return d, nil
}

// decode reads a JSON body into v, writing the error response on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
