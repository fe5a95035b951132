package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/runbox/executor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records requests and returns canned results.
type fakeRunner struct {
	mu       sync.Mutex
	requests []executor.Request
	result   executor.Result
}

func (f *fakeRunner) Execute(ctx context.Context, req executor.Request) executor.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result
}

func (f *fakeRunner) RunTestCases(ctx context.Context, lang executor.Language, code string, cases []executor.TestCase, opts ...executor.Option) []executor.TestCaseResult {
	out := make([]executor.TestCaseResult, len(cases))
	for i, tc := range cases {
		passed := tc.Input == tc.ExpectedOutput
		out[i] = executor.TestCaseResult{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			ActualOutput:   tc.Input,
			Passed:         passed,
			Duration:       time.Millisecond,
		}
	}
	return out
}

func newTestServer(t *testing.T, runner Runner, cfg Config) (*Server, *prometheus.Registry) {
	t.Helper()
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	reg := prometheus.NewRegistry()
	return New(runner, cfg, reg, zerolog.Nop()), reg
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestExecute(t *testing.T) {
	runner := &fakeRunner{result: executor.Result{Stdout: "hello", Duration: 12 * time.Millisecond}}
	s, reg := newTestServer(t, runner, Config{})

	rr := post(t, s, "/execute", `{"language":"js","code":"console.log('hello')","stdin":"x","timeout_ms":500}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var resp executeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "hello", resp.Stdout)
	assert.Equal(t, 0, resp.ExitCode)
	assert.Equal(t, int64(12), resp.DurationMs)

	require.Len(t, runner.requests, 1)
	got := runner.requests[0]
	assert.Equal(t, executor.JavaScript, got.Language)
	assert.Equal(t, "x", got.Stdin)
	assert.Equal(t, 500*time.Millisecond, got.Timeout)

	count, err := testutil.GatherAndCount(reg, "runbox_executions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExecuteValidation(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, Config{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"code":`, http.StatusBadRequest},
		{"missing code", `{"language":"js"}`, http.StatusBadRequest},
		{"missing language", `{"code":"1"}`, http.StatusBadRequest},
		{"negative timeout", `{"language":"js","code":"1","timeout_ms":-1}`, http.StatusBadRequest},
		{"timeout too large", `{"language":"js","code":"1","timeout_ms":600000}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, s, "/execute", tt.body)
			assert.Equal(t, tt.want, rr.Code)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestExecuteBodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, Config{MaxBodyBytes: 64})

	body := `{"language":"js","code":"` + strings.Repeat("x", 200) + `"}`
	rr := post(t, s, "/execute", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, Config{})

	req := httptest.NewRequest(http.MethodGet, "/execute", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRateLimit(t *testing.T) {
	s, reg := newTestServer(t, &fakeRunner{}, Config{RateLimit: 0.001, Burst: 2})

	body := `{"language":"js","code":"1"}`
	assert.Equal(t, http.StatusOK, post(t, s, "/execute", body).Code)
	assert.Equal(t, http.StatusOK, post(t, s, "/execute", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(t, s, "/execute", body).Code)

	// Health checks are never limited.
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	count, err := testutil.GatherAndCount(reg, "runbox_rate_limited_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTestCases(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, Config{})

	rr := post(t, s, "/test", `{"language":"py","code":"x","cases":[
		{"input":"1","expected":"1"},
		{"input":"2","expected":"3"}
	]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp testResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].Passed)
	assert.False(t, resp.Results[1].Passed)
	assert.Equal(t, 1, resp.Passed)
	assert.Equal(t, 2, resp.Total)
}

func TestTestCasesValidation(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, Config{})

	rr := post(t, s, "/test", `{"language":"js","code":"1","cases":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	cases := make([]executor.TestCase, MaxTestCases+1)
	body, err := json.Marshal(testRequest{Language: "js", Code: "1", Cases: cases})
	require.NoError(t, err)
	rr = post(t, s, "/test", string(body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLanguages(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, Config{})

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/languages", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var langs []executor.LanguageInfo
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&langs))
	assert.NotEmpty(t, langs)
	assert.Equal(t, executor.JavaScript, langs[0].ID)
	assert.True(t, langs[0].Supported)
}

func TestMetricsEndpoint(t *testing.T) {
	runner := &fakeRunner{result: executor.Result{Stdout: "1"}}
	s, _ := newTestServer(t, runner, Config{})
	post(t, s, "/execute", `{"language":"js","code":"1"}`)

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `runbox_executions_total{language="javascript",outcome="ok"} 1`)
}

func TestLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	s := New(&fakeRunner{}, Config{MaxBodyBytes: 1024}, reg, zerolog.New(&buf))

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	id := rr.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, id, line["request_id"])
	assert.Equal(t, "/health", line["path"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
}

func TestListenAndServeShutsDown(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, Config{RateLimit: 1, Burst: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestExecuteWithRealExecutor(t *testing.T) {
	exec, err := executor.GetTestExecutor()
	require.NoError(t, err)
	t.Cleanup(executor.CloseTestExecutor)

	s, _ := newTestServer(t, exec, Config{})
	rr := post(t, s, "/execute", `{"language":"javascript","code":"console.log(readline() * 2)","stdin":"21"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp executeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "42", resp.Stdout)
	assert.Equal(t, 0, resp.ExitCode)

	rr = post(t, s, "/execute", `{"language":"rust","code":"fn main() {}"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = executeResponse{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 1, resp.ExitCode)
	assert.Contains(t, resp.Stderr, "Rust")
}
