package executor

import (
	"sync"
)

// Shared executor for tests in other packages, so each package pays the
// interpreter compile cost once.
var (
	testExecutor     *Executor
	testExecutorOnce sync.Once
	testExecutorErr  error
)

// GetTestExecutor returns a shared executor for testing. It is created on
// first use with the given options; later calls ignore opts.
func GetTestExecutor(opts ...ExecutorOption) (*Executor, error) {
	testExecutorOnce.Do(func() {
		testExecutor, testExecutorErr = New(opts...)
	})
	return testExecutor, testExecutorErr
}

// CloseTestExecutor closes the shared test executor.
func CloseTestExecutor() {
	if testExecutor != nil {
		testExecutor.Close()
		testExecutor = nil
		testExecutorOnce = sync.Once{}
	}
}
