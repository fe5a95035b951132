// Package executor runs untrusted guest code in-process and reports what it
// printed.
//
// # Overview
//
// An [Executor] routes each request to one of three backends by language:
//
//   - JavaScript runs directly in a fresh QuickJS instance per call.
//   - TypeScript is lowered to JavaScript with esbuild, then runs directly.
//   - Python runs in a WASI build of CPython that is loaded on first use and
//     shared; runs against it are serialized.
//
// Every guest runs inside a wazero sandbox with no filesystem, network or
// environment. Execute never fails: load errors, compile errors, guest
// exceptions and timeouts all come back as a [Result] with a non-zero
// ExitCode and an ErrorTag.
//
// # Basic Usage
//
//	exec, err := executor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	result := exec.Run(ctx, executor.JavaScript, `console.log(readline() * 2)`,
//	    executor.WithStdin("21"),
//	    executor.WithTimeout(2*time.Second),
//	)
//	fmt.Println(result.Stdout) // 42
//
// # Test Cases
//
// [Executor.RunTestCases] runs the same code once per [TestCase] and compares
// trimmed stdout with the expected output:
//
//	results := exec.RunTestCases(ctx, executor.Python, code, []executor.TestCase{
//	    {Input: "3\n4", ExpectedOutput: "7"},
//	})
//	fmt.Println(executor.Summarize(results).AllPassed())
//
// # Interpreters
//
// The JavaScript and Python backends run an [Interpreter]. Replace one with
// [WithInterpreter]; see [github.com/caffeineduck/runbox/language/python].
package executor
