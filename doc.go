// Package runbox runs untrusted JavaScript, TypeScript and Python inside a
// WebAssembly sandbox, one isolated run per call.
//
// # Overview
//
// Guests get no filesystem, network, environment or clock beyond what WASI
// needs to start. Each run sees only its source and the stdin it was given,
// and its result is a plain value: stdout, stderr, an exit code and a short
// error tag.
//
// # Basic Usage
//
//	exec, _ := executor.New()
//	defer exec.Close()
//
//	result := exec.Run(ctx, executor.JavaScript, `console.log(readline() * 2)`,
//	    executor.WithStdin("21"))
//	fmt.Println(result.Stdout) // 42
//
// # Test Cases
//
//	results := exec.RunTestCases(ctx, executor.Python, code, []executor.TestCase{
//	    {Input: "3\n4", ExpectedOutput: "7"},
//	})
//
// Python needs a WASI build of CPython; see [executor.WithPython].
//
// See the [executor], [language/javascript], [language/typescript] and
// [language/python] packages for details, and cmd/runbox for the CLI and
// HTTP server.
package runbox
