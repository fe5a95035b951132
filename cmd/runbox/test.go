package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/caffeineduck/runbox/executor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var testCmd = &cobra.Command{
	Use:   "test <file> <cases.yaml>",
	Short: "Run code against test cases",
	Long: `Run a program once per test case and compare its output.

The cases file is a YAML list:

  - input: "3\n4"
    expected: "7"
  - input: "10\n-2"
    expected: "8"

Output is compared after trimming surrounding whitespace. Exits 1 if any
case fails.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		failed, err := runTests(cmd, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	testCmd.Flags().Duration("timeout", 0, "Per-case timeout (default from config, 10s)")
	rootCmd.AddCommand(testCmd)
}

func loadTestCases(path string) ([]executor.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cases []executor.TestCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%s: no test cases", path)
	}
	return cases, nil
}

// runTests reports whether any case failed.
func runTests(cmd *cobra.Command, args []string) (bool, error) {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return false, err
	}
	langFlag, _ := cmd.Flags().GetString("lang")
	lang, err := getLanguage(langFlag, args[0])
	if err != nil {
		return false, err
	}
	cases, err := loadTestCases(args[1])
	if err != nil {
		return false, err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return false, err
	}
	exec, err := newExecutor(cfg, commandLogger(cmd, cfg), cmd.ErrOrStderr())
	if err != nil {
		return false, err
	}
	defer exec.Close()

	var opts []executor.Option
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		opts = append(opts, executor.WithTimeout(timeout))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := exec.RunTestCases(ctx, lang, string(source), cases, opts...)

	out := cmd.OutOrStdout()
	for i, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(out, "%s case %d (%v)\n", status, i+1, r.Duration.Round(time.Millisecond))
		if !r.Passed {
			fmt.Fprintf(out, "  input:    %q\n", r.Input)
			fmt.Fprintf(out, "  expected: %q\n", r.ExpectedOutput)
			fmt.Fprintf(out, "  actual:   %q\n", r.ActualOutput)
		}
	}

	summary := executor.Summarize(results)
	fmt.Fprintf(out, "\n%d/%d passed in %v\n", summary.Passed, summary.Total, summary.Duration.Round(time.Millisecond))
	return !summary.AllPassed(), nil
}
