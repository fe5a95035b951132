package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/caffeineduck/runbox/executor"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run code once",
	Long: `Execute JavaScript, TypeScript or Python code in a sandbox.

Code can be provided via:
  - File argument: runbox run solution.py
  - Inline flag: runbox run -l js -c 'console.log(1+1)'
  - Stdin: echo 'print(1+1)' | runbox run -l python

Program input is given with --stdin or --stdin-file. The process exits with
the program's exit code (124 on timeout).`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().String("stdin", "", "Input served to the program line by line")
	cmd.Flags().String("stdin-file", "", "Read program input from a file")
	cmd.Flags().Duration("timeout", 0, "Execution timeout (default from config, 10s)")
	cmd.Flags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
}

func runRun(cmd *cobra.Command, args []string) {
	code, err := runOnce(cmd, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if code != 0 {
		os.Exit(code)
	}
}

// runOnce executes the program and returns the exit code to use.
func runOnce(cmd *cobra.Command, args []string) (int, error) {
	source, filename, err := readSource(cmd, args)
	if err != nil {
		return 1, err
	}
	if source == "" {
		return 0, cmd.Help()
	}

	langFlag, _ := cmd.Flags().GetString("lang")
	lang, err := getLanguage(langFlag, filename)
	if err != nil {
		return 1, err
	}

	stdin, _ := cmd.Flags().GetString("stdin")
	if path, _ := cmd.Flags().GetString("stdin-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return 1, err
		}
		stdin = string(data)
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return 1, err
	}
	if memory, _ := cmd.Flags().GetString("memory"); memory != "" {
		cfg.MemoryLimit = memory
		if err := cfg.Validate(); err != nil {
			return 1, err
		}
	}

	exec, err := newExecutor(cfg, commandLogger(cmd, cfg), cmd.ErrOrStderr())
	if err != nil {
		return 1, err
	}
	defer exec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result := exec.Execute(ctx, executor.Request{
		Code:     source,
		Language: lang,
		Stdin:    stdin,
		Timeout:  timeout,
	})
	printResult(cmd, result)
	return result.ExitCode, nil
}

func printResult(cmd *cobra.Command, result executor.Result) {
	if result.Stdout != "" {
		fmt.Fprint(cmd.OutOrStdout(), withNewline(result.Stdout))
	}
	if result.Stderr != "" {
		fmt.Fprint(cmd.ErrOrStderr(), withNewline(result.Stderr))
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[exit %d in %v]\n", result.ExitCode, result.Duration.Round(time.Millisecond))
	}
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
