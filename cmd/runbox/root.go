package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffeineduck/runbox/executor"
	"github.com/caffeineduck/runbox/internal/config"
	"github.com/caffeineduck/runbox/language/python"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "runbox [file]",
	Short: "Run untrusted JavaScript, TypeScript and Python in-process",
	Long: `runbox - Run candidate code safely using WebAssembly.

Code runs inside a WebAssembly sandbox with no filesystem, network or
environment access. JavaScript and TypeScript need nothing else; Python
needs a WASI build of CPython (see --config and RUNBOX_PYTHON_WASM).`,
	Args:          cobra.MaximumNArgs(1),
	Run:           runRun, // Default to run command behavior
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringP("lang", "l", "", "Language: javascript, typescript, python (default: auto-detect)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log runtime loading and executions")

	addRunFlags(rootCmd)
}

// loadConfig reads --config and applies persistent flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.DiskCache = false
	}
	return cfg, nil
}

// newLogger builds the logger described by cfg. Quiet commands only log
// warnings unless --verbose is set.
func newLogger(cfg config.LogConfig, w io.Writer, quiet bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if quiet && level < zerolog.WarnLevel {
		level = zerolog.WarnLevel
	}

	out := w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func commandLogger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return newLogger(cfg.Log, cmd.ErrOrStderr(), !verbose)
}

// newExecutor builds an executor from cfg.
func newExecutor(cfg config.Config, logger zerolog.Logger, progress io.Writer, precompile ...executor.Language) (*executor.Executor, error) {
	opts := []executor.ExecutorOption{
		executor.WithLogger(logger),
		executor.WithDefaultTimeout(cfg.Timeout),
		executor.WithPython(python.Source{
			WasmPath:    cfg.Python.WasmPath,
			LibDir:      cfg.Python.LibDir,
			DownloadURL: cfg.Python.DownloadURL,
		}),
	}
	if cfg.DiskCache {
		opts = append(opts, executor.WithDiskCache(cfg.CacheDir))
	}
	if pages := parseMemoryLimit(cfg.MemoryLimit); pages > 0 {
		opts = append(opts, executor.WithMemoryLimit(pages))
	}
	if progress != nil {
		opts = append(opts, executor.WithProgress(func(status string) {
			fmt.Fprintln(progress, status)
		}))
	}
	if len(precompile) > 0 {
		opts = append(opts, executor.WithPrecompile(precompile...))
	}
	return executor.New(opts...)
}

var extensions = map[string]executor.Language{
	".js":  executor.JavaScript,
	".mjs": executor.JavaScript,
	".cjs": executor.JavaScript,
	".ts":  executor.TypeScript,
	".mts": executor.TypeScript,
	".py":  executor.Python,
}

func getLanguage(langFlag string, filename string) (executor.Language, error) {
	if langFlag == "" && filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if lang, ok := extensions[ext]; ok {
			return lang, nil
		}
		langFlag = strings.TrimPrefix(ext, ".")
	}

	if langFlag == "" {
		return "", fmt.Errorf("language required: use --lang javascript, typescript or python")
	}

	lang := executor.ParseLanguage(langFlag)
	for _, info := range executor.Languages() {
		if info.ID == lang {
			return lang, nil
		}
	}
	return "", fmt.Errorf("unknown language %q: run 'runbox langs' for the list", langFlag)
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return executor.MemoryLimit1MB
	case "16mb":
		return executor.MemoryLimit16MB
	case "64mb":
		return executor.MemoryLimit64MB
	case "256mb":
		return executor.MemoryLimit256MB
	case "1gb":
		return executor.MemoryLimit1GB
	default:
		return 0 // use default
	}
}

// readSource reads code from --code, a file argument or piped stdin. An
// empty source with no error means there was nothing to read.
func readSource(cmd *cobra.Command, args []string) (source, filename string, err error) {
	code, _ := cmd.Flags().GetString("code")
	switch {
	case code != "":
		return code, "", nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		// No piped input.
		if stat, err := f.Stat(); err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", "", err
	}
	return string(data), "", nil
}
