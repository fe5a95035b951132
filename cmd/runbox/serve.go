package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caffeineduck/runbox/executor"
	"github.com/caffeineduck/runbox/internal/server"
	"github.com/caffeineduck/runbox/language/javascript"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the executor over HTTP",
	Long: `Start an HTTP server exposing:

  POST /execute    {"language","code","stdin","timeout_ms"}
  POST /test       {"language","code","cases":[{"input","expected"}],"timeout_ms"}
  GET  /languages
  GET  /health
  GET  /metrics

Requests are rate limited per client address. SIGINT or SIGTERM drains
in-flight runs before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().Float64("rate-limit", -1, "Requests per second per client, 0 disables")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if rl, _ := cmd.Flags().GetFloat64("rate-limit"); rl >= 0 {
		cfg.Server.RateLimit = rl
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// The server logs at the configured level.
	logger := newLogger(cfg.Log, cmd.ErrOrStderr(), false)

	exec, err := newExecutor(cfg, logger, nil, executor.JavaScript)
	if err != nil {
		return err
	}
	defer exec.Close()
	logger.Info().
		Str("quickjs", javascript.Version()).
		Bool("javascript_ready", exec.Ready(executor.JavaScript)).
		Msg("executor ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.New(exec, server.Config{
		RateLimit:    cfg.Server.RateLimit,
		Burst:        cfg.Server.Burst,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
