package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"videod/internal/config"
	"videod/internal/httpapi"
	"videod/internal/pipeline"
	"videod/internal/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "videod",
		Short:         "GPU-resident video generation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Optional config file (.yaml/.json/.toml)")
	root.PersistentFlags().String("log-level", "info", "Log level: debug|info|warn|error")
	root.AddCommand(newServeCmd(), newAssetsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Warm up the pipeline and serve generation requests",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "HTTP listen address, e.g. :8080")
	f.String("assets-dir", "~/models/video", "Directory holding the three *.safetensors model assets")
	f.String("output-dir", "", "Base directory for per-job output dirs (default: system temp)")
	f.Int("device-budget-mb", 0, "Device memory budget in MB (0=unlimited)")
	f.Int("device-margin-mb", 0, "Reserved device memory margin in MB")
	f.Int("max-concurrent-jobs", 0, "Safe concurrent job count for the device (default 1)")
	f.Int("max-queue-depth", 0, "Queued jobs allowed before backpressure")
	f.Int("max-wait-sec", 0, "Seconds a job may wait for admission")
	f.Int64("generate-timeout-sec", 0, "Overall /generate timeout in seconds (0 disables)")
	f.Int64("max-body-bytes", 0, "Maximum request body size in bytes")
	f.String("cors-origins", "", "Comma-separated allowed CORS origins (empty disables CORS)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	httpapi.SetLogger(logger)

	bundle, err := registry.LoadDir(cfg.AssetsDir)
	if err != nil {
		return fmt.Errorf("resolve assets: %w", err)
	}

	p := pipeline.New(pipeline.Config{
		Assets:            bundle,
		DeviceBudgetMB:    cfg.DeviceBudgetMB,
		DeviceMarginMB:    cfg.DeviceMarginMB,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		MaxQueueDepth:     cfg.MaxQueueDepth,
		MaxWait:           time.Duration(cfg.MaxWaitSeconds) * time.Second,
		StageBaseBudget:   time.Duration(cfg.StageBaseBudgetMS) * time.Millisecond,
		StageStepBudget:   time.Duration(cfg.StageStepBudgetMS) * time.Millisecond,
		OutputDir:         cfg.OutputDir,
		Logger:            &logger,
	})
	// Warm-up is process-fatal on failure: no request can be served without
	// resident models.
	if err := p.WarmUp(); err != nil {
		return fmt.Errorf("warm up: %w", err)
	}

	if v, _ := cmd.Flags().GetInt64("max-body-bytes"); v > 0 {
		httpapi.SetMaxBodyBytes(v)
	}
	if v, _ := cmd.Flags().GetInt64("generate-timeout-sec"); v > 0 {
		httpapi.SetGenerateTimeoutSeconds(v)
	}
	if origins, _ := cmd.Flags().GetString("cors-origins"); origins != "" {
		httpapi.SetCORSOptions(true, splitCSV(origins),
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Content-Type"})
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(p)}
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("assets_dir", cfg.AssetsDir).Msg("videod listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	p.Shutdown()
	return nil
}

func newAssetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Resolve and print the model assets for a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("assets-dir")
			bundle, err := registry.LoadDir(dir)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(bundle.All())
		},
	}
	cmd.Flags().String("assets-dir", "~/models/video", "Directory holding the model assets")
	return cmd
}

// resolveConfig merges config file, environment, and flags (flags win).
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg, err := config.ApplyEnv(cfg)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("addr") || cfg.Addr == "" {
		cfg.Addr, _ = f.GetString("addr")
	}
	if f.Changed("assets-dir") || cfg.AssetsDir == "" {
		cfg.AssetsDir, _ = f.GetString("assets-dir")
	}
	if f.Changed("output-dir") {
		cfg.OutputDir, _ = f.GetString("output-dir")
	}
	if f.Changed("device-budget-mb") {
		cfg.DeviceBudgetMB, _ = f.GetInt("device-budget-mb")
	}
	if f.Changed("device-margin-mb") {
		cfg.DeviceMarginMB, _ = f.GetInt("device-margin-mb")
	}
	if f.Changed("max-concurrent-jobs") {
		cfg.MaxConcurrentJobs, _ = f.GetInt("max-concurrent-jobs")
	}
	if f.Changed("max-queue-depth") {
		cfg.MaxQueueDepth, _ = f.GetInt("max-queue-depth")
	}
	if f.Changed("max-wait-sec") {
		cfg.MaxWaitSeconds, _ = f.GetInt("max-wait-sec")
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	levelStr, _ := cmd.Flags().GetString("log-level")
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
