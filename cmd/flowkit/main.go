// Package main implements the flowkit pipeline runner. It loads a YAML
// pipeline description, validates the topology, and drives it with the
// selected scheduler, exposing Prometheus metrics while it runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/flowkit/loader"
	"github.com/c360/flowkit/metric"
	"github.com/c360/flowkit/pipeline"
	"github.com/c360/flowkit/process"
	"github.com/c360/flowkit/scheduler"
	"github.com/c360/flowkit/testutil"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "flowkit"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Pipeline runner failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting flowkit pipeline runner",
		"version", Version,
		"build_time", BuildTime,
		"pipeline_path", cliCfg.PipelinePath)

	registry := process.NewRegistry()
	if err := registerBuiltins(registry); err != nil {
		return fmt.Errorf("register builtin process types: %w", err)
	}

	metricsRegistry := metric.NewRegistry()
	pl, err := loader.New(registry,
		loader.WithLogger(logger),
		loader.WithMetrics(metricsRegistry),
	).LoadFile(cliCfg.PipelinePath)
	if err != nil {
		return fmt.Errorf("load pipeline description: %w", err)
	}

	result, err := pl.Setup()
	if result != nil {
		reportValidation(result)
	}
	if err != nil {
		return fmt.Errorf("pipeline setup: %w", err)
	}
	if cliCfg.Validate {
		slog.Info("Pipeline description is valid", "pipeline", pl.Name())
		return nil
	}

	if err := pl.Initialize(); err != nil {
		return fmt.Errorf("pipeline initialize: %w", err)
	}

	stopMetrics := serveMetrics(cliCfg.MetricsPort, metricsRegistry)
	defer stopMetrics()

	sched, err := buildScheduler(cliCfg, pl, logger)
	if err != nil {
		return err
	}

	return runWithSignalHandling(sched, pl.Name())
}

// registerBuiltins registers the built-in demonstration process types
func registerBuiltins(r *process.Registry) error {
	regs := []*process.Registration{
		{
			TypeName:    "source",
			Description: "emits integers 0..count-1 and completes",
			Version:     Version,
			Factory: func(name string) (process.Process, error) {
				return testutil.NewSource(name, "int", 0, nil), nil
			},
		},
		{
			TypeName:    "sink",
			Description: "records everything it receives",
			Version:     Version,
			Factory: func(name string) (process.Process, error) {
				return testutil.NewSink(name, "int"), nil
			},
		},
		{
			TypeName:    "pass",
			Description: "forwards input to output unchanged",
			Version:     Version,
			Factory: func(name string) (process.Process, error) {
				return testutil.NewPassThrough(name, "int"), nil
			},
		},
		{
			TypeName:    "scale",
			Description: "multiplies integer payloads by a configured factor",
			Version:     Version,
			Factory: func(name string) (process.Process, error) {
				return testutil.NewScale(name, 1), nil
			},
		},
		{
			TypeName:    "adder",
			Description: "sums two synchronized integer inputs",
			Version:     Version,
			Factory: func(name string) (process.Process, error) {
				return testutil.NewAdder(name), nil
			},
		},
	}
	for _, reg := range regs {
		if err := r.RegisterFactory(reg); err != nil {
			return err
		}
	}
	return nil
}

// reportValidation logs every issue the whole-graph validation accumulated
func reportValidation(result *pipeline.ValidationResult) {
	for _, issue := range result.Warnings {
		slog.Warn("Validation warning",
			"type", issue.Type, "process", issue.Process, "port", issue.Port,
			"message", issue.Message)
	}
	for _, issue := range result.Errors {
		slog.Error("Validation error",
			"type", issue.Type, "process", issue.Process, "port", issue.Port,
			"message", issue.Message)
	}
	if out, err := json.Marshal(result); err == nil {
		slog.Debug("Validation result", "result", string(out))
	}
}

// buildScheduler selects the scheduling policy from flags
func buildScheduler(cfg *CLIConfig, pl *pipeline.Pipeline, logger *slog.Logger) (scheduler.Scheduler, error) {
	policy := scheduler.StallPolicy{
		MaxConsecutiveStalls: cfg.MaxStalls,
		StallDelay:           cfg.StallDelay,
	}
	switch cfg.Scheduler {
	case "sync":
		return scheduler.NewSync(pl,
			scheduler.WithSyncLogger(logger),
			scheduler.WithSyncStallPolicy(policy)), nil
	case "threaded":
		return scheduler.NewThreaded(pl,
			scheduler.WithThreadedLogger(logger),
			scheduler.WithThreadedStallPolicy(policy)), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q", cfg.Scheduler)
	}
}

// serveMetrics exposes the Prometheus registry on /metrics; port 0 disables
func serveMetrics(port int, registry *metric.Registry) func() {
	if port <= 0 {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		registry.PrometheusRegistry(),
		promhttp.HandlerOpts{},
	))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// runWithSignalHandling runs the scheduler until completion or a signal
func runWithSignalHandling(sched scheduler.Scheduler, pipelineName string) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	start := time.Now()
	err := sched.Run(signalCtx)
	if err != nil {
		return fmt.Errorf("run pipeline %s: %w", pipelineName, err)
	}

	slog.Info("Pipeline finished",
		"pipeline", pipelineName,
		"state", sched.State().String(),
		"duration", time.Since(start))
	return nil
}
