package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	PipelinePath string
	Scheduler    string
	LogLevel     string
	LogFormat    string
	MetricsPort  int
	MaxStalls    int
	StallDelay   time.Duration
	ShowVersion  bool
	ShowHelp     bool
	Validate     bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.PipelinePath, "pipeline",
		getEnv("FLOWKIT_PIPELINE", "pipeline.yaml"),
		"Path to the pipeline description (env: FLOWKIT_PIPELINE)")

	flag.StringVar(&cfg.PipelinePath, "p",
		getEnv("FLOWKIT_PIPELINE", "pipeline.yaml"),
		"Path to the pipeline description (env: FLOWKIT_PIPELINE)")

	flag.StringVar(&cfg.Scheduler, "scheduler",
		getEnv("FLOWKIT_SCHEDULER", "threaded"),
		"Scheduler: sync, threaded (env: FLOWKIT_SCHEDULER)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("FLOWKIT_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: FLOWKIT_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("FLOWKIT_LOG_FORMAT", "json"),
		"Log format: json, text (env: FLOWKIT_LOG_FORMAT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("FLOWKIT_METRICS_PORT", 9090),
		"Prometheus metrics port, 0 to disable (env: FLOWKIT_METRICS_PORT)")

	flag.IntVar(&cfg.MaxStalls, "max-stalls",
		getEnvInt("FLOWKIT_MAX_STALLS", 0),
		"Consecutive stamp-mismatch stalls tolerated per process, 0 for unlimited (env: FLOWKIT_MAX_STALLS)")

	flag.DurationVar(&cfg.StallDelay, "stall-delay",
		getEnvDuration("FLOWKIT_STALL_DELAY", 10*time.Millisecond),
		"Retry delay for a stalled process (env: FLOWKIT_STALL_DELAY)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate the pipeline description and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if _, err := os.Stat(cfg.PipelinePath); err != nil {
		return fmt.Errorf("pipeline description not found: %s", cfg.PipelinePath)
	}
	if !contains([]string{"sync", "threaded"}, cfg.Scheduler) {
		return fmt.Errorf("invalid scheduler: %s", cfg.Scheduler)
	}
	if !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	if cfg.MaxStalls < 0 {
		return fmt.Errorf("invalid max stalls: %d", cfg.MaxStalls)
	}
	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Dataflow Pipeline Runner

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run a pipeline description with the threaded scheduler
  %s --pipeline=/path/to/pipeline.yaml

  # Single-threaded deterministic run with text logs
  %s --scheduler=sync --log-format=text

  # Validate a description without running it
  %s --pipeline=pipeline.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// contains reports whether slice has item
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
