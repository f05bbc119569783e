// Package main provides the telemetry-sim CLI, which replays scenario span
// trees through the tracing core into the configured sink.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/telemetry/cmd/telemetry-sim/engine"
	"github.com/arloliu/telemetry/cmd/telemetry-sim/scenario"
)

// mode is one CLI subcommand. bind registers the mode's own flags.
type mode struct {
	bind func(fs *flag.FlagSet, cfg *Config)
	exec func(ctx context.Context, cfg *Config) error
}

var modes = map[string]mode{
	"quick": {
		bind: func(fs *flag.FlagSet, cfg *Config) {
			fs.IntVar(&cfg.Count, "count", cfg.Count, "Number of traces to send")
		},
		exec: executeQuick,
	},
	"run": {
		bind: func(fs *flag.FlagSet, cfg *Config) {
			fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Total simulation time")
			fs.Float64Var(&cfg.Rate, "rate", cfg.Rate, "Traces per second")
			fs.IntVar(&cfg.Jitter, "jitter", cfg.Jitter, "Timing variation percentage")
		},
		exec: executeContinuous,
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "list":
		listScenarios()
		return
	case "-h", "--help", "help":
		printUsage()
		return
	}

	m, ok := modes[name]
	if !ok {
		_, _ = fmt.Fprintf(os.Stderr, "Unknown mode: %s\n", name)
		printUsage()
		os.Exit(1)
	}
	if err := runMode(name, m, os.Args[2:]); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMode(name string, m mode, args []string) error {
	cfg := newConfig()
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfg.bindCommonFlags(fs)
	m.bind(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	cfg.applyEnvOverrides()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return m.exec(ctx, cfg)
}

func printUsage() {
	fmt.Println(`telemetry-sim - trace simulator

Usage:
  telemetry-sim <mode> [flags]

Modes:
  quick   Send traces immediately
  run     Simulate real-world timing continuously
  list    List available scenarios

Common Flags:
  --config        Telemetry config file (YAML or JSON)
  --service-name  Override service name
  --sample        Sample ratio (default: 100)
  --log-file      Append traces as JSON lines to a file
  --http-endpoint POST traces to an HTTP endpoint
  --exporter      Span exporter when no other sink is set: otlp, console, none (default: console)
  --endpoint      OTLP endpoint
  --http          Use OTLP/HTTP instead of gRPC
  --insecure      Skip TLS verification (default: true)
  --scenario      Scenario name (default: payment)
  --scenario-file Custom YAML scenario file
  --time-scale    Multiplier for simulated durations (default: 1)

Quick Mode Flags:
  --count         Number of traces to send (default: 10)

Continuous Mode Flags:
  --duration      Total simulation time (default: 1m)
  --rate          Traces per second (default: 1)
  --jitter        Timing variation percentage (default: 20)

Environment Variables:
  TELEMETRY_CONFIG              Telemetry config file
  OTEL_EXPORTER_OTLP_ENDPOINT   OTLP endpoint
  OTEL_EXPORTER_OTLP_INSECURE   Skip TLS verification
  OTEL_SERVICE_NAME             Default service name

Examples:
  telemetry-sim quick --scenario payment --count 5
  telemetry-sim quick --log-file /tmp/traces.log --time-scale 0
  telemetry-sim run --exporter otlp --duration 5m --rate 10
  telemetry-sim list`)
}

func listScenarios() {
	fmt.Println("Available scenarios:")
	fmt.Println()
	for _, name := range scenario.List() {
		s, _ := scenario.Get(name)
		fmt.Printf("  %-12s %s\n", s.Name, s.Description)
		fmt.Printf("  %-12s - %d spans\n", "", s.RootSpan.SpanCount())
	}
}

func newEngine(ctx context.Context, cfg *Config, jitter int) (*engine.Engine, error) {
	tc, err := cfg.telemetryConfig()
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, engine.Config{
		Telemetry: tc,
		JitterPct: jitter,
		TimeScale: cfg.TimeScale,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return eng, nil
}

// executeQuick sends traces immediately.
func executeQuick(ctx context.Context, cfg *Config) error {
	s, err := loadScenario(cfg)
	if err != nil {
		return err
	}

	eng, err := newEngine(ctx, cfg, 0) // No jitter in quick mode
	if err != nil {
		return err
	}
	defer shutdown(eng)

	fmt.Printf("Sending %d traces (scenario: %s)\n", cfg.Count, s.Name)

	for i := range cfg.Count {
		select {
		case <-ctx.Done():
			fmt.Printf("\nInterrupted after %d traces\n", i)
			return nil
		default:
		}

		id, err := eng.GenerateTrace(ctx, s)
		switch {
		case errors.Is(err, engine.ErrNotAdmitted):
			fmt.Printf("Trace %d/%d sampled out\n", i+1, cfg.Count)
		case err != nil:
			return fmt.Errorf("failed to generate trace %d: %w", i+1, err)
		default:
			fmt.Printf("Trace %d/%d sent (id %s)\n", i+1, cfg.Count, id)
		}
	}
	fmt.Println("Done!")

	return nil
}

// executeContinuous runs traces at a steady rate for a duration.
func executeContinuous(ctx context.Context, cfg *Config) error {
	s, err := loadScenario(cfg)
	if err != nil {
		return err
	}
	if cfg.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", cfg.Rate)
	}

	eng, err := newEngine(ctx, cfg, cfg.Jitter)
	if err != nil {
		return err
	}
	defer shutdown(eng)

	fmt.Printf("Running %s scenario for %v at %.1f traces/sec\n", s.Name, cfg.Duration, cfg.Rate)

	interval := time.Duration(float64(time.Second) / cfg.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	deadline := time.Now().Add(cfg.Duration)
	traceCount, skipped := 0, 0

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\nInterrupted after %d traces\n", traceCount)
			return nil
		case <-ticker.C:
			if time.Now().After(deadline) {
				fmt.Printf("\nCompleted: sent %d traces, %d sampled out\n", traceCount, skipped)
				return nil
			}

			_, err := eng.GenerateTrace(ctx, s)
			switch {
			case errors.Is(err, engine.ErrNotAdmitted):
				skipped++
			case err != nil:
				_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to generate trace: %v\n", err)
			default:
				traceCount++
			}
		}
	}
}

func shutdown(eng *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := eng.Shutdown(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: shutdown failed: %v\n", err)
	}
}

func loadScenario(cfg *Config) (*scenario.Scenario, error) {
	// Try custom YAML file first
	if cfg.ScenarioFile != "" {
		return scenario.LoadFromFile(cfg.ScenarioFile)
	}

	// Look up embedded scenario
	s, ok := scenario.Get(cfg.Scenario)
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s (use 'telemetry-sim list' to see available scenarios)", cfg.Scenario)
	}

	return s, nil
}
