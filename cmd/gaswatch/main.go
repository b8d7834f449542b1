// Package main is the entry point for gaswatch, a live base fee dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fd1az/gaswatch/business/basefee"
	basefeeDI "github.com/fd1az/gaswatch/business/basefee/di"
	"github.com/fd1az/gaswatch/internal/apm"
	"github.com/fd1az/gaswatch/internal/config"
	"github.com/fd1az/gaswatch/internal/health"
	"github.com/fd1az/gaswatch/internal/logger"
	"github.com/fd1az/gaswatch/internal/metrics"
	"github.com/fd1az/gaswatch/internal/monolith"
	"github.com/fd1az/gaswatch/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Print renders to stdout and logs to stderr (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gaswatch %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for pipes and debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
		if ui.Program != nil {
			ui.Program.Quit()
		}
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set TUI mode in config so modules know
	cfg.Dashboard.TUIMode = tuiMode

	log, closeLog := newLogger(cfg, tuiMode)
	defer closeLog()

	log.Info(ctx, "starting gaswatch",
		"version", version,
		"environment", cfg.App.Environment,
		"tui", tuiMode,
	)

	stopTelemetry, err := startTelemetry(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}
	defer stopTelemetry()

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&basefee.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	dashboard := basefeeDI.GetDashboard(mono.Services())

	if cfg.Health.Enabled {
		healthServer := health.NewServer(cfg.Health.Port, version, log)
		healthServer.RegisterCheck("node", dashboard.NodeHealthy)
		healthServer.RegisterCheck("blocks", dashboard.BlocksHealthy)
		if err := healthServer.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "addr", healthServer.Addr())
			defer healthServer.Stop(context.Background())
		}
	}

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dashboard.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "dashboard did not stop in time", "error", err)
		}
	}

	if tuiMode {
		start := func() error {
			return mono.StartModules(ctx, modules...)
		}
		return runTUI(ctx, start, stop)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	<-ctx.Done()

	log.Info(ctx, "shutting down")
	stop()
	return nil
}

// newLogger writes to stderr in CLI mode. In TUI mode the terminal belongs
// to the dashboard, so logs go to the rotating log file or nowhere.
func newLogger(cfg *config.Config, tuiMode bool) (*logger.Logger, func()) {
	level := logger.ParseLevel(cfg.App.LogLevel)

	if !tuiMode {
		return logger.New(os.Stderr, level, cfg.App.Name, apm.TraceID), func() {}
	}

	if cfg.App.LogFile == "" {
		return logger.New(io.Discard, level, cfg.App.Name, apm.TraceID), func() {}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.App.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}
	return logger.New(file, level, cfg.App.Name, apm.TraceID), func() { file.Close() }
}

// startTelemetry installs tracing and metrics when enabled and serves the
// Prometheus endpoint. The returned func stops everything it started.
func startTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	traceProvider, err := apm.NewTraceProvider(cfg.Telemetry.ServiceName, apm.WithProvider(apm.Config{
		Provider: apm.Provider(cfg.Telemetry.TraceProvider),
		Endpoint: cfg.Telemetry.OTLPEndpoint,
		Headers:  cfg.Telemetry.OTLPHeaders,
	}, log))
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	log.Info(ctx, "tracing initialized", "provider", cfg.Telemetry.TraceProvider)

	meterProvider, err := metrics.NewMetricProvider(metrics.WithServiceName(cfg.Telemetry.ServiceName))
	if err != nil {
		traceProvider.Stop()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	promServer, err := metrics.NewPromServer(metrics.WithPort(strconv.Itoa(cfg.Telemetry.PrometheusPort)))
	if err != nil {
		traceProvider.Stop()
		meterProvider.Shutdown(context.Background())
		return nil, err
	}
	go func() {
		if err := promServer.Serve(); err != nil {
			log.Error(context.Background(), "prometheus server stopped", "error", err)
		}
	}()
	log.Info(ctx, "prometheus metrics server started", "addr", promServer.Addr())

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		promServer.Stop(stopCtx)
		meterProvider.Shutdown(stopCtx)
		traceProvider.Stop()
	}, nil
}

func runTUI(ctx context.Context, startFunc func() error, stopFunc func()) error {
	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Modules start in the background once the welcome screen is done
	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// Blocks until the user quits or a signal arrives
	if err := ui.Run(); err != nil {
		stopFunc()
		return fmt.Errorf("TUI error: %w", err)
	}

	stopFunc()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
