package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	corecfg "github.com/aevon-lab/telemetryd/internal/core/config"
)

func main() {
	configPath := flag.String("config", "config/telemetryd.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Bootstrap logger until config is loaded
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))
	slog.Info("Loaded config",
		"addr", cfg.Server.Addr(),
		"database", cfg.Database.Enabled,
		"metrics", len(cfg.Definitions),
		"report_interval", cfg.Report.Interval,
		"pull_interval", cfg.Pull.Interval)

	// 2. Self metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 3. Wire components
	a, err := newApp(cfg, quartz.NewReal(), reg, nil)
	if err != nil {
		slog.Error("Failed to start", "error", err)
		os.Exit(1)
	}

	// 4. Run until SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx); err != nil {
		slog.Error("Stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func newLogger(cfg corecfg.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
