package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/aevon-lab/telemetryd/internal/condition"
	corecfg "github.com/aevon-lab/telemetryd/internal/core/config"
	"github.com/aevon-lab/telemetryd/internal/core/storage"
	"github.com/aevon-lab/telemetryd/internal/core/storage/postgres"
	"github.com/aevon-lab/telemetryd/internal/ingestion"
	"github.com/aevon-lab/telemetryd/internal/instrument"
	"github.com/aevon-lab/telemetryd/internal/matcher"
	"github.com/aevon-lab/telemetryd/internal/migrations"
	"github.com/aevon-lab/telemetryd/internal/projection"
	"github.com/aevon-lab/telemetryd/internal/pull"
	"github.com/aevon-lab/telemetryd/internal/reporting"
	"github.com/aevon-lab/telemetryd/internal/server"
	"github.com/aevon-lab/telemetryd/internal/valuemetric"
)

// app holds every long-lived component of the daemon.
type app struct {
	cfg        *corecfg.Config
	tracker    *condition.Tracker
	dispatcher *matcher.Dispatcher
	pulls      *pull.Manager
	reports    *reporting.Service
	scheduler  *reporting.Scheduler
	server     *server.Server
	closeStore func() error
}

// newApp wires the daemon. store overrides the configured archive when non-nil.
func newApp(cfg *corecfg.Config, clock quartz.Clock, reg *prometheus.Registry, store storage.ReportStore) (*app, error) {
	metrics := instrument.New(reg)
	a := &app{cfg: cfg, closeStore: func() error { return nil }}

	var health server.HealthChecker
	if store == nil {
		s, db, closeFn, err := openStore(cfg.Database)
		if err != nil {
			return nil, err
		}
		store, health, a.closeStore = s, db, closeFn
	}

	// 1. Conditions
	a.tracker = condition.NewTracker(metrics, slog.Default())
	for _, def := range cfg.Definitions {
		if def.HasCondition() {
			a.tracker.Register(def.Condition)
		}
	}

	// 2. Producers, routed by tag for pushes and by pull tag for pulls
	a.dispatcher = matcher.NewDispatcher(a.tracker, slog.Default())
	a.pulls = pull.NewManager(cfg.Pull.Interval, clock, metrics, slog.Default())
	if cfg.Pull.Enabled {
		if err := pull.RegisterSystemPullers(a.pulls, cfg.Pull.SystemPullers); err != nil {
			return nil, err
		}
	}
	a.reports = reporting.NewService(store, metrics, slog.Default(),
		reporting.WithMaxPending(cfg.Report.MaxPending))

	for _, def := range cfg.Definitions {
		opts := []valuemetric.Option{
			valuemetric.WithClock(clock),
			valuemetric.WithMetrics(metrics),
			valuemetric.WithExtractor(matcher.NewFieldExtractor(def)),
			valuemetric.WithMaxFutureSkew(cfg.Metrics.MaxFutureSkew),
		}
		condIdx := -1
		if def.HasCondition() {
			condIdx, _ = a.tracker.Index(def.Condition)
			opts = append(opts, valuemetric.WithConditionWizard(a.tracker, condIdx))
		}

		p := valuemetric.NewProducer(def, opts...)
		if condIdx >= 0 {
			a.tracker.Subscribe(condIdx, p)
		}
		if def.Pulled {
			if err := a.pulls.RegisterReceiver(def.What, p); err != nil {
				return nil, fmt.Errorf("metric %s: %w", def.Name, err)
			}
		} else {
			a.dispatcher.Add(def, p, condIdx)
		}
		if err := a.reports.Register(p); err != nil {
			return nil, err
		}
	}

	// 3. Reporting and HTTP
	a.scheduler = reporting.NewScheduler(cfg.Report.Interval, a.reports, clock, slog.Default())

	var gatherer prometheus.Gatherer
	if reg != nil {
		gatherer = reg
	}
	a.server = server.New(cfg.Server.Addr(), health, gatherer, cfg.Server.Mode)
	a.server.Register(
		ingestion.NewService(a.dispatcher, cfg.Server.MaxBodySizeMB, slog.Default()),
		a.tracker,
		a.reports,
		projection.NewService(store, cfg.Definitions),
	)

	slog.Info("[App] Wired",
		"metrics", len(cfg.Definitions),
		"conditions", a.tracker.Names(),
		"push_tags", a.dispatcher.Tags(),
		"pull_tags", a.pulls.Tags())
	return a, nil
}

// openStore connects the postgres archive, or falls back to memory.
func openStore(cfg corecfg.DatabaseConfig) (storage.ReportStore, server.HealthChecker, func() error, error) {
	if !cfg.Enabled {
		slog.Info("[App] Database disabled, archive kept in memory")
		return storage.NewMemoryStore(), nil, func() error { return nil }, nil
	}

	adapter, err := postgres.NewAdapter(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := migrations.Run(adapter.DB(), cfg.AutoMigrate); err != nil {
		adapter.Close()
		return nil, nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	if err := adapter.Prepare(); err != nil {
		adapter.Close()
		return nil, nil, nil, err
	}
	return adapter, adapter.DB(), adapter.Close, nil
}

// run blocks until ctx is cancelled and every component has stopped.
// The report scheduler performs the final dump after cancellation.
func (a *app) run(ctx context.Context) error {
	defer func() {
		if err := a.closeStore(); err != nil {
			slog.Error("[App] Failed to close archive", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(gctx) })
	g.Go(func() error { return a.scheduler.Start(gctx) })
	if a.cfg.Pull.Enabled && len(a.pulls.Tags()) > 0 {
		g.Go(func() error { return a.pulls.Run(gctx) })
	} else {
		slog.Info("[App] Pull schedule disabled")
	}
	return g.Wait()
}
