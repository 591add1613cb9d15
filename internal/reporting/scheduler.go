package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/quartz"
)

const shutdownDumpTimeout = 30 * time.Second

// Scheduler dumps every metric on a fixed interval.
type Scheduler struct {
	interval time.Duration
	service  *Service
	clock    quartz.Clock
	logger   *slog.Logger
}

func NewScheduler(interval time.Duration, service *Service, clock quartz.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		service:  service,
		clock:    clock,
		logger:   logger,
	}
}

// Start dumps on every tick until ctx is cancelled, then runs the final
// shutdown dump with a fresh deadline.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("report interval must be positive, got %s", s.interval)
	}
	s.logger.Info("[Scheduler] Starting report scheduler",
		"interval", s.interval,
		"metrics", len(s.service.Names()))

	w := s.clock.TickerFunc(ctx, s.interval, func() error {
		s.tick(ctx)
		return nil
	}, "report")
	err := w.Wait()

	s.logger.Info("[Scheduler] Stopping, running final dump")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDumpTimeout)
	defer cancel()
	s.service.Shutdown(shutdownCtx)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) tick(ctx context.Context) {
	reports := s.service.DumpAll(ctx)
	buckets := 0
	for _, r := range reports {
		buckets += r.BucketCount()
	}
	s.logger.Info("[Scheduler] Dumped reports",
		"reports", len(reports),
		"buckets", buckets,
		"pending", s.service.Pending())
}
