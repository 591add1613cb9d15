// Package reporting drains producer archives into reports and hands them to
// the archive store.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
	"github.com/aevon-lab/telemetryd/internal/core/storage"
	"github.com/aevon-lab/telemetryd/internal/instrument"
)

// ErrUnknownMetric is returned for a metric name with no registered producer.
var ErrUnknownMetric = errors.New("unknown metric")

// Producer is the part of a value metric producer that reporting drives.
type Producer interface {
	Name() string
	Definition() metric.Definition
	OnDumpReport() metric.Report
	Finish()
}

// DefaultMaxPending is the retry queue length used when none is configured.
const DefaultMaxPending = 1000

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxPending caps the reports kept for retry. When the queue is full the
// oldest report is dropped. Non-positive values keep the default.
func WithMaxPending(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxPending = n
		}
	}
}

// Service owns the set of producers and persists what they dump.
// A nil store keeps reports in memory only for the dump response.
type Service struct {
	store   storage.ReportStore
	metrics *instrument.Metrics
	logger  *slog.Logger

	maxPending int

	mu        sync.Mutex
	producers map[string]Producer
	pending   []metric.Report
}

func NewService(store storage.ReportStore, metrics *instrument.Metrics, logger *slog.Logger, opts ...ServiceOption) *Service {
	if metrics == nil {
		metrics = instrument.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:      store,
		metrics:    metrics,
		logger:     logger,
		maxPending: DefaultMaxPending,
		producers:  make(map[string]Producer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds p. Names must be unique.
func (s *Service) Register(p Producer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.producers[p.Name()]; exists {
		return fmt.Errorf("producer %q already registered", p.Name())
	}
	s.producers[p.Name()] = p
	return nil
}

// Names returns the registered metric names in order.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namesLocked()
}

func (s *Service) namesLocked() []string {
	names := make([]string, 0, len(s.producers))
	for name := range s.producers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the definitions of every registered producer, by name.
func (s *Service) Definitions() []metric.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs := make([]metric.Definition, 0, len(s.producers))
	for _, name := range s.namesLocked() {
		defs = append(defs, s.producers[name].Definition())
	}
	return defs
}

// Definition returns the definition of the named producer.
func (s *Service) Definition(name string) (metric.Definition, error) {
	s.mu.Lock()
	p, ok := s.producers[name]
	s.mu.Unlock()
	if !ok {
		return metric.Definition{}, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	return p.Definition(), nil
}

// Dump drains the named producer and persists the report.
// The report is returned even when persistence fails; it is then retried on
// the next dump.
func (s *Service) Dump(ctx context.Context, name string) (metric.Report, error) {
	s.mu.Lock()
	p, ok := s.producers[name]
	s.mu.Unlock()
	if !ok {
		return metric.Report{}, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}

	report := p.OnDumpReport()
	s.persist(ctx, report)
	return report, nil
}

// DumpAll drains every producer in name order.
func (s *Service) DumpAll(ctx context.Context) []metric.Report {
	reports := make([]metric.Report, 0, len(s.Names()))
	for _, name := range s.Names() {
		report, err := s.Dump(ctx, name)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// Pending returns how many reports are waiting to be persisted.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown finishes every producer so partial buckets are archived, then
// dumps everything once more.
func (s *Service) Shutdown(ctx context.Context) {
	for _, name := range s.Names() {
		s.mu.Lock()
		p := s.producers[name]
		s.mu.Unlock()
		p.Finish()
	}

	reports := s.DumpAll(ctx)
	buckets := 0
	for _, r := range reports {
		buckets += r.BucketCount()
	}

	if n := s.Pending(); n > 0 {
		s.logger.Error("[Reporting] Reports not persisted at shutdown", "pending", n)
	}
	s.logger.Info("[Reporting] Final dump complete", "reports", len(reports), "buckets", buckets)
}

// persist queues report behind any earlier failures and writes the queue in
// order, stopping at the first error.
func (s *Service) persist(ctx context.Context, report metric.Report) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !report.Empty() {
		s.pending = append(s.pending, report)
	}
	for len(s.pending) > s.maxPending {
		dropped := s.pending[0]
		s.pending = s.pending[1:]
		s.metrics.ReportWrites.WithLabelValues("dropped").Inc()
		s.logger.Error("[Reporting] Retry queue full, dropping oldest report",
			"metric", dropped.MetricName,
			"report_id", dropped.ReportID,
			"buckets", dropped.BucketCount(),
			"max_pending", s.maxPending)
	}

	for len(s.pending) > 0 {
		next := s.pending[0]
		inserted, err := s.store.SaveReport(ctx, next)
		if err != nil {
			s.metrics.ReportWrites.WithLabelValues("error").Inc()
			s.logger.Error("[Reporting] Failed to persist report, will retry",
				"metric", next.MetricName,
				"report_id", next.ReportID,
				"pending", len(s.pending),
				"error", err)
			return
		}
		s.metrics.ReportWrites.WithLabelValues("success").Inc()
		s.logger.Debug("[Reporting] Report persisted",
			"metric", next.MetricName,
			"report_id", next.ReportID,
			"inserted", inserted)
		s.pending = s.pending[1:]
	}
}
