// Package pull collects snapshot data on a schedule and delivers it to the
// metrics that consume it.
package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"

	v1 "github.com/aevon-lab/telemetryd/internal/api/v1"
	"github.com/aevon-lab/telemetryd/internal/instrument"
)

// ErrNoPuller is returned when a tag has no registered puller.
var ErrNoPuller = errors.New("no puller registered")

// Puller collects one batch for tag. All events of a batch carry timestampNs.
type Puller interface {
	Pull(ctx context.Context, tag string, timestampNs int64) ([]*v1.LogEvent, error)
}

// PullerFunc adapts a function to Puller.
type PullerFunc func(ctx context.Context, tag string, timestampNs int64) ([]*v1.LogEvent, error)

func (f PullerFunc) Pull(ctx context.Context, tag string, timestampNs int64) ([]*v1.LogEvent, error) {
	return f(ctx, tag, timestampNs)
}

// Receiver accepts pulled batches.
type Receiver interface {
	OnDataPulled(data []*v1.LogEvent)
}

// Manager owns the pull schedule.
type Manager struct {
	interval time.Duration
	timeout  time.Duration
	clock    quartz.Clock
	metrics  *instrument.Metrics
	logger   *slog.Logger

	mu        sync.RWMutex
	pullers   map[string]Puller
	receivers map[string][]Receiver
}

func NewManager(interval time.Duration, clock quartz.Clock, metrics *instrument.Metrics, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if metrics == nil {
		metrics = instrument.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		interval:  interval,
		timeout:   interval,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		pullers:   make(map[string]Puller),
		receivers: make(map[string][]Receiver),
	}
}

func (m *Manager) RegisterPuller(tag string, p Puller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pullers[tag] = p
}

// RegisterReceiver subscribes r to the batches of tag.
func (m *Manager) RegisterReceiver(tag string, r Receiver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pullers[tag]; !ok {
		return fmt.Errorf("%w for tag %q", ErrNoPuller, tag)
	}
	m.receivers[tag] = append(m.receivers[tag], r)
	return nil
}

// Tags returns the tags that have receivers, sorted.
func (m *Manager) Tags() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tags := make([]string, 0, len(m.receivers))
	for tag := range m.receivers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Pull collects one batch for tag and delivers it. Returns the batch size.
func (m *Manager) Pull(ctx context.Context, tag string) (int, error) {
	m.mu.RLock()
	p, ok := m.pullers[tag]
	receivers := append([]Receiver(nil), m.receivers[tag]...)
	m.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w for tag %q", ErrNoPuller, tag)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := m.clock.Now()
	batch, err := p.Pull(ctx, tag, start.UnixNano())
	m.metrics.PullDuration.WithLabelValues(tag).Observe(m.clock.Since(start).Seconds())
	if err != nil {
		m.metrics.Pulls.WithLabelValues(tag, "error").Inc()
		return 0, fmt.Errorf("pulling %q: %w", tag, err)
	}
	m.metrics.Pulls.WithLabelValues(tag, "success").Inc()

	for _, r := range receivers {
		r.OnDataPulled(batch)
	}
	return len(batch), nil
}

// PullAll pulls every tag with receivers. Failures are logged, never fatal.
func (m *Manager) PullAll(ctx context.Context) {
	for _, tag := range m.Tags() {
		n, err := m.Pull(ctx, tag)
		if err != nil {
			m.logger.Warn("[Pull] Pull failed", "tag", tag, "error", err)
			continue
		}
		m.logger.Debug("[Pull] Batch delivered", "tag", tag, "events", n)
	}
}

// Run pulls on every tick until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m.interval <= 0 {
		return fmt.Errorf("pull interval must be positive, got %s", m.interval)
	}
	m.logger.Info("[Pull] Started", "interval", m.interval, "tags", m.Tags())

	w := m.clock.TickerFunc(ctx, m.interval, func() error {
		m.PullAll(ctx)
		return nil
	}, "pull")
	err := w.Wait()

	m.logger.Info("[Pull] Stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
