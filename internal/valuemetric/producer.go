// Package valuemetric aggregates integer observations per dimension key into
// fixed-duration buckets, gated by a boolean condition.
package valuemetric

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	v1 "github.com/aevon-lab/telemetryd/internal/api/v1"
	"github.com/aevon-lab/telemetryd/internal/core/metric"
	"github.com/aevon-lab/telemetryd/internal/instrument"
)

// MetricProducer is the report-producing side of a value metric.
type MetricProducer interface {
	Name() string
	Definition() metric.Definition
	OnMatchedEvent(matcherIndex int, key metric.DimensionKey, conditionKey metric.ConditionKey,
		conditionSatisfied bool, event *v1.LogEvent, scheduledPull bool)
	OnConditionChanged(condition bool, eventTimeNs int64)
	OnSlicedConditionMayChange(eventTimeNs int64)
	FlushIfNeeded(eventTimeNs int64)
	OnDumpReport() metric.Report
	Finish()
	ByteSize() int
	NotifyAppUpgrade(apk string, uid int, version int)
	NotifyAppRemoved(apk string, uid int)
}

// PullDataReceiver accepts batches from scheduled pulls.
type PullDataReceiver interface {
	OnDataPulled(data []*v1.LogEvent)
}

// ConditionWizard evaluates conditions on behalf of producers.
// It is shared between producers and must not call back into them synchronously.
type ConditionWizard interface {
	Query(conditionIndex int, key metric.ConditionKey) metric.ConditionState
}

// DimensionExtractor derives the dimension and condition keys of a pulled event.
type DimensionExtractor interface {
	Extract(event *v1.LogEvent) (metric.DimensionKey, metric.ConditionKey)
}

var (
	_ MetricProducer   = (*Producer)(nil)
	_ PullDataReceiver = (*Producer)(nil)
)

// NoopLifecycle supplies the accounting and package lifecycle hooks, which
// value metrics do not act on.
type NoopLifecycle struct{}

func (NoopLifecycle) ByteSize() int                           { return 0 }
func (NoopLifecycle) NotifyAppUpgrade(_ string, _ int, _ int) {}
func (NoopLifecycle) NotifyAppRemoved(_ string, _ int)        {}

// DefaultMaxFutureSkew bounds how far past the clock an event or condition
// timestamp may lie.
const DefaultMaxFutureSkew = 24 * time.Hour

// Option configures a Producer.
type Option func(*Producer)

// WithClock sets the clock read at dump and finish time.
func WithClock(c quartz.Clock) Option {
	return func(p *Producer) { p.clock = c }
}

// WithLogger sets the base logger; the metric name is added to it.
func WithLogger(l *slog.Logger) Option {
	return func(p *Producer) { p.logger = l }
}

// WithMetrics sets the instrumentation collectors.
func WithMetrics(m *instrument.Metrics) Option {
	return func(p *Producer) { p.metrics = m }
}

// WithMaxFutureSkew sets how far past the clock a timestamp may lie before it
// is dropped. Non-positive values keep the default.
func WithMaxFutureSkew(d time.Duration) Option {
	return func(p *Producer) {
		if d > 0 {
			p.maxFutureSkew = d
		}
	}
}

// WithStartTime aligns the first bucket on startNs instead of the clock.
func WithStartTime(startNs int64) Option {
	return func(p *Producer) { p.startNs, p.hasStart = startNs, true }
}

// WithConditionWizard wires the condition collaborator and the index of the
// metric's condition in it.
func WithConditionWizard(w ConditionWizard, conditionIndex int) Option {
	return func(p *Producer) { p.wizard, p.conditionIndex = w, conditionIndex }
}

// WithInitialCondition sets the condition state before the first transition.
func WithInitialCondition(s metric.ConditionState) Option {
	return func(p *Producer) { p.initial, p.hasInitial = s, true }
}

// WithExtractor sets the dimension extractor used for pulled batches.
func WithExtractor(e DimensionExtractor) Option {
	return func(p *Producer) { p.extractor = e }
}

// Producer is a value metric.
// All state lives behind mu; collaborators are only called without it.
type Producer struct {
	NoopLifecycle

	def            metric.Definition
	clock          quartz.Clock
	logger         *slog.Logger
	metrics        *instrument.Metrics
	wizard         ConditionWizard
	conditionIndex int
	extractor      DimensionExtractor
	maxFutureSkew  time.Duration

	startNs    int64
	hasStart   bool
	initial    metric.ConditionState
	hasInitial bool

	mu            sync.Mutex
	store         *bucketStore
	gate          *conditionGate
	conditionKeys map[metric.DimensionKey]metric.ConditionKey
	// slicedSeq numbers sliced re-evaluations; slicedApplied is the newest
	// one whose wizard answers were applied.
	slicedSeq     uint64
	slicedApplied uint64
	lastReportNs  int64
	finished      bool
}

func NewProducer(def metric.Definition, opts ...Option) *Producer {
	p := &Producer{
		def:            def,
		clock:          quartz.NewReal(),
		logger:         slog.Default(),
		conditionIndex: -1,
		maxFutureSkew:  DefaultMaxFutureSkew,
		conditionKeys:  make(map[metric.DimensionKey]metric.ConditionKey),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("metric", def.Name)
	if p.metrics == nil {
		p.metrics = instrument.New(nil)
	}
	if !p.hasStart {
		p.startNs = p.clock.Now().UnixNano()
	}
	if !p.hasInitial {
		p.initial = metric.ConditionUnknown
		if def.HasCondition() && !def.Sliced() && p.wizard != nil {
			p.initial = p.wizard.Query(p.conditionIndex, nil)
		}
	}

	p.store = newBucketStore(p.startNs, int64(def.BucketSize))
	p.gate = newConditionGate(def, p.initial)
	p.lastReportNs = p.startNs
	return p
}

func (p *Producer) Name() string { return p.def.Name }

func (p *Producer) Definition() metric.Definition { return p.def }

// OnMatchedEvent offers one classified event to the metric.
// Push events first close any elapsed bucket at their own timestamp; scheduled
// pull events close it after they are recorded.
func (p *Producer) OnMatchedEvent(_ int, key metric.DimensionKey, conditionKey metric.ConditionKey,
	conditionSatisfied bool, event *v1.LogEvent, scheduledPull bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		p.rejectAfterFinish("matched event")
		return
	}
	p.recordLocked(key, conditionKey, conditionSatisfied, event, scheduledPull)
	if scheduledPull {
		p.flushIfNeededLocked(event.TimestampNs, true)
	}
}

// OnDataPulled records one scheduled pull batch and closes the bucket once at
// the batch time. The result does not depend on the order of the batch.
func (p *Producer) OnDataPulled(data []*v1.LogEvent) {
	if len(data) == 0 {
		return
	}

	type extracted struct {
		key       metric.DimensionKey
		condKey   metric.ConditionKey
		satisfied bool
	}
	batch := make([]extracted, len(data))
	for i, event := range data {
		var e extracted
		if p.extractor != nil {
			e.key, e.condKey = p.extractor.Extract(event)
		}
		if p.gate.sliced && p.wizard != nil {
			e.satisfied = p.wizard.Query(p.conditionIndex, e.condKey) == metric.ConditionTrue
		}
		batch[i] = e
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		p.rejectAfterFinish("pulled batch")
		return
	}

	var batchNs int64
	for i, event := range data {
		e := batch[i]
		if !p.gate.sliced {
			e.satisfied = p.gate.openFor(e.key)
		}
		p.recordLocked(e.key, e.condKey, e.satisfied, event, true)
		batchNs = max(batchNs, event.TimestampNs)
	}
	p.flushIfNeededLocked(batchNs, true)
}

func (p *Producer) recordLocked(key metric.DimensionKey, conditionKey metric.ConditionKey,
	conditionSatisfied bool, event *v1.LogEvent, scheduledPull bool) {
	ts := event.TimestampNs
	if p.tooFarAhead(ts) {
		p.count(instrument.OutcomeFuture)
		p.logger.Warn("[ValueMetric] Dropping observation too far in the future",
			"key", key.String(), "timestamp_ns", ts, "max_skew", p.maxFutureSkew)
		return
	}
	if !scheduledPull {
		p.flushIfNeededLocked(ts, false)
	}
	if ts < p.store.startNs {
		p.count(instrument.OutcomeLate)
		p.logger.Debug("[ValueMetric] Dropping late observation",
			"key", key.String(), "timestamp_ns", ts, "bucket_start_ns", p.store.startNs)
		return
	}

	if p.gate.sliced {
		if len(conditionKey) > 0 {
			p.conditionKeys[key] = conditionKey
		}
		p.gate.keyStates[key] = conditionSatisfied
	}
	if !conditionSatisfied {
		p.count(instrument.OutcomeConditionFalse)
		return
	}

	value, err := p.valueOf(event)
	if err != nil {
		p.count(instrument.OutcomeInvalidValue)
		p.logger.Debug("[ValueMetric] Skipping observation", "key", key.String(), "error", err)
		return
	}
	sample := metric.Sample{TimestampNs: ts, Value: value}

	// A scheduled pull at or past the bucket end belongs to the next bucket.
	if scheduledPull && ts >= p.store.endNs() {
		if !p.gate.openFor(key) {
			p.count(instrument.OutcomeBoundaryDrop)
			return
		}
		p.store.stage(key, sample)
		p.count(instrument.OutcomeAccepted)
		return
	}

	p.store.record(key, sample)
	p.count(instrument.OutcomeAccepted)
}

func (p *Producer) valueOf(event *v1.LogEvent) (int64, error) {
	if p.def.ValueField == "" {
		return 1, nil
	}
	return metric.ExtractValue(event.Fields, p.def.ValueField)
}

// OnConditionChanged records a transition of an unsliced condition.
// true→false closes every open interval for the epoch without flushing it.
func (p *Producer) OnConditionChanged(condition bool, eventTimeNs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		p.rejectAfterFinish("condition change")
		return
	}
	p.flushIfNeededLocked(eventTimeNs, false)

	prev := p.gate.state
	p.gate.set(metric.StateOf(condition), eventTimeNs)
	if prev == metric.ConditionTrue && !condition {
		p.store.closeAll()
	}
	p.logger.Debug("[ValueMetric] Condition changed",
		"from", prev.String(), "to", p.gate.state.String(), "timestamp_ns", eventTimeNs)
}

// OnSlicedConditionMayChange re-evaluates the sliced condition of every known
// dimension key. Keys whose condition became false are closed. The wizard is
// queried without the lock; answers older than ones already applied are
// discarded.
func (p *Producer) OnSlicedConditionMayChange(eventTimeNs int64) {
	p.mu.Lock()
	if p.finished {
		p.rejectAfterFinish("sliced condition change")
		p.mu.Unlock()
		return
	}
	p.flushIfNeededLocked(eventTimeNs, false)
	p.slicedSeq++
	seq := p.slicedSeq
	keys := make(map[metric.DimensionKey]metric.ConditionKey, len(p.conditionKeys))
	for k, ck := range p.conditionKeys {
		keys[k] = ck
	}
	p.mu.Unlock()

	if p.wizard == nil || !p.gate.sliced {
		return
	}
	states := make(map[metric.DimensionKey]bool, len(keys))
	for k, ck := range keys {
		states[k] = p.wizard.Query(p.conditionIndex, ck) == metric.ConditionTrue
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	if seq < p.slicedApplied {
		p.logger.Debug("[ValueMetric] Discarding stale sliced condition evaluation",
			"seq", seq, "applied", p.slicedApplied)
		return
	}
	p.slicedApplied = seq
	for k, open := range states {
		if p.gate.keyStates[k] && !open {
			p.store.close(k)
		}
		p.gate.keyStates[k] = open
	}
	p.gate.lastTransitionNs = eventTimeNs
}

// FlushIfNeeded closes the current bucket if eventTimeNs is past its end.
// It is idempotent for a given timestamp.
func (p *Producer) FlushIfNeeded(eventTimeNs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return
	}
	p.flushIfNeededLocked(eventTimeNs, false)
}

func (p *Producer) flushIfNeededLocked(eventTimeNs int64, pulled bool) {
	if eventTimeNs < p.store.endNs() || p.tooFarAhead(eventTimeNs) {
		return
	}

	archived := p.store.archive(p.def.Aggregation, p.store.endNs())
	newStart := metric.BucketStartFor(eventTimeNs, p.store.startNs, p.store.sizeNs)

	carried := 0
	if pulled {
		for key, iv := range p.store.current {
			if !iv.open || len(iv.samples) == 0 || !p.gate.openFor(key) {
				continue
			}
			if _, staged := p.store.next[key]; staged {
				continue
			}
			last := iv.last()
			p.store.stage(key, metric.Sample{TimestampNs: newStart, Value: last.Value})
			carried++
		}
	} else {
		clear(p.store.next)
	}
	p.store.advance(newStart)

	p.metrics.BucketsFlushed.WithLabelValues(p.def.Name).Add(float64(archived))
	p.metrics.CarryOvers.WithLabelValues(p.def.Name).Add(float64(carried))
	p.logger.Debug("[ValueMetric] Bucket flushed",
		"archived", archived, "carried_over", carried, "bucket_start_ns", newStart)
}

// OnDumpReport closes any elapsed bucket at the current time and hands the
// whole archive over. The archive is empty afterwards.
func (p *Producer) OnDumpReport() metric.Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	nowNs := p.clock.Now().UnixNano()
	if !p.finished {
		p.flushIfNeededLocked(nowNs, false)
	}

	report := metric.Report{
		MetricName:    p.def.Name,
		ReportID:      uuid.NewString(),
		StartReportNs: p.lastReportNs,
		EndReportNs:   nowNs,
		Data:          p.store.takePast(),
	}
	p.lastReportNs = nowNs
	p.metrics.Dumps.WithLabelValues(p.def.Name).Inc()
	return report
}

// Finish archives the partial bucket and stops accepting observations.
func (p *Producer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return
	}
	nowNs := p.clock.Now().UnixNano()
	p.flushIfNeededLocked(nowNs, false)

	archived := p.store.archive(p.def.Aggregation, max(nowNs, p.store.startNs))
	clear(p.store.current)
	clear(p.store.next)
	p.finished = true

	p.metrics.BucketsFlushed.WithLabelValues(p.def.Name).Add(float64(archived))
	p.logger.Info("[ValueMetric] Finished", "partial_buckets", archived)
}

// tooFarAhead reports whether tsNs lies more than the allowed skew past the
// clock. Such a timestamp would move the bucket beyond every later event.
func (p *Producer) tooFarAhead(tsNs int64) bool {
	nowNs := p.clock.Now().UnixNano()
	skew := int64(p.maxFutureSkew)
	if nowNs > math.MaxInt64-skew {
		return false
	}
	return tsNs > nowNs+skew
}

func (p *Producer) rejectAfterFinish(what string) {
	p.count(instrument.OutcomeAfterFinish)
	p.logger.Warn("[ValueMetric] Ignoring input after finish", "input", what)
}

func (p *Producer) count(outcome string) {
	p.metrics.Observations.WithLabelValues(p.def.Name, outcome).Inc()
}
