package matcher

import (
	"log/slog"
	"sync"

	v1 "github.com/aevon-lab/telemetryd/internal/api/v1"
	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

// Consumer receives matched events.
type Consumer interface {
	OnMatchedEvent(matcherIndex int, key metric.DimensionKey, conditionKey metric.ConditionKey,
		conditionSatisfied bool, event *v1.LogEvent, scheduledPull bool)
}

// Wizard answers condition queries.
type Wizard interface {
	Query(conditionIndex int, key metric.ConditionKey) metric.ConditionState
}

type route struct {
	index          int
	def            metric.Definition
	extractor      *FieldExtractor
	consumer       Consumer
	conditionIndex int
}

// Dispatcher routes pushed events by tag.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string][]route
	count  int
	wizard Wizard
	logger *slog.Logger
}

func NewDispatcher(wizard Wizard, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		routes: make(map[string][]route),
		wizard: wizard,
		logger: logger,
	}
}

// Add registers consumer for def and returns its matcher index.
// conditionIndex is ignored for metrics without a condition.
func (d *Dispatcher) Add(def metric.Definition, consumer Consumer, conditionIndex int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.count
	d.count++
	d.routes[def.What] = append(d.routes[def.What], route{
		index:          idx,
		def:            def,
		extractor:      NewFieldExtractor(def),
		consumer:       consumer,
		conditionIndex: conditionIndex,
	})
	return idx
}

// Dispatch hands event to every pushed metric consuming its tag and returns
// how many matched. Pulled metrics only receive data through pulls.
func (d *Dispatcher) Dispatch(event *v1.LogEvent) int {
	d.mu.RLock()
	routes := d.routes[event.Tag]
	d.mu.RUnlock()

	matched := 0
	for _, r := range routes {
		if r.def.Pulled {
			continue
		}
		key, condKey := r.extractor.Extract(event)
		r.consumer.OnMatchedEvent(r.index, key, condKey, d.satisfied(r, condKey), event, false)
		matched++
	}
	if matched == 0 {
		d.logger.Debug("[Matcher] No metric for event", "tag", event.Tag)
	}
	return matched
}

func (d *Dispatcher) satisfied(r route, condKey metric.ConditionKey) bool {
	if !r.def.HasCondition() {
		return true
	}
	if d.wizard == nil {
		return false
	}
	return d.wizard.Query(r.conditionIndex, condKey) == metric.ConditionTrue
}

// Tags returns the tags with at least one route.
func (d *Dispatcher) Tags() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tags := make([]string, 0, len(d.routes))
	for tag := range d.routes {
		tags = append(tags, tag)
	}
	return tags
}
