// Package condition keeps the state of named boolean conditions and notifies
// the metrics gated by them.
package condition

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
	"github.com/aevon-lab/telemetryd/internal/instrument"
)

// ErrUnknownCondition is returned for a name that was never registered.
var ErrUnknownCondition = errors.New("unknown condition")

// Listener is the part of a value metric that reacts to condition changes.
type Listener interface {
	OnConditionChanged(condition bool, eventTimeNs int64)
	OnSlicedConditionMayChange(eventTimeNs int64)
}

type state struct {
	// deliver orders transitions of one condition: it is held from the state
	// update until every listener has been notified, so listeners observe
	// transitions in the order the tracker applied them.
	deliver sync.Mutex

	name     string
	global   metric.ConditionState
	sliced   map[metric.DimensionKey]metric.ConditionState
	changeNs int64
}

// Tracker is the condition wizard shared by all producers.
type Tracker struct {
	mu        sync.RWMutex
	index     map[string]int
	states    []*state
	listeners map[int][]Listener
	metrics   *instrument.Metrics
	logger    *slog.Logger
}

func NewTracker(metrics *instrument.Metrics, logger *slog.Logger) *Tracker {
	if metrics == nil {
		metrics = instrument.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		index:     make(map[string]int),
		listeners: make(map[int][]Listener),
		metrics:   metrics,
		logger:    logger,
	}
}

// Register returns the index of name, creating the condition in the unknown
// state if needed.
func (t *Tracker) Register(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idx, ok := t.index[name]; ok {
		return idx
	}
	idx := len(t.states)
	t.index[name] = idx
	t.states = append(t.states, &state{
		name:   name,
		sliced: make(map[metric.DimensionKey]metric.ConditionState),
	})
	return idx
}

// Index returns the index of a registered condition.
func (t *Tracker) Index(name string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.index[name]
	return idx, ok
}

// Names returns the registered conditions, sorted.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.index))
	for name := range t.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe adds l to the listeners of the condition at idx.
func (t *Tracker) Subscribe(idx int, l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners[idx] = append(t.listeners[idx], l)
}

// Set changes the global state of name. Listeners are notified only on an
// actual transition, outside the tracker lock. Concurrent changes of the same
// condition are delivered one at a time, in the order they were applied.
func (t *Tracker) Set(name string, value bool, eventTimeNs int64) error {
	st, idx, err := t.lookup(name)
	if err != nil {
		return err
	}
	st.deliver.Lock()
	defer st.deliver.Unlock()

	t.mu.Lock()
	next := metric.StateOf(value)
	changed := st.global != next
	st.global = next
	st.changeNs = eventTimeNs
	listeners := append([]Listener(nil), t.listeners[idx]...)
	t.mu.Unlock()

	if !changed {
		return nil
	}
	t.metrics.ConditionChanges.WithLabelValues(name).Inc()
	t.logger.Info("[Condition] State changed", "condition", name, "value", value, "timestamp_ns", eventTimeNs)
	for _, l := range listeners {
		l.OnConditionChanged(value, eventTimeNs)
	}
	return nil
}

// SetSliced changes the state of one slice of name and asks listeners to
// re-evaluate their keys. Delivery is ordered like Set.
func (t *Tracker) SetSliced(name string, key metric.DimensionKey, value bool, eventTimeNs int64) error {
	st, idx, err := t.lookup(name)
	if err != nil {
		return err
	}
	st.deliver.Lock()
	defer st.deliver.Unlock()

	t.mu.Lock()
	next := metric.StateOf(value)
	changed := st.sliced[key] != next
	st.sliced[key] = next
	st.changeNs = eventTimeNs
	listeners := append([]Listener(nil), t.listeners[idx]...)
	t.mu.Unlock()

	if !changed {
		return nil
	}
	t.metrics.ConditionChanges.WithLabelValues(name).Inc()
	t.logger.Debug("[Condition] Slice changed", "condition", name, "key", key.String(), "value", value)
	for _, l := range listeners {
		l.OnSlicedConditionMayChange(eventTimeNs)
	}
	return nil
}

func (t *Tracker) lookup(name string) (*state, int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.index[name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownCondition, name)
	}
	return t.states[idx], idx, nil
}

// Query evaluates the condition at idx. With a condition key it returns the
// state of that slice; otherwise the global state.
func (t *Tracker) Query(idx int, key metric.ConditionKey) metric.ConditionState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if idx < 0 || idx >= len(t.states) {
		return metric.ConditionUnknown
	}
	st := t.states[idx]
	if len(key) == 0 {
		return st.global
	}
	slice, ok := key[st.name]
	if !ok {
		return st.global
	}
	return st.sliced[slice]
}

// Snapshot describes one condition for the HTTP API.
type Snapshot struct {
	Name         string            `json:"name"`
	State        string            `json:"state"`
	Slices       map[string]string `json:"slices,omitempty"`
	LastChangeNs int64             `json:"last_change_ns"`
}

// Snapshot returns the state of name.
func (t *Tracker) Snapshot(name string) (Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx, ok := t.index[name]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownCondition, name)
	}
	st := t.states[idx]
	snap := Snapshot{Name: name, State: st.global.String(), LastChangeNs: st.changeNs}
	if len(st.sliced) > 0 {
		snap.Slices = make(map[string]string, len(st.sliced))
		for k, v := range st.sliced {
			snap.Slices[k.String()] = v.String()
		}
	}
	return snap, nil
}
