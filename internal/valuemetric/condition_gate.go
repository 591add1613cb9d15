package valuemetric

import "github.com/aevon-lab/telemetryd/internal/core/metric"

// conditionGate decides whether a dimension key may accumulate and carry over.
type conditionGate struct {
	hasCondition     bool
	sliced           bool
	state            metric.ConditionState
	lastTransitionNs int64
	// keyStates is the last known sliced condition per dimension key.
	keyStates map[metric.DimensionKey]bool
}

func newConditionGate(def metric.Definition, initial metric.ConditionState) *conditionGate {
	return &conditionGate{
		hasCondition: def.HasCondition(),
		sliced:       def.Sliced(),
		state:        initial,
		keyStates:    make(map[metric.DimensionKey]bool),
	}
}

func (g *conditionGate) set(state metric.ConditionState, tsNs int64) {
	g.state = state
	g.lastTransitionNs = tsNs
}

func (g *conditionGate) openFor(key metric.DimensionKey) bool {
	if !g.hasCondition {
		return true
	}
	if g.sliced {
		return g.keyStates[key]
	}
	return g.state == metric.ConditionTrue
}
