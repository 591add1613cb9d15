package metric

import (
	"cmp"
	"math"
	"slices"
)

// Aggregator defines how the samples of one bucket reduce to a single value
// and how finalized bucket values combine across buckets.
// To add a new aggregation: implement this interface and register it in Aggregators.
type Aggregator interface {
	// Reduce folds the samples of one bucket, ordered by (timestamp, value).
	// samples is never empty.
	Reduce(samples []Sample) int64

	// Merge combines an earlier bucket value with a later one.
	Merge(earlier, later int64) int64
}

// Aggregators is the registry of supported aggregation types.
var Aggregators = map[string]Aggregator{
	AggSum:   sumAgg{},
	AggLast:  lastAgg{},
	AggMin:   minAgg{},
	AggMax:   maxAgg{},
	AggCount: countAgg{},
	AggDiff:  diffAgg{},
}

// ValidAggregation reports whether agg is a registered aggregation type.
func ValidAggregation(agg string) bool {
	_, ok := Aggregators[agg]
	return ok
}

// Reduce sorts a copy of samples and reduces it with the named aggregation.
// Unknown aggregations fall back to sum. Returns 0 for no samples.
func Reduce(agg string, samples []Sample) int64 {
	if len(samples) == 0 {
		return 0
	}
	a, ok := Aggregators[agg]
	if !ok {
		a = sumAgg{}
	}
	sorted := slices.Clone(samples)
	SortSamples(sorted)
	return a.Reduce(sorted)
}

// SortSamples orders samples by timestamp, breaking ties on value so that
// arrival order never changes a reduction.
func SortSamples(samples []Sample) {
	slices.SortFunc(samples, func(a, b Sample) int {
		if c := cmp.Compare(a.TimestampNs, b.TimestampNs); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
}

// AddSaturating returns a+b clamped to the int64 range.
func AddSaturating(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

// SubSaturating returns a-b clamped to the int64 range.
func SubSaturating(a, b int64) int64 {
	if b == math.MinInt64 {
		if a >= 0 {
			return math.MaxInt64
		}
		return a - b
	}
	return AddSaturating(a, -b)
}

// sumAgg saturates at the int64 bounds instead of wrapping.
type sumAgg struct{}

func (sumAgg) Reduce(s []Sample) int64 {
	var total int64
	for _, v := range s {
		total = AddSaturating(total, v.Value)
	}
	return total
}
func (sumAgg) Merge(a, b int64) int64 { return AddSaturating(a, b) }

// lastAgg keeps the most recent value.
type lastAgg struct{}

func (lastAgg) Reduce(s []Sample) int64 { return s[len(s)-1].Value }
func (lastAgg) Merge(_, b int64) int64  { return b }

type minAgg struct{}

func (minAgg) Reduce(s []Sample) int64 {
	m := s[0].Value
	for _, v := range s[1:] {
		m = min(m, v.Value)
	}
	return m
}
func (minAgg) Merge(a, b int64) int64 { return min(a, b) }

type maxAgg struct{}

func (maxAgg) Reduce(s []Sample) int64 {
	m := s[0].Value
	for _, v := range s[1:] {
		m = max(m, v.Value)
	}
	return m
}
func (maxAgg) Merge(a, b int64) int64 { return max(a, b) }

// countAgg counts observations. Values are ignored.
type countAgg struct{}

func (countAgg) Reduce(s []Sample) int64 { return int64(len(s)) }
func (countAgg) Merge(a, b int64) int64  { return AddSaturating(a, b) }

// diffAgg reports the growth of a monotonic counter within the bucket.
type diffAgg struct{}

func (diffAgg) Reduce(s []Sample) int64 { return SubSaturating(s[len(s)-1].Value, s[0].Value) }
func (diffAgg) Merge(a, b int64) int64  { return AddSaturating(a, b) }
