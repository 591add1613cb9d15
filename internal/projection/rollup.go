package projection

import (
	"time"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

func rollupForGranularity(values []BucketValue, granularity string, agg metric.Aggregator, startNs, endNs int64) []BucketValue {
	switch granularity {
	case GranularityTotal:
		return rollupTotal(values, agg, startNs, endNs)
	case GranularityHour:
		return rollupWindows(values, agg, int64(time.Hour), startNs, endNs)
	case GranularityDay:
		return rollupWindows(values, agg, int64(24*time.Hour), startNs, endNs)
	default:
		return values
	}
}

// rollupTotal merges every bucket of the range into a single value, oldest first.
func rollupTotal(values []BucketValue, agg metric.Aggregator, startNs, endNs int64) []BucketValue {
	total := BucketValue{StartNs: startNs, EndNs: endNs}
	for i, v := range values {
		if i == 0 {
			total.Value = v.Value
		} else {
			total.Value = agg.Merge(total.Value, v.Value)
		}
		total.SampleCount += v.SampleCount
	}
	return []BucketValue{total}
}

// rollupWindows groups buckets into UTC-aligned windows covering [startNs, endNs).
// Windows without buckets are returned with a zero value and no samples.
func rollupWindows(values []BucketValue, agg metric.Aggregator, windowNs, startNs, endNs int64) []BucketValue {
	first := floorTo(startNs, windowNs)
	last := floorTo(endNs, windowNs)
	if last < endNs {
		last += windowNs
	}

	results := make([]BucketValue, 0, (last-first)/windowNs)
	for ws := first; ws < last; ws += windowNs {
		results = append(results, BucketValue{StartNs: ws, EndNs: ws + windowNs})
	}

	seen := make([]bool, len(results))
	for _, v := range values {
		idx := (floorTo(v.StartNs, windowNs) - first) / windowNs
		if idx < 0 || idx >= int64(len(results)) {
			continue
		}
		w := &results[idx]
		if !seen[idx] {
			w.Value = v.Value
			seen[idx] = true
		} else {
			w.Value = agg.Merge(w.Value, v.Value)
		}
		w.SampleCount += v.SampleCount
	}
	return results
}

// floorTo rounds ns down to a multiple of window, also for negative ns.
func floorTo(ns, window int64) int64 {
	q := ns / window
	if ns%window < 0 {
		q--
	}
	return q * window
}
