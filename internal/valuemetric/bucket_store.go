package valuemetric

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

// interval is the accumulation state of one dimension key within a bucket.
type interval struct {
	samples []metric.Sample
	// open is false once the condition turned false for this key in the
	// current epoch. Closed intervals are still archived but never carried over.
	open bool
}

// last returns the latest sample, ties broken on the larger value.
func (iv *interval) last() metric.Sample {
	best := iv.samples[0]
	for _, s := range iv.samples[1:] {
		if s.TimestampNs > best.TimestampNs || (s.TimestampNs == best.TimestampNs && s.Value > best.Value) {
			best = s
		}
	}
	return best
}

// bucketStore holds the current bucket, the staged next bucket and the archive.
// It is not safe for concurrent use; Producer guards it.
type bucketStore struct {
	startNs int64
	sizeNs  int64
	current map[metric.DimensionKey]*interval
	next    map[metric.DimensionKey]*interval
	past    map[metric.DimensionKey][]metric.BucketInfo
}

func newBucketStore(startNs, sizeNs int64) *bucketStore {
	return &bucketStore{
		startNs: startNs,
		sizeNs:  sizeNs,
		current: make(map[metric.DimensionKey]*interval),
		next:    make(map[metric.DimensionKey]*interval),
		past:    make(map[metric.DimensionKey][]metric.BucketInfo),
	}
}

// endNs saturates at MaxInt64 so a bucket never ends before it starts.
func (s *bucketStore) endNs() int64 {
	if s.startNs > math.MaxInt64-s.sizeNs {
		return math.MaxInt64
	}
	return s.startNs + s.sizeNs
}

func appendSample(m map[metric.DimensionKey]*interval, key metric.DimensionKey, sample metric.Sample) {
	iv, ok := m[key]
	if !ok {
		iv = &interval{}
		m[key] = iv
	}
	iv.samples = append(iv.samples, sample)
	iv.open = true
}

// record appends to the current bucket.
func (s *bucketStore) record(key metric.DimensionKey, sample metric.Sample) {
	appendSample(s.current, key, sample)
}

// stage appends to the next bucket.
func (s *bucketStore) stage(key metric.DimensionKey, sample metric.Sample) {
	appendSample(s.next, key, sample)
}

func (s *bucketStore) close(key metric.DimensionKey) {
	if iv, ok := s.current[key]; ok {
		iv.open = false
	}
}

func (s *bucketStore) closeAll() {
	for _, iv := range s.current {
		iv.open = false
	}
}

// archive reduces every non-empty current interval into a record spanning
// [startNs, endNs) and returns the number of records written.
func (s *bucketStore) archive(agg string, endNs int64) int {
	n := 0
	for key, iv := range s.current {
		if len(iv.samples) == 0 {
			continue
		}
		s.past[key] = append(s.past[key], metric.BucketInfo{
			StartBucketNs: s.startNs,
			EndBucketNs:   endNs,
			Value:         metric.Reduce(agg, iv.samples),
			SampleCount:   int64(len(iv.samples)),
		})
		n++
	}
	return n
}

// advance promotes the staged bucket to current and moves the bucket start.
func (s *bucketStore) advance(newStartNs int64) {
	s.current = s.next
	s.next = make(map[metric.DimensionKey]*interval)
	s.startNs = newStartNs
}

// takePast empties the archive and returns it sorted by dimension key.
func (s *bucketStore) takePast() []metric.ValueMetricData {
	keys := slices.SortedFunc(maps.Keys(s.past), func(a, b metric.DimensionKey) int {
		return cmp.Compare(a.String(), b.String())
	})
	data := make([]metric.ValueMetricData, 0, len(keys))
	for _, key := range keys {
		data = append(data, metric.ValueMetricData{Dimension: key, Buckets: s.past[key]})
	}
	s.past = make(map[metric.DimensionKey][]metric.BucketInfo)
	return data
}
