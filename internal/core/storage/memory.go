package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

type bucketID struct {
	metric    string
	dimension string
	startNs   int64
}

// MemoryStore is an in-process ReportStore used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[bucketID]StoredBucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[bucketID]StoredBucket)}
}

func (s *MemoryStore) SaveReport(_ context.Context, report metric.Report) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, row := range bucketsOf(report) {
		id := bucketID{row.MetricName, row.Dimension, row.StartBucketNs}
		if _, exists := s.buckets[id]; exists {
			continue
		}
		s.buckets[id] = row
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) QueryBuckets(_ context.Context, q BucketQuery) ([]StoredBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoredBucket
	for id, row := range s.buckets {
		if id.metric != q.MetricName || id.startNs < q.StartNs || id.startNs >= q.EndNs {
			continue
		}
		if q.Dimension != nil && id.dimension != q.Dimension.String() {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dimension != out[j].Dimension {
			return out[i].Dimension < out[j].Dimension
		}
		return out[i].StartBucketNs < out[j].StartBucketNs
	})
	return out, nil
}
