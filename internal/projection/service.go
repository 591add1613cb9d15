// Package projection serves archived value metric buckets.
package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
	"github.com/aevon-lab/telemetryd/internal/core/storage"
)

var (
	// ErrInvalidQuery marks request validation errors that should return HTTP 400.
	ErrInvalidQuery = errors.New("invalid bucket query")

	// ErrUnknownMetric marks queries for a metric with no definition.
	ErrUnknownMetric = errors.New("unknown metric")
)

// Service implements the archive read path.
type Service struct {
	store       storage.ReportStore
	definitions map[string]metric.Definition
}

func NewService(store storage.ReportStore, defs []metric.Definition) *Service {
	byName := make(map[string]metric.Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}
	return &Service{store: store, definitions: byName}
}

// QueryBuckets reads the archive and shapes it to the requested granularity.
func (s *Service) QueryBuckets(ctx context.Context, req BucketQueryRequest) (*BucketQueryResponse, error) {
	req, dim, err := normalizeAndValidate(req)
	if err != nil {
		return nil, err
	}

	def, ok := s.definitions[req.Metric]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, req.Metric)
	}

	rows, err := s.store.QueryBuckets(ctx, storage.BucketQuery{
		MetricName: req.Metric,
		Dimension:  dim,
		StartNs:    req.Start.UnixNano(),
		EndNs:      req.End.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}

	merge := metric.Aggregators[def.Aggregation]
	if merge == nil {
		merge = metric.Aggregators[metric.AggSum]
	}

	series := groupByDimension(rows)
	for i := range series {
		series[i].Values = rollupForGranularity(series[i].Values, req.Granularity, merge,
			req.Start.UnixNano(), req.End.UnixNano())
	}

	return &BucketQueryResponse{
		Metric:      req.Metric,
		Aggregation: def.Aggregation,
		Start:       req.Start,
		End:         req.End,
		Granularity: req.Granularity,
		Series:      series,
	}, nil
}

func normalizeAndValidate(req BucketQueryRequest) (BucketQueryRequest, *metric.DimensionKey, error) {
	if req.Granularity == "" {
		req.Granularity = GranularityRaw
	}
	if req.Metric == "" {
		return req, nil, invalidQueryf("metric is required")
	}
	if !req.End.After(req.Start) {
		return req, nil, invalidQueryf("end time must be after start time")
	}

	switch req.Granularity {
	case GranularityRaw, GranularityTotal, GranularityHour, GranularityDay:
	default:
		return req, nil, invalidQueryf("invalid granularity: %s (must be raw, total, 1h, or 1d)", req.Granularity)
	}

	if req.Dimension == "" {
		return req, nil, nil
	}
	key, err := metric.ParseDimensionKey(req.Dimension)
	if err != nil {
		return req, nil, invalidQueryf("invalid dimension: %v", err)
	}
	return req, &key, nil
}

// groupByDimension relies on rows being ordered by dimension then start.
func groupByDimension(rows []storage.StoredBucket) []Series {
	var out []Series
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].Dimension != r.Dimension {
			out = append(out, Series{Dimension: r.Dimension})
		}
		last := &out[len(out)-1]
		last.Values = append(last.Values, BucketValue{
			StartNs:     r.StartBucketNs,
			EndNs:       r.EndBucketNs,
			Value:       r.Value,
			SampleCount: r.SampleCount,
		})
	}
	return out
}

func invalidQueryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
