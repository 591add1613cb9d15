package storage

import (
	"context"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

// StoredBucket is one archived bucket record.
type StoredBucket struct {
	MetricName    string `json:"metric_name"`
	Dimension     string `json:"dimension"`
	ReportID      string `json:"report_id"`
	StartBucketNs int64  `json:"start_bucket_ns"`
	EndBucketNs   int64  `json:"end_bucket_ns"`
	Value         int64  `json:"value"`
	SampleCount   int64  `json:"sample_count"`
}

// BucketQuery selects archived buckets of one metric whose start lies in
// [StartNs, EndNs). A nil Dimension selects every dimension key.
type BucketQuery struct {
	MetricName string
	Dimension  *metric.DimensionKey
	StartNs    int64
	EndNs      int64
}

// ReportStore persists dumped reports and serves the archived buckets.
type ReportStore interface {
	// SaveReport stores every bucket of report and returns how many were new.
	// Saving the same report twice is a no-op.
	SaveReport(ctx context.Context, report metric.Report) (int, error)

	// QueryBuckets returns matching buckets ordered by dimension then start time.
	QueryBuckets(ctx context.Context, q BucketQuery) ([]StoredBucket, error)
}

// bucketsOf flattens a report into rows.
func bucketsOf(report metric.Report) []StoredBucket {
	rows := make([]StoredBucket, 0, report.BucketCount())
	for _, d := range report.Data {
		for _, b := range d.Buckets {
			rows = append(rows, StoredBucket{
				MetricName:    report.MetricName,
				Dimension:     d.Dimension.String(),
				ReportID:      report.ReportID,
				StartBucketNs: b.StartBucketNs,
				EndBucketNs:   b.EndBucketNs,
				Value:         b.Value,
				SampleCount:   b.SampleCount,
			})
		}
	}
	return rows
}
