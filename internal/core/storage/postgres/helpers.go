package postgres

import (
	"fmt"

	"github.com/aevon-lab/telemetryd/internal/core/storage"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanBucketRow scans one archive row.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanBucketRow(row scanner) (storage.StoredBucket, error) {
	var b storage.StoredBucket
	err := row.Scan(
		&b.MetricName,
		&b.Dimension,
		&b.ReportID,
		&b.StartBucketNs,
		&b.EndBucketNs,
		&b.Value,
		&b.SampleCount,
	)
	if err != nil {
		return storage.StoredBucket{}, fmt.Errorf("failed to scan bucket row: %w", err)
	}
	return b, nil
}
