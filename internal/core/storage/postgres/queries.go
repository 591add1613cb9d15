package postgres

// SQL queries for the value metric bucket archive.

const (
	// queryInsertBucket inserts one finalized bucket.
	// (metric_name, dimension, bucket_start_ns) identifies a bucket, so
	// re-saving a report after a partial failure inserts nothing twice.
	queryInsertBucket = `
		INSERT INTO value_metric_buckets (
			partition_id, metric_name, dimension, bucket_start_ns, bucket_end_ns,
			value, sample_count, report_id, stored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (metric_name, dimension, bucket_start_ns) DO NOTHING
	`

	// queryBucketsAllDimensions returns every dimension of a metric in a time range.
	queryBucketsAllDimensions = `
		SELECT
			metric_name, dimension, report_id,
			bucket_start_ns, bucket_end_ns, value, sample_count
		FROM value_metric_buckets
		WHERE metric_name = $1
		  AND bucket_start_ns >= $2
		  AND bucket_start_ns < $3
		ORDER BY dimension ASC, bucket_start_ns ASC
	`

	// queryBucketsForDimension is partition-scoped to one dimension key.
	queryBucketsForDimension = `
		SELECT
			metric_name, dimension, report_id,
			bucket_start_ns, bucket_end_ns, value, sample_count
		FROM value_metric_buckets
		WHERE partition_id = $1
		  AND metric_name = $2
		  AND dimension = $3
		  AND bucket_start_ns >= $4
		  AND bucket_start_ns < $5
		ORDER BY bucket_start_ns ASC
	`

	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'value_metric_buckets'
		)
	`
)
