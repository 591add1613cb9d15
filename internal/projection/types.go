package projection

import (
	"time"
)

// Granularities accepted by the bucket query.
const (
	GranularityRaw   = "raw"
	GranularityTotal = "total"
	GranularityHour  = "1h"
	GranularityDay   = "1d"
)

// BucketQueryRequest selects archived buckets of one metric.
// Dimension is the canonical key form ("uid=1000"); empty selects all keys.
type BucketQueryRequest struct {
	Metric      string
	Dimension   string
	Start       time.Time
	End         time.Time
	Granularity string // default: "raw"
}

// BucketValue is one data point of a series.
type BucketValue struct {
	StartNs     int64 `json:"start_ns"`
	EndNs       int64 `json:"end_ns"`
	Value       int64 `json:"value"`
	SampleCount int64 `json:"sample_count"`
}

// Series holds the data points of one dimension key.
type Series struct {
	Dimension string        `json:"dimension"`
	Values    []BucketValue `json:"values"`
}

// BucketQueryResponse is the response of a bucket query.
type BucketQueryResponse struct {
	Metric      string    `json:"metric"`
	Aggregation string    `json:"aggregation"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Granularity string    `json:"granularity"`
	Series      []Series  `json:"series"`
}
