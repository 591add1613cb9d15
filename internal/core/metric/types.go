package metric

// Aggregation types supported by value metrics.
const (
	AggSum   = "sum"
	AggLast  = "last"
	AggMin   = "min"
	AggMax   = "max"
	AggCount = "count"
	AggDiff  = "diff"
)

// ConditionState is the tri-state value of a condition.
type ConditionState int

const (
	ConditionUnknown ConditionState = iota
	ConditionFalse
	ConditionTrue
)

func (s ConditionState) String() string {
	switch s {
	case ConditionFalse:
		return "false"
	case ConditionTrue:
		return "true"
	default:
		return "unknown"
	}
}

// StateOf converts a boolean into a ConditionState.
func StateOf(v bool) ConditionState {
	if v {
		return ConditionTrue
	}
	return ConditionFalse
}

// ConditionKey maps a condition name to the dimension slice of that
// condition an event links to. Empty for unsliced conditions.
type ConditionKey map[string]DimensionKey

// Sample is one (timestamp, value) observation.
type Sample struct {
	TimestampNs int64
	Value       int64
}

// BucketInfo is one finalized bucket for a dimension key.
type BucketInfo struct {
	StartBucketNs int64 `json:"start_bucket_ns"`
	EndBucketNs   int64 `json:"end_bucket_ns"`
	Value         int64 `json:"value"`
	SampleCount   int64 `json:"sample_count"`
}

// ValueMetricData holds the finalized buckets of one dimension key, in time order.
type ValueMetricData struct {
	Dimension DimensionKey `json:"dimension"`
	Buckets   []BucketInfo `json:"buckets"`
}

// Report is the dumped archive of one metric.
// Data is sorted by dimension key.
type Report struct {
	MetricName    string            `json:"metric_name"`
	ReportID      string            `json:"report_id"`
	StartReportNs int64             `json:"start_report_ns"`
	EndReportNs   int64             `json:"end_report_ns"`
	Data          []ValueMetricData `json:"data"`
}

// Empty reports whether the report carries no buckets.
func (r Report) Empty() bool { return r.BucketCount() == 0 }

// BucketCount returns the total number of bucket records in the report.
func (r Report) BucketCount() int {
	n := 0
	for _, d := range r.Data {
		n += len(d.Buckets)
	}
	return n
}
