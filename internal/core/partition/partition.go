package partition

import (
	"github.com/cespare/xxhash/v2"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

// Count is the fixed number of logical partitions of the bucket archive.
// Never changes after initial deployment.
const Count = 256

// For returns the partition of one metric slice.
// Stable and deterministic: the same (metric, key) always maps to the same partition.
func For(metricName string, key metric.DimensionKey) int {
	d := xxhash.New()
	_, _ = d.WriteString(metricName)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(key.String())
	return int(d.Sum64() % Count)
}
