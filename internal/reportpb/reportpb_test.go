package reportpb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

var keyComparer = cmp.Comparer(func(a, b metric.DimensionKey) bool { return a == b })

func TestMarshal_PreservesReport(t *testing.T) {
	report := metric.Report{
		MetricName:    "screen_brightness",
		ReportID:      "7f1c2d4e-0000-4000-8000-000000000001",
		StartReportNs: 1_000,
		EndReportNs:   121_000_000_000,
		Data: []metric.ValueMetricData{
			{
				Dimension: metric.DefaultDimensionKey,
				Buckets:   []metric.BucketInfo{{StartBucketNs: 0, EndBucketNs: 60, Value: -5, SampleCount: 2}},
			},
			{
				Dimension: metric.NewDimensionKey(
					metric.DimensionField{Name: "uid", Value: "1000"},
					metric.DimensionField{Name: "tag", Value: ""},
				),
				Buckets: []metric.BucketInfo{
					{StartBucketNs: 0, EndBucketNs: 60, Value: 9, SampleCount: 1},
					{StartBucketNs: 60, EndBucketNs: 120, Value: 0, SampleCount: 1},
				},
			},
		},
	}

	decoded, err := Unmarshal(Marshal(report))
	require.NoError(t, err)
	if diff := cmp.Diff(report, decoded, keyComparer); diff != "" {
		t.Fatalf("decoded report mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshal_EmptyReport(t *testing.T) {
	require.Empty(t, Marshal(metric.Report{}))

	decoded, err := Unmarshal(nil)
	require.NoError(t, err)
	require.True(t, decoded.Empty())
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	b := Marshal(metric.Report{MetricName: "m"})
	b = protowire.AppendTag(b, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 7)
	b = protowire.AppendTag(b, 98, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)

	decoded, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, "m", decoded.MetricName)
}

func TestUnmarshal_Truncated(t *testing.T) {
	b := Marshal(metric.Report{MetricName: "screen_brightness"})
	_, err := Unmarshal(b[:len(b)-3])
	require.Error(t, err)
}
