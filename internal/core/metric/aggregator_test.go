package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregators_ReduceAndMerge(t *testing.T) {
	samples := []Sample{
		{TimestampNs: 30, Value: 7},
		{TimestampNs: 10, Value: 4},
		{TimestampNs: 20, Value: 9},
	}

	tests := []struct {
		name       string
		agg        string
		wantReduce int64
		earlier    int64
		later      int64
		wantMerge  int64
	}{
		{name: "sum", agg: AggSum, wantReduce: 20, earlier: 3, later: 4, wantMerge: 7},
		{name: "last uses latest timestamp", agg: AggLast, wantReduce: 7, earlier: 3, later: 4, wantMerge: 4},
		{name: "min", agg: AggMin, wantReduce: 4, earlier: 3, later: 4, wantMerge: 3},
		{name: "max", agg: AggMax, wantReduce: 9, earlier: 3, later: 4, wantMerge: 4},
		{name: "count ignores values", agg: AggCount, wantReduce: 3, earlier: 3, later: 4, wantMerge: 7},
		{name: "diff is last minus first", agg: AggDiff, wantReduce: 3, earlier: 3, later: 4, wantMerge: 7},
		{name: "unknown falls back to sum", agg: "median", wantReduce: 20},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.wantReduce, Reduce(tc.agg, samples))
			if a, ok := Aggregators[tc.agg]; ok {
				require.Equal(t, tc.wantMerge, a.Merge(tc.earlier, tc.later))
			}
		})
	}
}

func TestReduce_DoesNotReorderInput(t *testing.T) {
	samples := []Sample{{TimestampNs: 2, Value: 1}, {TimestampNs: 1, Value: 2}}
	Reduce(AggLast, samples)
	require.Equal(t, int64(2), samples[0].TimestampNs)
}

func TestReduce_TiesBreakOnValue(t *testing.T) {
	a := []Sample{{TimestampNs: 5, Value: 1}, {TimestampNs: 5, Value: 8}}
	b := []Sample{{TimestampNs: 5, Value: 8}, {TimestampNs: 5, Value: 1}}

	require.Equal(t, Reduce(AggLast, a), Reduce(AggLast, b))
	require.Equal(t, int64(8), Reduce(AggLast, a))
}

func TestReduce_Empty(t *testing.T) {
	require.Zero(t, Reduce(AggMax, nil))
}

func TestValidAggregation(t *testing.T) {
	require.True(t, ValidAggregation(AggDiff))
	require.False(t, ValidAggregation("avg"))
}

func TestAggregators_SaturateInsteadOfWrapping(t *testing.T) {
	big := []Sample{{TimestampNs: 1, Value: math.MaxInt64 - 1}, {TimestampNs: 2, Value: 5}}
	negative := []Sample{{TimestampNs: 1, Value: math.MinInt64 + 1}, {TimestampNs: 2, Value: -5}}
	falling := []Sample{{TimestampNs: 1, Value: math.MaxInt64}, {TimestampNs: 2, Value: math.MinInt64}}

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{name: "sum overflow", got: Reduce(AggSum, big), want: math.MaxInt64},
		{name: "sum underflow", got: Reduce(AggSum, negative), want: math.MinInt64},
		{name: "sum merge", got: Aggregators[AggSum].Merge(math.MaxInt64, 1), want: math.MaxInt64},
		{name: "count merge", got: Aggregators[AggCount].Merge(math.MaxInt64, math.MaxInt64), want: math.MaxInt64},
		{name: "diff of full range", got: Reduce(AggDiff, falling), want: math.MinInt64},
		{name: "diff merge", got: Aggregators[AggDiff].Merge(math.MinInt64, -1), want: math.MinInt64},
		{name: "sub min operand", got: SubSaturating(0, math.MinInt64), want: math.MaxInt64},
		{name: "sub min operand from negative", got: SubSaturating(-1, math.MinInt64), want: math.MaxInt64},
		{name: "in range is exact", got: AddSaturating(-7, 3), want: -4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.got)
		})
	}
}
