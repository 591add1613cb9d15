package partition

import (
	"strconv"
	"testing"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

func uid(v string) metric.DimensionKey {
	return metric.NewDimensionKey(metric.DimensionField{Name: "uid", Value: v})
}

func TestFor_Determinism(t *testing.T) {
	// Same input must always produce the same partition.
	id := For("wakelocks", uid("1000"))
	for i := 0; i < 100; i++ {
		if got := For("wakelocks", uid("1000")); got != id {
			t.Fatalf("For(wakelocks, uid=1000) = %d on iteration %d, want %d", got, i, id)
		}
	}
}

func TestFor_Range(t *testing.T) {
	// All outputs must be in [0, Count).
	keys := []metric.DimensionKey{metric.DefaultDimensionKey, uid(""), uid("1"), uid("very-long-package-name-that-should-still-hash")}
	for _, k := range keys {
		p := For("m", k)
		if p < 0 || p >= Count {
			t.Errorf("For(m, %q) = %d, want [0, %d)", k.String(), p, Count)
		}
	}
}

func TestFor_Distribution(t *testing.T) {
	// 1 000 keys over 256 partitions should hit far more than 100 of them.
	seen := make(map[int]struct{})
	for i := 0; i < 1000; i++ {
		seen[For("wakelocks", uid(strconv.Itoa(i)))] = struct{}{}
	}
	if len(seen) < 100 {
		t.Errorf("only %d distinct partitions from 1000 inputs, want >= 100", len(seen))
	}
}
