package metric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseBucketSize(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantSize  time.Duration
		wantError bool
	}{
		{name: "seconds", input: "10s", wantSize: 10 * time.Second},
		{name: "minute", input: "1m", wantSize: time.Minute},
		{name: "days suffix", input: "1d", wantSize: 24 * time.Hour},
		{name: "empty invalid", input: "", wantError: true},
		{name: "negative invalid", input: "-1m", wantError: true},
		{name: "zero invalid", input: "0s", wantError: true},
		{name: "zero days invalid", input: "0d", wantError: true},
		{name: "bad day format invalid", input: "xd", wantError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			size, err := ParseBucketSize(tc.input)
			if tc.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantSize, size)
		})
	}
}

func TestBucketStartFor(t *testing.T) {
	const minute = int64(time.Minute)

	require.Equal(t, int64(0), BucketStartFor(59*int64(time.Second), 0, minute))
	require.Equal(t, minute, BucketStartFor(minute, 0, minute))
	require.Equal(t, 2*minute, BucketStartFor(2*minute+5, 0, minute))
	require.Equal(t, 7+minute, BucketStartFor(7+minute+1, 7, minute), "aligned on origin")
	require.Equal(t, int64(100), BucketStartFor(50, 100, minute), "before origin")
}
