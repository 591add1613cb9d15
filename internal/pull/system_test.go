package pull

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

func TestRegisterSystemPullers(t *testing.T) {
	m := NewManager(time.Second, quartz.NewMock(t), nil, nil)

	require.NoError(t, RegisterSystemPullers(m, []string{TagMemory, TagCPUTime}))
	require.NoError(t, m.RegisterReceiver(TagMemory, &batchRecorder{}))
	require.Error(t, RegisterSystemPullers(m, []string{"gpu"}))
	require.Len(t, SystemPullers(), 4)
}

func TestMemoryPuller(t *testing.T) {
	events, err := pullMemory(context.Background(), TagMemory, 123)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int64(123), events[0].TimestampNs)

	total, ok := events[0].Fields["total_bytes"].(int64)
	require.True(t, ok)
	require.Positive(t, total)
}

func TestClampInt64(t *testing.T) {
	require.Equal(t, int64(5), clampInt64(5))
	require.Equal(t, int64(math.MaxInt64), clampInt64(math.MaxUint64))
}
