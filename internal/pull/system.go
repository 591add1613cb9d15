package pull

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	v1 "github.com/aevon-lab/telemetryd/internal/api/v1"
)

// Tags of the built-in device pullers.
const (
	TagCPUTime = "cpu_time"
	TagMemory  = "memory"
	TagNetIO   = "net_io"
	TagDiskIO  = "disk_io"
)

// SystemPullers returns the built-in pullers reading device counters.
func SystemPullers() map[string]Puller {
	return map[string]Puller{
		TagCPUTime: PullerFunc(pullCPUTime),
		TagMemory:  PullerFunc(pullMemory),
		TagNetIO:   PullerFunc(pullNetIO),
		TagDiskIO:  PullerFunc(pullDiskIO),
	}
}

// RegisterSystemPullers registers the named built-in pullers on m.
func RegisterSystemPullers(m *Manager, names []string) error {
	all := SystemPullers()
	for _, name := range names {
		p, ok := all[name]
		if !ok {
			return fmt.Errorf("unknown system puller %q", name)
		}
		m.RegisterPuller(name, p)
	}
	return nil
}

func pullCPUTime(ctx context.Context, tag string, ts int64) ([]*v1.LogEvent, error) {
	times, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]*v1.LogEvent, 0, len(times))
	for _, t := range times {
		out = append(out, &v1.LogEvent{Tag: tag, TimestampNs: ts, Fields: map[string]interface{}{
			"cpu":       t.CPU,
			"user_ms":   int64(t.User * 1000),
			"system_ms": int64(t.System * 1000),
			"idle_ms":   int64(t.Idle * 1000),
			"iowait_ms": int64(t.Iowait * 1000),
		}})
	}
	return out, nil
}

func pullMemory(ctx context.Context, tag string, ts int64) ([]*v1.LogEvent, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return []*v1.LogEvent{{Tag: tag, TimestampNs: ts, Fields: map[string]interface{}{
		"total_bytes":     clampInt64(vm.Total),
		"available_bytes": clampInt64(vm.Available),
		"used_bytes":      clampInt64(vm.Used),
	}}}, nil
}

func pullNetIO(ctx context.Context, tag string, ts int64) ([]*v1.LogEvent, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]*v1.LogEvent, 0, len(counters))
	for _, c := range counters {
		out = append(out, &v1.LogEvent{Tag: tag, TimestampNs: ts, Fields: map[string]interface{}{
			"interface":    c.Name,
			"bytes_sent":   clampInt64(c.BytesSent),
			"bytes_recv":   clampInt64(c.BytesRecv),
			"packets_sent": clampInt64(c.PacketsSent),
			"packets_recv": clampInt64(c.PacketsRecv),
		}})
	}
	return out, nil
}

func pullDiskIO(ctx context.Context, tag string, ts int64) ([]*v1.LogEvent, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*v1.LogEvent, 0, len(names))
	for _, name := range names {
		c := counters[name]
		out = append(out, &v1.LogEvent{Tag: tag, TimestampNs: ts, Fields: map[string]interface{}{
			"device":      name,
			"read_bytes":  clampInt64(c.ReadBytes),
			"write_bytes": clampInt64(c.WriteBytes),
			"read_count":  clampInt64(c.ReadCount),
			"write_count": clampInt64(c.WriteCount),
		}})
	}
	return out, nil
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
