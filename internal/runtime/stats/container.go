// Package stats computes CPU/memory/network usage for one instance and
// serves bulk queries out of a short-TTL cache so dashboard polling stays
// cheap.
package stats

import (
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/craftd/craftd/internal/runtime"
)

// CPUPercent computes container CPU usage from the cumulative counter
// deltas of one stats round trip. It is clamped to 0 whenever either delta
// is non-positive, so it can never go negative or NaN.
func CPUPercent(cpuDelta, systemDelta, onlineCPUs float64) float64 {
	if cpuDelta <= 0 || systemDelta <= 0 {
		return 0
	}
	if onlineCPUs <= 0 {
		onlineCPUs = 1
	}
	return (cpuDelta / systemDelta) * onlineCPUs * 100
}

// MemoryUsage subtracts cache pages from the raw usage figure when the
// cgroup breakdown exposes them; raw usage includes the page cache, which
// overstates what the server actually holds.
func MemoryUsage(raw uint64, breakdown map[string]uint64) uint64 {
	for _, key := range []string{"cache", "total_inactive_file", "inactive_file"} {
		if cached, ok := breakdown[key]; ok {
			if cached < raw {
				return raw - cached
			}
			return 0
		}
	}
	return raw
}

// FromContainerStats converts one engine stats payload (which carries both
// the current and immediately-preceding CPU counters) into a resource
// sample.
func FromContainerStats(s *container.StatsResponse) *runtime.ResourceUsage {
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(s.CPUStats.SystemUsage) - float64(s.PreCPUStats.SystemUsage)

	onlineCPUs := float64(s.CPUStats.OnlineCPUs)
	if onlineCPUs == 0 {
		onlineCPUs = float64(len(s.CPUStats.CPUUsage.PercpuUsage))
	}

	used := MemoryUsage(s.MemoryStats.Usage, s.MemoryStats.Stats)
	limit := s.MemoryStats.Limit

	var memPercent float64
	if limit > 0 {
		memPercent = float64(used) / float64(limit) * 100
	}

	var rx, tx uint64
	for _, iface := range s.Networks {
		rx += iface.RxBytes
		tx += iface.TxBytes
	}

	return &runtime.ResourceUsage{
		CPUPercent:       CPUPercent(cpuDelta, systemDelta, onlineCPUs),
		MemoryUsedBytes:  used,
		MemoryLimitBytes: limit,
		MemoryPercent:    memPercent,
		NetworkRxBytes:   rx,
		NetworkTxBytes:   tx,
		SampledAt:        time.Now(),
	}
}
