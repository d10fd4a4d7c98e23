package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/craftd/craftd/internal/runtime"
)

// cpuPrimedelay is the window between priming each process's CPU counters
// and reading them. The first Percent call always returns 0, so a sample
// needs two reads with a short sleep between them. Callers must tolerate
// this added latency.
const cpuPrimeDelay = 150 * time.Millisecond

// SampleProcessTree gathers the instance's process plus all recursive
// children and sums CPU percent and resident memory across the tree.
// Per-process network counters are not portably exposed, so network totals
// are reported as zero for this backend.
func SampleProcessTree(ctx context.Context, rootPID int, memLimitBytes uint64) (*runtime.ResourceUsage, error) {
	root, err := process.NewProcessWithContext(ctx, int32(rootPID))
	if err != nil {
		return nil, fmt.Errorf("process %d not found: %w", rootPID, err)
	}

	tree := collectTree(ctx, root)

	// Prime CPU accounting for every process; the first call returns 0 by
	// convention.
	for _, p := range tree {
		_, _ = p.PercentWithContext(ctx, 0)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(cpuPrimeDelay):
	}

	var cpu float64
	var rss uint64
	for _, p := range tree {
		if pct, err := p.PercentWithContext(ctx, 0); err == nil {
			cpu += pct
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rss += mi.RSS
		}
	}

	var memPercent float64
	if memLimitBytes > 0 {
		memPercent = float64(rss) / float64(memLimitBytes) * 100
	}

	return &runtime.ResourceUsage{
		CPUPercent:       cpu,
		MemoryUsedBytes:  rss,
		MemoryLimitBytes: memLimitBytes,
		MemoryPercent:    memPercent,
		SampledAt:        time.Now(),
	}, nil
}

// collectTree returns root plus every recursive descendant still alive.
func collectTree(ctx context.Context, root *process.Process) []*process.Process {
	tree := []*process.Process{root}
	queue := []*process.Process{root}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		children, err := p.ChildrenWithContext(ctx)
		if err != nil {
			continue
		}
		tree = append(tree, children...)
		queue = append(queue, children...)
	}
	return tree
}
