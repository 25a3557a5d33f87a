package observability

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ghalamif/VoltLog/internal/ports"
)

// ResourceSampler publishes process RSS and free space of the output
// directory as gauges.
type ResourceSampler struct {
	obs  ports.Observability
	dir  string
	proc *process.Process
}

func NewResourceSampler(obs ports.Observability, outputDir string) *ResourceSampler {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &ResourceSampler{obs: obs, dir: outputDir, proc: proc}
}

// Sample reads both values once. Failures leave the previous value in place.
func (r *ResourceSampler) Sample() {
	if r.proc != nil {
		if mem, err := r.proc.MemoryInfo(); err == nil {
			r.obs.SetGauge(ports.MetricProcessRSS, float64(mem.RSS))
		}
	}
	if usage, err := disk.Usage(r.dir); err == nil {
		r.obs.SetGauge(ports.MetricOutputDiskFree, float64(usage.Free))
	} else {
		r.obs.LogError("disk usage", err, ports.Field{Key: "dir", Value: r.dir})
	}
}

func (r *ResourceSampler) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Second
	}
	r.Sample()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sample()
		}
	}
}
