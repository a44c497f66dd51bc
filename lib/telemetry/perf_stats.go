package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("hrpull.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")
var childGauge, _ = meter.Int64Gauge("child_process_count")
var childMemoryGauge, _ = meter.Int64Gauge("child_rss_mb")

// childStats sums the resident memory of the direct children of this process,
// which is where the browser lives.
func childStats(ctx context.Context, self *process.Process) (count int64, rssMb int64, err error) {
	children, err := self.ChildrenWithContext(ctx)
	if err == process.ErrorNoChildren {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	for _, child := range children {
		mem, err := child.MemoryInfoWithContext(ctx)
		if err != nil {
			continue
		}
		count++
		rssMb += int64(mem.RSS / 1_000_000)
	}
	return count, rssMb, nil
}

// InstrumentPerfStats records process gauges every `interval` until ctx is done.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		slog.Debug("perf stats disabled", "err", err)
		return
	}

	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)
				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

				usage, err := cpu.PercentWithContext(ctx, time.Second, false)
				if err == nil && len(usage) > 0 {
					cpuGauge.Record(ctx, usage[0])
				}

				count, rss, err := childStats(ctx, self)
				if err != nil {
					slog.Debug("failed to read child processes", "err", err)
					continue
				}
				childGauge.Record(ctx, count)
				childMemoryGauge.Record(ctx, rss)
			case <-ctx.Done():
				return
			}
		}
	}()
}
