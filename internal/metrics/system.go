package metrics

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// DefaultSystemInterval is the sampling period of the system collector.
const DefaultSystemInterval = 10 * time.Second

var (
	systemCPU = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "droolon",
		Subsystem: "system",
		Name:      "cpu_percent",
		Help:      "Host CPU usage since the previous sample",
	})

	systemMemory = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "droolon",
		Subsystem: "system",
		Name:      "memory_used_percent",
		Help:      "Host memory in use",
	})

	captureProcesses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "droolon",
		Subsystem: "capture",
		Name:      "processes",
		Help:      "Capture subprocesses currently running",
	})

	captureRSS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "droolon",
		Subsystem: "capture",
		Name:      "processes_resident_bytes",
		Help:      "Resident memory of all capture subprocesses",
	})
)

// SystemSample is one reading of the system collector.
type SystemSample struct {
	CPUPercent    float64
	MemoryPercent float64
	Subprocesses  int
	SubprocessRSS uint64
}

// SystemCollector samples host load and the resource use of this process's
// children (the capture subprocesses) into gauges.
type SystemCollector struct {
	interval time.Duration
	logger   *slog.Logger
	self     *process.Process

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSystemCollector creates a collector. interval <= 0 uses DefaultSystemInterval.
func NewSystemCollector(interval time.Duration, logger *slog.Logger) (*SystemCollector, error) {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultSystemInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemCollector{interval: interval, logger: logger, self: self}, nil
}

// Start samples once and then every interval until Stop or ctx is done.
func (c *SystemCollector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.Collect(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Collect(ctx)
			}
		}
	}()
}

// Stop ends sampling and waits for the sampler.
func (c *SystemCollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Collect takes one sample and updates the gauges. Readings that fail are
// logged at debug and left at zero.
func (c *SystemCollector) Collect(ctx context.Context) SystemSample {
	var s SystemSample

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else if err != nil {
		c.logger.Debug("CPU sample failed", "error", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemoryPercent = vm.UsedPercent
	} else {
		c.logger.Debug("Memory sample failed", "error", err)
	}

	// Children fails when there are none.
	if children, err := c.self.ChildrenWithContext(ctx); err == nil {
		for _, child := range children {
			info, err := child.MemoryInfoWithContext(ctx)
			if err != nil {
				continue
			}
			s.Subprocesses++
			s.SubprocessRSS += info.RSS
		}
	}

	systemCPU.Set(s.CPUPercent)
	systemMemory.Set(s.MemoryPercent)
	captureProcesses.Set(float64(s.Subprocesses))
	captureRSS.Set(float64(s.SubprocessRSS))
	return s
}
