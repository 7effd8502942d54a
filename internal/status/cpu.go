package status

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
)

type cpuInfo struct {
	usage   float64
	freqGHz float64
	cores   int
	brand   string
}

func (c *Collector) cpu(ctx context.Context) (cpuInfo, error) {
	before, err := c.proc.Stat()
	if err != nil {
		return cpuInfo{}, fmt.Errorf("failed to read cpu stat: %w", err)
	}
	select {
	case <-ctx.Done():
		return cpuInfo{}, ctx.Err()
	case <-time.After(c.sample):
	}
	after, err := c.proc.Stat()
	if err != nil {
		return cpuInfo{}, fmt.Errorf("failed to read cpu stat: %w", err)
	}

	info := cpuInfo{
		usage: cpuUsage(before.CPUTotal, after.CPUTotal),
		brand: "Unknown",
		cores: runtime.NumCPU(),
	}

	cpus, err := c.proc.CPUInfo()
	if err != nil {
		c.logger.Debug("cpuinfo unavailable", "error", err)
	}
	if brand := cpuBrand(cpus); brand != "" {
		info.brand = brand
	}
	if cores := physicalCores(cpus); cores > 0 {
		info.cores = cores
	}

	freqs, err := c.sys.SystemCpufreq()
	if err != nil {
		c.logger.Debug("cpufreq unavailable", "error", err)
	}
	info.freqGHz = cpuFrequency(freqs, cpus)
	return info, nil
}

// cpuUsage is the busy share of the time that elapsed between two samples,
// as a percentage with one decimal.
func cpuUsage(a, b procfs.CPUStat) float64 {
	idle := (b.Idle + b.Iowait) - (a.Idle + a.Iowait)
	total := cpuTotal(b) - cpuTotal(a)
	if total <= 0 {
		return 0
	}
	busy := (total - idle) / total * 100
	return math.Round(math.Max(0, math.Min(100, busy))*10) / 10
}

func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}

// cpuFrequency returns cpu0's frequency in GHz from cpufreq, preferring the
// maximum over the current value, then the first cpuinfo MHz reading.
func cpuFrequency(freqs []sysfs.SystemCPUCpufreqStats, cpus []procfs.CPUInfo) float64 {
	for _, f := range freqs {
		if f.Name != "0" {
			continue
		}
		for _, khz := range []*uint64{
			f.CpuinfoMaximumFrequency,
			f.ScalingMaximumFrequency,
			f.CpuinfoCurrentFrequency,
			f.ScalingCurrentFrequency,
		} {
			if khz != nil && *khz > 0 {
				return round2(float64(*khz) / 1e6)
			}
		}
	}
	for _, cpu := range cpus {
		if cpu.CPUMHz > 0 {
			return round2(cpu.CPUMHz / 1000)
		}
	}
	return 0
}

func cpuBrand(cpus []procfs.CPUInfo) string {
	for _, cpu := range cpus {
		if cpu.ModelName != "" {
			return cpu.ModelName
		}
	}
	return ""
}

// physicalCores counts distinct physical id and core id pairs.
func physicalCores(cpus []procfs.CPUInfo) int {
	seen := make(map[[2]string]struct{})
	for _, cpu := range cpus {
		if cpu.CoreID == "" {
			continue
		}
		seen[[2]string{cpu.PhysicalID, cpu.CoreID}] = struct{}{}
	}
	return len(seen)
}
