package status

import (
	"github.com/pbnjay/memory"
)

const kib = 1024

// memory returns RAM and swap usage from /proc/meminfo. When meminfo cannot
// be read, RAM falls back to the platform's total/free figures and swap is
// reported as empty.
func (c *Collector) memory() (ram, swap usage) {
	mi, err := c.proc.Meminfo()
	if err != nil || mi.MemTotal == nil {
		c.logger.Warn("meminfo unavailable, using platform memory figures", "error", err)
		total := memory.TotalMemory()
		free := memory.FreeMemory()
		var used uint64
		if total > free {
			used = total - free
		}
		return newUsage(used, total), usage{}
	}

	total := *mi.MemTotal * kib
	var available uint64
	switch {
	case mi.MemAvailable != nil:
		available = *mi.MemAvailable * kib
	default:
		available = (val(mi.MemFree) + val(mi.Buffers) + val(mi.Cached)) * kib
	}
	ram = newUsage(sub(total, available), total)

	swapTotal := val(mi.SwapTotal) * kib
	swap = newUsage(sub(swapTotal, val(mi.SwapFree)*kib), swapTotal)
	return ram, swap
}

func val(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

func sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
