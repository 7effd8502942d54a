// Package status gathers the host and bot information shown by the
// self-check image.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"checkbot/internal/models"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
	"golang.org/x/sync/errgroup"
)

const (
	gib = 1 << 30

	// cpuSampleInterval is the window over which CPU usage is measured.
	cpuSampleInterval = 100 * time.Millisecond
)

// PluginCounter reports how many plugins the bot has loaded.
type PluginCounter interface {
	PluginCount() int
}

// Collector builds a models.StatusInfo on demand.
type Collector struct {
	cfg      models.StatusConfig
	nickname string
	plugins  PluginCounter

	proc       procfs.FS
	sys        sysfs.FS
	httpClient *http.Client
	sample     time.Duration
	logger     *slog.Logger
}

// NewCollector creates a collector reading host data from the configured
// proc and sys mounts.
func NewCollector(cfg models.StatusConfig, nickname string, plugins PluginCounter) (*Collector, error) {
	proc, err := procfs.NewFS(cfg.ProcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", cfg.ProcPath, err)
	}
	sys, err := sysfs.NewFS(cfg.SysPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs at %s: %w", cfg.SysPath, err)
	}
	return &Collector{
		cfg:        cfg,
		nickname:   nickname,
		plugins:    plugins,
		proc:       proc,
		sys:        sys,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		sample:     cpuSampleInterval,
		logger:     slog.Default().With("component", "status.collector"),
	}, nil
}

// Collect samples the host and probes the network. Probe failures only
// change the reported color; host read failures are returned.
func (c *Collector) Collect(ctx context.Context) (*models.StatusInfo, error) {
	var (
		cpu         cpuInfo
		ram, swap   usage
		disk        usage
		baidu, goog bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cpu, err = c.cpu(gctx)
		return err
	})
	g.Go(func() error {
		ram, swap = c.memory()
		return nil
	})
	g.Go(func() error {
		var err error
		disk, err = diskUsage(c.cfg.DiskPath)
		return err
	})
	g.Go(func() error {
		baidu = c.probe(gctx, c.cfg.ProbeBaidu)
		return nil
	})
	g.Go(func() error {
		goog = c.probe(gctx, c.cfg.ProbeGoogle)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	info := &models.StatusInfo{
		CPUInfo:     fmt.Sprintf("%s%% - %sGhz [%d core]", pyFloat(cpu.usage), pyFloat(cpu.freqGHz), cpu.cores),
		CPUProcess:  cpu.usage,
		RAMInfo:     ram.String(),
		RAMProcess:  ram.Percent(),
		SwapInfo:    swap.String(),
		SwapProcess: swap.Percent(),
		DiskInfo:    disk.String(),
		DiskProcess: disk.Percent(),
		BrandRaw:    cpu.brand,
		Baidu:       models.ReachabilityColor(baidu),
		Google:      models.ReachabilityColor(goog),
		System:      systemName(),
		Version:     readVersion(c.cfg.VersionFile),
		Nickname:    c.nickname,
	}
	if c.plugins != nil {
		info.PluginCount = c.plugins.PluginCount()
	}
	return info, nil
}

// probe reports whether url answers a GET at all. Any HTTP status counts.
func (c *Collector) probe(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn("Self-check probe failed", "url", url, "error", err)
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Self-check probe failed", "url", url, "error", err)
		return false
	}
	resp.Body.Close()
	return true
}
