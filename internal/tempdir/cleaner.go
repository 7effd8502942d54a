package tempdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Cleaner empties every registered directory on a cron schedule. The
// directories themselves are kept; only their entries are removed.
type Cleaner struct {
	registry *Registry
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	logger  *slog.Logger
}

// NewCleaner creates a cleaner for registry. schedule is a standard
// five-field cron expression; an empty schedule disables Start.
func NewCleaner(registry *Registry, schedule string) *Cleaner {
	return &Cleaner{
		registry: registry,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "tempdir.cleaner"),
	}
}

// Start schedules cleanup runs until ctx is cancelled or Stop is called.
func (c *Cleaner) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule == "" {
		c.logger.Info("cleanup schedule not configured, skipping")
		return nil
	}
	if c.running {
		return nil
	}
	if _, err := cron.ParseStandard(c.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", c.schedule, err)
	}

	// A stopped cron keeps its entries, so every start gets a fresh one.
	sched := cron.New()
	if _, err := sched.AddFunc(c.schedule, func() { c.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	c.cron = sched
	c.cron.Start()
	c.running = true
	c.logger.Info("temp dir cleaner started", "schedule", c.schedule)

	go func() {
		<-ctx.Done()
		c.stop(sched)
	}()
	return nil
}

// Stop halts the schedule and waits for a running cleanup to finish.
func (c *Cleaner) Stop() {
	c.stop(nil)
}

// stop halts sched when it is still the active schedule; nil means whichever
// schedule is active. A context from an earlier Start cannot stop a later one.
func (c *Cleaner) stop(sched *cron.Cron) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || (sched != nil && sched != c.cron) {
		return
	}
	<-c.cron.Stop().Done()
	c.running = false
	c.logger.Info("temp dir cleaner stopped")
}

// IsRunning reports whether the schedule is active.
func (c *Cleaner) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// NextRun returns the next scheduled cleanup, or nil when not running.
func (c *Cleaner) NextRun() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

func (c *Cleaner) run(ctx context.Context) {
	removed, err := c.RunOnce(ctx)
	if err != nil {
		c.logger.Error("temp dir cleanup failed", "error", err, "removed", removed)
		return
	}
	c.logger.Info("temp dir cleanup completed", "removed", removed)
}

// RunOnce empties every registered directory now and returns the number of
// top-level entries removed. Directories that no longer exist are skipped.
// Failures do not stop the run; they are joined into the returned error.
func (c *Cleaner) RunOnce(ctx context.Context) (int, error) {
	var (
		removed int
		errs    []error
	)
	for _, dir := range c.registry.Paths() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := emptyDir(dir)
		removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

func emptyDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}
	removed := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", filepath.Join(dir, entry.Name()), err)
		}
		removed++
	}
	return removed, nil
}
