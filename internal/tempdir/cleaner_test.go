package tempdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleaner_RunOnceEmptiesDirectories(t *testing.T) {
	root := t.TempDir()
	render := filepath.Join(root, "render")
	mkdirs(t, render, "nested/more")
	require.NoError(t, os.WriteFile(filepath.Join(render, "a.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(render, "nested", "b.png"), []byte("png"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.Add(render, true))
	require.NoError(t, r.Add(filepath.Join(root, "gone"), false))

	c := NewCleaner(r, "")
	removed, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(render)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.DirExists(t, render, "registered directory itself is kept")
}

func TestCleaner_RunOnceCancelled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(t.TempDir(), false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCleaner(r, "").RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleaner_StartWithoutSchedule(t *testing.T) {
	c := NewCleaner(NewRegistry(), "")

	require.NoError(t, c.Start(context.Background()))
	assert.False(t, c.IsRunning())
	assert.Nil(t, c.NextRun())
}

func TestCleaner_StartInvalidSchedule(t *testing.T) {
	c := NewCleaner(NewRegistry(), "not a cron")

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule")
	assert.False(t, c.IsRunning())
}

func TestCleaner_StartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewCleaner(NewRegistry(), "0 4 * * *")
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsRunning())

	next := c.NextRun()
	require.NotNil(t, next)
	assert.Equal(t, 4, next.Hour())

	c.Stop()
	assert.False(t, c.IsRunning())
	c.Stop()
}

func TestCleaner_RestartKeepsSingleJob(t *testing.T) {
	c := NewCleaner(NewRegistry(), "0 4 * * *")

	require.NoError(t, c.Start(context.Background()))
	c.Stop()
	assert.Nil(t, c.NextRun())

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	assert.True(t, c.IsRunning())
	c.mu.Lock()
	assert.Len(t, c.cron.Entries(), 1)
	c.mu.Unlock()
	assert.NotNil(t, c.NextRun())
}

func TestCleaner_EarlierContextDoesNotStopRestart(t *testing.T) {
	first, cancelFirst := context.WithCancel(context.Background())
	c := NewCleaner(NewRegistry(), "0 4 * * *")

	require.NoError(t, c.Start(first))
	c.Stop()
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.IsRunning())
}

func TestCleaner_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCleaner(NewRegistry(), "0 4 * * *")
	require.NoError(t, c.Start(ctx))

	cancel()
	assert.Eventually(t, func() bool { return !c.IsRunning() }, time.Second, 5*time.Millisecond)
}
