package limiter

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_AllowWithinBurst(t *testing.T) {
	b := NewBucket(1, 3, time.Minute)
	defer b.Close()

	for i := 0; i < 3; i++ {
		allowed, retry := b.Allow("10.0.0.1")
		assert.True(t, allowed, "request %d should be allowed", i+1)
		assert.Zero(t, retry)
	}

	allowed, retry := b.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Greater(t, retry, time.Duration(0))
}

func TestBucket_ZeroBurstStillAdmits(t *testing.T) {
	b := NewBucket(50, 0, time.Minute)
	defer b.Close()

	allowed, retry := b.Allow("1.2.3.4")
	assert.True(t, allowed)
	assert.Zero(t, retry)
}

func TestBucket_KeysIndependent(t *testing.T) {
	b := NewBucket(1, 1, time.Minute)
	defer b.Close()

	allowed, _ := b.Allow("a")
	require.True(t, allowed)
	allowed, _ = b.Allow("a")
	assert.False(t, allowed)

	allowed, _ = b.Allow("b")
	assert.True(t, allowed)
	assert.Equal(t, 2, b.Len())
}

func TestBucket_EvictsIdleKeys(t *testing.T) {
	b := NewBucket(1, 1, 50*time.Millisecond)
	defer b.Close()

	b.Allow("ephemeral")
	require.Equal(t, 1, b.Len())

	assert.Eventually(t, func() bool { return b.Len() == 0 },
		time.Second, 10*time.Millisecond, "idle key should be evicted")
}

func TestBucket_CloseTwice(t *testing.T) {
	b := NewBucket(1, 1, time.Minute)
	b.Close()
	b.Close()
}

func TestBucket_ConcurrentAccess(t *testing.T) {
	b := NewBucket(1000, 100, time.Minute)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", id%5)
			for j := 0; j < 20; j++ {
				b.Allow(key)
			}
		}(i)
	}
	wg.Wait()
}
