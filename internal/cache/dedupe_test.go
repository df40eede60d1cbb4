package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper_MarkSeen(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	defer d.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("first mark is new", func(t *testing.T) {
		first, err := d.MarkSeen(ctx, "twilio:SM1:delivered", time.Minute)
		require.NoError(t, err)
		assert.True(t, first)
	})

	t.Run("second mark within ttl is a duplicate", func(t *testing.T) {
		first, err := d.MarkSeen(ctx, "twilio:SM1:delivered", time.Minute)
		require.NoError(t, err)
		assert.False(t, first)
	})

	t.Run("key is new again after ttl", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		first, err := d.MarkSeen(ctx, "twilio:SM1:delivered", time.Minute)
		require.NoError(t, err)
		assert.True(t, first)
	})
}

func TestMemoryDeduper_Cleanup(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	defer d.Close()

	now := time.Now()
	d.now = func() time.Time { return now }

	_, _ = d.MarkSeen(context.Background(), "a", time.Second)
	_, _ = d.MarkSeen(context.Background(), "b", time.Hour)
	require.Equal(t, 2, d.Size())

	now = now.Add(time.Minute)
	d.cleanup()
	assert.Equal(t, 1, d.Size())
}

func TestMemoryDeduper_Concurrent(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	defer d.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := d.MarkSeen(context.Background(), "same", time.Minute)
			assert.NoError(t, err)
			if first {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, firsts)
}

func TestMemoryDeduper_CloseTwice(t *testing.T) {
	d := NewMemoryDeduper(time.Millisecond)
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

func TestMemoryDeduper_Forget(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	defer d.Close()
	ctx := context.Background()

	first, err := d.MarkSeen(ctx, "meta:wamid.1:read", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	require.NoError(t, d.Forget(ctx, "meta:wamid.1:read"))
	first, err = d.MarkSeen(ctx, "meta:wamid.1:read", time.Minute)
	require.NoError(t, err)
	assert.True(t, first, "a forgotten key is new again")
}
