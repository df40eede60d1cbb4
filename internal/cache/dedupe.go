package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers keys for a TTL. MarkSeen returns true the first time a key is
// marked and false while an earlier mark is still live. Forget drops a mark so a
// redelivery of an event that failed to apply is processed again.
type Deduper interface {
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
	Close() error
}

// MemoryDeduper is a Deduper for single-instance deployments and tests
type MemoryDeduper struct {
	mu        sync.Mutex
	entries   map[string]time.Time // key -> expiry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryDeduper starts a goroutine that drops expired keys every cleanupInterval
func NewMemoryDeduper(cleanupInterval time.Duration) *MemoryDeduper {
	d := &MemoryDeduper{
		entries:  make(map[string]time.Time),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	d.wg.Add(1)
	go d.cleanupLoop(cleanupInterval)
	return d
}

func (d *MemoryDeduper) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expiry, ok := d.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}
	d.entries[key] = now.Add(ttl)
	return true, nil
}

func (d *MemoryDeduper) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	delete(d.entries, key)
	d.mu.Unlock()
	return nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (d *MemoryDeduper) Close() error {
	d.closeOnce.Do(func() {
		close(d.stopChan)
		d.wg.Wait()
	})
	return nil
}

func (d *MemoryDeduper) cleanupLoop(interval time.Duration) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.cleanup()
		}
	}
}

func (d *MemoryDeduper) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for key, expiry := range d.entries {
		if !now.Before(expiry) {
			delete(d.entries, key)
		}
	}
}

// Size returns the number of tracked keys
func (d *MemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// RedisDeduper shares dedupe state between instances using SET NX
type RedisDeduper struct {
	client *redis.Client
	prefix string
}

func NewRedisDeduper(client *redis.Client, prefix string) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: prefix}
}

func (d *RedisDeduper) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+key, 1, ttl).Result()
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.prefix+key).Err()
}

// Close is a no-op; the client is owned by the caller
func (d *RedisDeduper) Close() error { return nil }

var (
	_ Deduper = (*MemoryDeduper)(nil)
	_ Deduper = (*RedisDeduper)(nil)
)
