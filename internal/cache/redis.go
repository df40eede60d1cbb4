package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects and pings. On failure the client is closed and the error returned
// so callers can fall back to in-memory implementations.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Ping reports whether the Redis connection is working, bounded to 2 seconds
func Ping(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}
