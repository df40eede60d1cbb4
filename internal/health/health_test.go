package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ok(ctx context.Context) error   { return nil }
func down(ctx context.Context) error { return errors.New("connection refused") }

func TestCheckBasic(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		h := NewHealthChecker()
		h.Add("database", true, PingFunc(ok))
		h.Add("redis", false, PingFunc(ok))
		status := h.CheckBasic(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.Len(t, status.Components, 2)
	})

	t.Run("optional dependency down degrades", func(t *testing.T) {
		h := NewHealthChecker()
		h.Add("database", true, PingFunc(ok))
		h.Add("redis", false, PingFunc(down))
		status := h.CheckBasic(context.Background())
		assert.Equal(t, "degraded", status.Status)
		assert.Equal(t, "connection refused", status.Components["redis"].Error)
	})

	t.Run("critical dependency down is unhealthy", func(t *testing.T) {
		h := NewHealthChecker()
		h.Add("redis", false, PingFunc(down))
		h.Add("database", true, PingFunc(down))
		assert.Equal(t, "unhealthy", h.CheckBasic(context.Background()).Status)
	})

	t.Run("no dependencies", func(t *testing.T) {
		assert.Equal(t, "healthy", NewHealthChecker().CheckBasic(context.Background()).Status)
	})
}

func TestCheckDetailed(t *testing.T) {
	h := NewHealthChecker()
	h.Add("database", true, PingFunc(ok))
	d := h.CheckDetailed(context.Background())
	assert.Equal(t, "healthy", d.Status)
	assert.Equal(t, "0m", d.Uptime)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5m", formatUptime(5*time.Minute))
	assert.Equal(t, "2h 3m", formatUptime(2*time.Hour+3*time.Minute))
	assert.Equal(t, "1d 4h", formatUptime(28*time.Hour))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512.0 MB", formatBytes(512*1024*1024))
	assert.Equal(t, "2.0 GB", formatBytes(2*1024*1024*1024))
}
