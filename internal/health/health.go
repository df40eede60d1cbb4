package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is anything that can report whether it is reachable (pgxpool.Pool, R2Store, ...)
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type check struct {
	name     string
	critical bool
	pinger   Pinger
}

type HealthChecker struct {
	mu        sync.RWMutex
	checks    []check
	startedAt time.Time
	timeout   time.Duration
}

type HealthStatus struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
}

type DetailedStatus struct {
	HealthStatus
	Uptime string    `json:"uptime"`
	Host   HostStats `json:"host"`
}

type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    string  `json:"memory_used"`
	MemoryTotal   string  `json:"memory_total"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskUsed      string  `json:"disk_used"`
	DiskTotal     string  `json:"disk_total"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startedAt: time.Now(), timeout: 2 * time.Second}
}

// Add registers a dependency. A failing critical dependency makes the service unhealthy;
// a failing optional one only degrades it.
func (h *HealthChecker) Add(name string, critical bool, p Pinger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check{name: name, critical: critical, pinger: p})
}

// CheckBasic pings every registered dependency
func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]check(nil), h.checks...)
	h.mu.RUnlock()

	status := HealthStatus{Status: "healthy", Components: make(map[string]ComponentHealth, len(checks))}
	for _, c := range checks {
		comp := h.ping(ctx, c.pinger)
		status.Components[c.name] = comp
		if comp.Status == "healthy" {
			continue
		}
		if c.critical {
			status.Status = "unhealthy"
		} else if status.Status == "healthy" {
			status.Status = "degraded"
		}
	}
	return status
}

func (h *HealthChecker) ping(ctx context.Context, p Pinger) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime, Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}

// CheckDetailed adds process uptime and host resource usage
func (h *HealthChecker) CheckDetailed(ctx context.Context) DetailedStatus {
	return DetailedStatus{
		HealthStatus: h.CheckBasic(ctx),
		Uptime:       formatUptime(time.Since(h.startedAt)),
		Host:         hostStats(),
	}
}

func hostStats() HostStats {
	var stats HostStats
	// Zero interval compares against the previous call instead of blocking
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if m, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = m.UsedPercent
		stats.MemoryUsed = formatBytes(m.Used)
		stats.MemoryTotal = formatBytes(m.Total)
	}
	if d, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = d.UsedPercent
		stats.DiskUsed = formatBytes(d.Used)
		stats.DiskTotal = formatBytes(d.Total)
	}
	return stats
}

func formatBytes(bytes uint64) string {
	gb := float64(bytes) / (1024 * 1024 * 1024)
	if gb < 1 {
		mb := float64(bytes) / (1024 * 1024)
		return fmt.Sprintf("%.1f MB", mb)
	}
	return fmt.Sprintf("%.1f GB", gb)
}

func formatUptime(d time.Duration) string {
	seconds := int(d.Seconds())
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
