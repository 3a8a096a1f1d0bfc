package api

import (
	"net/http"
	"path/filepath"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
)

const bytesPerMB = 1024 * 1024

// SystemHealth is the host section of the health reply. Values that could
// not be read are left zero.
type SystemHealth struct {
	Hostname      string  `json:"hostname,omitempty"`
	Platform      string  `json:"platform,omitempty"`
	NumCPU        int     `json:"num_cpu"`
	GoVersion     string  `json:"go_version"`
	CPUUsage      float64 `json:"cpu_usage"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	DiskPath      string  `json:"disk_path"`
	DiskUsedPct   float64 `json:"disk_used_percent"`
	DiskFreeGB    float64 `json:"disk_free_gb"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status         string       `json:"status"`
	DatabaseStatus string       `json:"database_status"`
	DatabaseError  string       `json:"database_error,omitempty"`
	Uptime         string       `json:"uptime"`
	UptimeSeconds  float64      `json:"uptime_seconds"`
	Timestamp      string       `json:"timestamp"`
	System         SystemHealth `json:"system"`
}

// HealthCheck reports database connectivity, uptime and host resources.
// It answers 503 when the database cannot be reached.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	resp := HealthResponse{
		Status:         "healthy",
		DatabaseStatus: "connected",
		Uptime:         uptime.Round(time.Second).String(),
		UptimeSeconds:  uptime.Seconds(),
		Timestamp:      time.Now().Format(time.RFC3339),
		System:         c.systemHealth(),
	}

	code := http.StatusOK
	if err := c.store.Ping(); err != nil {
		resp.Status = "degraded"
		resp.DatabaseStatus = "disconnected"
		resp.DatabaseError = privacy.ScrubMessage(err.Error())
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, resp)
}

func (c *Controller) systemHealth() SystemHealth {
	s := SystemHealth{
		NumCPU:    runtime.NumCPU(),
		GoVersion: runtime.Version(),
		DiskPath:  c.diskPath(),
	}

	if info, err := host.Info(); err == nil {
		s.Hostname = info.Hostname
		s.Platform = info.Platform
	}
	// interval 0 compares against the previous call
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUUsage = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemoryUsedPct = vm.UsedPercent
		s.MemoryTotalMB = float64(vm.Total) / bytesPerMB
		s.MemoryUsedMB = float64(vm.Used) / bytesPerMB
	}
	if usage, err := disk.Usage(s.DiskPath); err == nil {
		s.DiskUsedPct = usage.UsedPercent
		s.DiskFreeGB = float64(usage.Free) / bytesPerMB / 1024
	} else {
		c.logger.Debug("disk usage unavailable", logger.String("path", s.DiskPath), logger.Error(err))
	}
	return s
}

// diskPath is the directory holding the SQLite database, or the working
// directory for other stores.
func (c *Controller) diskPath() string {
	if c.Settings.Database.Type == "sqlite" {
		p := c.Settings.Database.SQLite.Path
		if p != "" && p != ":memory:" {
			return filepath.Dir(p)
		}
	}
	return "."
}
