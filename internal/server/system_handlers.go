package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/pricesentry/internal/scheduler"
)

// SystemStatus is the payload of GET /api/system/status
type SystemStatus struct {
	StartedAt    time.Time             `json:"started_at"`
	Uptime       string                `json:"uptime"`
	GoVersion    string                `json:"go_version"`
	Jobs         []scheduler.JobStatus `json:"jobs,omitempty"`
	CPUPercent   float64               `json:"cpu_percent"`
	MemPercent   float64               `json:"mem_percent"`
	CacheEntries int                   `json:"cache_entries"`
	Goroutines   int                   `json:"goroutines"`
}

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	prices      PriceReader
	jobs        JobLister
	stats       func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance. jobs may be nil.
func NewSystemHandlers(log zerolog.Logger, prices PriceReader, jobs JobLister) *SystemHandlers {
	h := &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		prices:      prices,
		jobs:        jobs,
	}
	h.stats = h.getSystemStats
	return h
}

// HandleSystemStatus returns process, host and cache status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.stats()

	status := SystemStatus{
		StartedAt:  h.startupTime,
		Uptime:     time.Since(h.startupTime).Round(time.Second).String(),
		GoVersion:  runtime.Version(),
		CPUPercent: cpuPct,
		MemPercent: memPct,
		Goroutines: runtime.NumGoroutine(),
	}
	if h.prices != nil {
		status.CacheEntries = h.prices.Len()
	}
	if h.jobs != nil {
		status.Jobs = h.jobs.Jobs()
	}

	h.writeJSON(w, status)
}

// HandleJobsStatus lists scheduled jobs with their next run
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.jobs != nil {
		jobs = h.jobs.Jobs()
	}
	h.writeJSON(w, map[string]interface{}{"jobs": jobs})
}

// getSystemStats returns CPU and RAM usage percentages. CPU is sampled over
// 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
