package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/backtester/internal/database"
	"github.com/aristath/backtester/internal/scheduler"
)

// SystemHandlers serves status and job trigger endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
	scheduler   *scheduler.Scheduler
	backtestJob scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance. Nil databases are skipped.
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	sched *scheduler.Scheduler,
	backtestJob scheduler.Job,
) *SystemHandlers {
	dbs := make(map[string]*database.DB, len(databases))
	for name, db := range databases {
		if db != nil {
			dbs[name] = db
		}
	}
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   dbs,
		scheduler:   sched,
		backtestJob: backtestJob,
	}
}

// DatabaseStatus is the health of one database
type DatabaseStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string                `json:"status"` // "healthy" or "unhealthy"
	UptimeSeconds float64               `json:"uptime_seconds"`
	CPUPercent    float64               `json:"cpu_percent"`
	RAMPercent    float64               `json:"ram_percent"`
	DataDirMB     float64               `json:"data_dir_mb"`
	Databases     []DatabaseStatus      `json:"databases"`
	Jobs          []scheduler.JobStatus `json:"jobs"`
}

// HandleSystemStatus returns process, host and database health
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cpuPercent, ramPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		DataDirMB:     h.getDirSize(h.dataDir),
		Databases:     []DatabaseStatus{},
		Jobs:          []scheduler.JobStatus{},
	}
	if h.scheduler != nil {
		response.Jobs = h.scheduler.Jobs()
	}

	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := DatabaseStatus{Name: name, Healthy: true}
		if err := h.databases[name].HealthCheck(ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			response.Status = "unhealthy"
			h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
		}
		response.Databases = append(response.Databases, status)
	}

	code := http.StatusOK
	if response.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, response)
}

// HandleTriggerBacktests runs the scheduled backtest definitions immediately
// POST /api/jobs/backtests
func (h *SystemHandlers) HandleTriggerBacktests(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil || h.backtestJob == nil {
		h.log.Warn().Msg("Backtest job not registered")
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Backtest job not registered",
		})
		return
	}

	if err := h.scheduler.RunNow(h.backtestJob); err != nil {
		h.log.Error().Err(err).Msg("Backtest job failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Backtests completed",
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the endpoint responsive.
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

// getDirSize returns the size of a directory tree in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	if dirPath == "" {
		return 0
	}

	var totalSize int64
	err := filepath.Walk(dirPath, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
