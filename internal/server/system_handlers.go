package server

import (
	"errors"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/scheduler"
)

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string     `json:"status"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	GoVersion     string     `json:"go_version"`
	Goroutines    int        `json:"goroutines"`
	Host          HostInfo   `json:"host"`
	CPUPercent    float64    `json:"cpu_percent"`
	Memory        MemoryInfo `json:"memory"`
	Disk          DiskInfo   `json:"disk"`
	Databases     []DBInfo   `json:"databases"`
	LastChecked   time.Time  `json:"last_checked"`
}

// HostInfo describes the machine
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
}

// MemoryInfo is system memory usage
type MemoryInfo struct {
	TotalMB     float64 `json:"total_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskInfo is usage of the disk holding the data directory
type DiskInfo struct {
	Path        string  `json:"path"`
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// DBInfo describes one database file
type DBInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// JobsStatusResponse is the body of GET /api/system/jobs
type JobsStatusResponse struct {
	Scheduled []string `json:"scheduled"`
	Available []string `json:"available"`
}

// SystemHandlers serves system monitoring and operations
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases map[string]*database.DB
	scheduler *scheduler.Scheduler
	startedAt time.Time
}

// NewSystemHandlers creates system handlers. sched may be nil.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases map[string]*database.DB, sched *scheduler.Scheduler) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		databases: databases,
		scheduler: sched,
		startedAt: time.Now(),
	}
}

// HandleSystemStatus returns process, host and database status.
// Probe failures leave their section zeroed.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		Databases:     h.databaseInfo(),
		LastChecked:   time.Now().UTC(),
	}

	if info, err := host.InfoWithContext(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get host info")
	} else {
		response.Host = HostInfo{
			Hostname:      info.Hostname,
			OS:            info.OS,
			Platform:      info.Platform,
			UptimeSeconds: info.Uptime,
		}
	}

	// 100ms keeps the endpoint responsive while still sampling
	if pct, err := cpu.PercentWithContext(r.Context(), 100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(pct) > 0 {
		response.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		response.Memory = MemoryInfo{
			TotalMB:     toMB(vm.Total),
			UsedMB:      toMB(vm.Used),
			UsedPercent: vm.UsedPercent,
		}
	}

	if usage, err := disk.UsageWithContext(r.Context(), h.dataDir); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	} else {
		response.Disk = DiskInfo{
			Path:        h.dataDir,
			TotalMB:     toMB(usage.Total),
			FreeMB:      toMB(usage.Free),
			UsedPercent: usage.UsedPercent,
		}
	}

	if len(response.Databases) < len(h.databases) {
		response.Status = "degraded"
	}

	writeJSON(w, h.log, http.StatusOK, response)
}

// HandleDatabaseStats returns the size of every database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	dbs := h.databaseInfo()
	total := 0.0
	for _, db := range dbs {
		total += db.SizeMB
	}
	writeJSON(w, h.log, http.StatusOK, map[string]any{
		"databases":     dbs,
		"total_size_mb": total,
	})
}

// HandleJobsStatus lists scheduled and manually runnable jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	response := JobsStatusResponse{Scheduled: []string{}, Available: []string{}}
	if h.scheduler != nil {
		response.Scheduled = h.scheduler.Jobs()
		sort.Strings(response.Scheduled)
		response.Available = h.scheduler.Available()
	}
	writeJSON(w, h.log, http.StatusOK, response)
}

// HandleTriggerJob runs a job immediately and reports its outcome
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.scheduler == nil {
		writeError(w, h.log, http.StatusNotFound, "no jobs registered")
		return
	}

	if err := h.scheduler.RunByName(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			writeError(w, h.log, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		writeError(w, h.log, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, h.log, http.StatusOK, map[string]string{
		"status": "completed",
		"job":    name,
	})
}

func (h *SystemHandlers) databaseInfo() []DBInfo {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	dbs := make([]DBInfo, 0, len(names))
	for _, name := range names {
		db := h.databases[name]
		if db == nil {
			continue
		}
		info, err := os.Stat(db.Path())
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to stat database")
			continue
		}
		dbs = append(dbs, DBInfo{
			Name:   name,
			Path:   db.Path(),
			SizeMB: float64(info.Size()) / 1024 / 1024,
		})
	}
	return dbs
}

func toMB(bytes uint64) float64 {
	return float64(bytes) / 1024 / 1024
}
