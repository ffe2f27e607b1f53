package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandler serves host resource stats for the ops dashboard.
type SystemHandler struct {
	startedAt time.Time
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{startedAt: time.Now()}
}

// SystemStats is the response shape for the stats endpoint.
type SystemStats struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemUsedMB     uint64  `json:"memUsedMb"`
	MemTotalMB    uint64  `json:"memTotalMb"`
	MemPercent    float64 `json:"memPercent"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
}

// GetStats handles the request for current host CPU and memory usage.
func (h *SystemHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	// Interval 0 samples against the previous call instead of blocking.
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		log.Error().Err(err).Msg("Failed to read CPU usage")
		respondError(w, http.StatusInternalServerError, "Failed to collect system stats")
		return
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read memory usage")
		respondError(w, http.StatusInternalServerError, "Failed to collect system stats")
		return
	}

	respondJSON(w, http.StatusOK, SystemStats{
		CPUPercent:    percents[0],
		MemUsedMB:     vm.Used / 1024 / 1024,
		MemTotalMB:    vm.Total / 1024 / 1024,
		MemPercent:    vm.UsedPercent,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}
