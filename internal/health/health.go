// Package health reports basic process/host vitals for the optional
// /healthz endpoint, using shirou/gopsutil/v3 for CPU core counting
// and load sampling, repurposed here from continuous load-history
// tracking to a one-shot operator health check.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Info is the JSON body served at /healthz.
type Info struct {
	CPUCores      int     `json:"cpu_cores"`
	CPUPercent    float64 `json:"cpu_percent"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Reporter samples process/host vitals on demand.
type Reporter struct {
	cpuCores int
	started  time.Time
}

// NewReporter constructs a Reporter, recording the current time as
// process start for uptime reporting.
func NewReporter() *Reporter {
	cores := 0
	if info, err := cpu.Info(); err == nil {
		for _, c := range info {
			cores += int(c.Cores)
		}
	}
	return &Reporter{cpuCores: cores, started: time.Now()}
}

// Snapshot samples current CPU load and uptime.
func (r *Reporter) Snapshot() Info {
	percent := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		percent = percents[0]
	}
	return Info{
		CPUCores:      r.cpuCores,
		CPUPercent:    percent,
		UptimeSeconds: time.Since(r.started).Seconds(),
	}
}

// Handler serves the current Snapshot as JSON.
func (r *Reporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.Snapshot())
	}
}
