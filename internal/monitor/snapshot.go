package monitor

import (
	"time"

	"github.com/skobkin/proctop-web/internal/proc"
)

// Snapshot is one refresh tick of host and process statistics.
type Snapshot struct {
	Timestamp time.Time `json:"ts"`
	System    System    `json:"system"`
	Processes []Process `json:"processes"`
}

// System summarises the host. MemoryUtilization and LoadAverage are nil
// when the kernel files backing them are unreadable.
type System struct {
	OS                string            `json:"os"`
	Kernel            string            `json:"kernel"`
	CPUUtilization    float64           `json:"cpu_utilization"`
	MemoryUtilization *float64          `json:"memory_utilization"`
	UptimeSeconds     int64             `json:"uptime_seconds"`
	Uptime            string            `json:"uptime"`
	TotalProcesses    int               `json:"total_processes"`
	RunningProcesses  int               `json:"running_processes"`
	LoadAverage       *proc.LoadAverage `json:"load_average"`
}

// Process is a single row of the process table.
type Process struct {
	PID            int     `json:"pid"`
	User           string  `json:"user"`
	Command        string  `json:"cmd"`
	CPUUtilization float64 `json:"cpu_utilization"`
	RAMMB          string  `json:"ram_mb"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	Uptime         string  `json:"uptime"`
}
