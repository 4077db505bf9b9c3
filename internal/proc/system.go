package proc

import (
	"bufio"
	"math"
	"os"
	"strconv"
	"strings"
)

// OperatingSystem returns PRETTY_NAME from the os-release file with quotes
// trimmed and underscores turned into spaces, or "".
func (r *Reader) OperatingSystem() string {
	f, err := os.Open(r.paths.OSReleasePath)
	if err != nil {
		r.logger.Debug("os-release unavailable", "path", r.paths.OSReleasePath, "err", err)
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || strings.TrimSpace(key) != "PRETTY_NAME" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		return strings.ReplaceAll(value, "_", " ")
	}
	return ""
}

// Kernel returns the third token of the version file's first line, or "".
func (r *Reader) Kernel() string {
	data, ok := r.readProc(versionFilename)
	if !ok {
		return ""
	}
	kernel, _ := fieldAt(firstLine(data), 2)
	return kernel
}

// MemoryUtilization returns (MemTotal - MemFree) / MemTotal. The result is
// NaN when either line is missing or MemTotal is zero.
func (r *Reader) MemoryUtilization() float64 {
	data, ok := r.readProc(meminfoFilename)
	if !ok {
		return math.NaN()
	}
	total, ok := r.meminfoValue(data, "MemTotal:")
	if !ok || total == 0 {
		return math.NaN()
	}
	free, ok := r.meminfoValue(data, "MemFree:")
	if !ok {
		return math.NaN()
	}
	return (total - free) / total
}

func (r *Reader) meminfoValue(data []byte, prefix string) (float64, bool) {
	line, ok := findLine(data, prefix)
	if !ok {
		return 0, false
	}
	raw, ok := fieldAt(line, 1)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.logger.Debug("failed to parse meminfo value", "key", prefix, "value", raw, "err", err)
		return 0, false
	}
	return value, true
}

// UpTime returns whole seconds since boot, or 0.
func (r *Reader) UpTime() int64 {
	data, ok := r.readProc(uptimeFilename)
	if !ok {
		return 0
	}
	raw, ok := fieldAt(firstLine(data), 0)
	if !ok {
		return 0
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.logger.Debug("failed to parse uptime", "value", raw, "err", err)
		return 0
	}
	return int64(seconds)
}

// TotalProcesses returns the number of forks since boot, or 0.
func (r *Reader) TotalProcesses() int {
	return r.statCounter("processes ")
}

// RunningProcesses returns the number of runnable processes, or 0.
func (r *Reader) RunningProcesses() int {
	return r.statCounter("procs_running ")
}

func (r *Reader) statCounter(prefix string) int {
	data, ok := r.readProc(statFilename)
	if !ok {
		return 0
	}
	line, ok := findLine(data, prefix)
	if !ok {
		return 0
	}
	raw, ok := fieldAt(line, 1)
	if !ok {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		r.logger.Debug("failed to parse stat counter", "key", strings.TrimSpace(prefix), "value", raw, "err", err)
		return 0
	}
	return value
}

// LoadAverage holds the 1, 5 and 15 minute run-queue averages.
type LoadAverage struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// LoadAverage reads the loadavg file. The boolean is false when it is unreadable.
func (r *Reader) LoadAverage() (LoadAverage, bool) {
	avg, err := r.procFS.LoadAvg()
	if err != nil {
		r.logger.Debug("loadavg unavailable", "err", err)
		return LoadAverage{}, false
	}
	return LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, true
}
