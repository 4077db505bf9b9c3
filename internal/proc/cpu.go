package proc

import (
	"fmt"
	"strconv"
	"strings"
)

// cpuLinePrefix matches the aggregate line only; per-core lines start with "cpu0", "cpu1", ...
const cpuLinePrefix = "cpu "

// CPUStat holds the cumulative jiffies of the aggregate cpu line, in kernel order.
// Fields missing on older kernels stay zero.
type CPUStat struct {
	User      uint64
	Nice      uint64
	System    uint64
	Idle      uint64
	IOWait    uint64
	IRQ       uint64
	SoftIRQ   uint64
	Steal     uint64
	Guest     uint64
	GuestNice uint64
}

// ActiveJiffies sums user, nice, system, irq, softirq and steal.
// Guest time is already accounted in user and nice.
func (s CPUStat) ActiveJiffies() uint64 {
	return s.User + s.Nice + s.System + s.IRQ + s.SoftIRQ + s.Steal
}

// IdleJiffies sums idle and iowait.
func (s CPUStat) IdleJiffies() uint64 {
	return s.Idle + s.IOWait
}

// TotalJiffies is ActiveJiffies plus IdleJiffies.
func (s CPUStat) TotalJiffies() uint64 {
	return s.ActiveJiffies() + s.IdleJiffies()
}

func parseCPUStat(values []string) (CPUStat, error) {
	var stat CPUStat
	if len(values) == 0 {
		return stat, ErrNoCPULine
	}
	fields := []*uint64{
		&stat.User, &stat.Nice, &stat.System, &stat.Idle, &stat.IOWait,
		&stat.IRQ, &stat.SoftIRQ, &stat.Steal, &stat.Guest, &stat.GuestNice,
	}
	for i, value := range values {
		if i >= len(fields) {
			break
		}
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return CPUStat{}, fmt.Errorf("%w: cpu field %d: %v", ErrMalformed, i+1, err)
		}
		*fields[i] = parsed
	}
	return stat, nil
}

func (r *Reader) cpuValues() ([]string, error) {
	data, err := r.root.ReadFile(statFilename)
	if err != nil {
		return nil, fmt.Errorf("read stat: %w", err)
	}
	line, ok := findLine(data, cpuLinePrefix)
	if !ok {
		return nil, ErrNoCPULine
	}
	return strings.Fields(line)[1:], nil
}

// CPUUtilization returns the counters of the aggregate cpu line as raw
// tokens, without the leading label. It returns nil when the line is missing.
func (r *Reader) CPUUtilization() []string {
	values, err := r.cpuValues()
	if err != nil {
		r.logger.Debug("cpu line unavailable", "err", err)
		return nil
	}
	return values
}

// CPUStat reads and parses one snapshot of the aggregate cpu line.
// Callers that need idle and active time from the same instant must use
// a single CPUStat rather than calling IdleJiffies and ActiveJiffies.
func (r *Reader) CPUStat() (CPUStat, error) {
	values, err := r.cpuValues()
	if err != nil {
		return CPUStat{}, err
	}
	return parseCPUStat(values)
}

func (r *Reader) softCPUStat() CPUStat {
	stat, err := r.CPUStat()
	if err != nil {
		r.logger.Debug("cpu stat unavailable", "err", err)
		return CPUStat{}
	}
	return stat
}

// ActiveJiffies returns the host's non-idle jiffies since boot, or 0.
func (r *Reader) ActiveJiffies() uint64 {
	return r.softCPUStat().ActiveJiffies()
}

// IdleJiffies returns the host's idle and iowait jiffies since boot, or 0.
func (r *Reader) IdleJiffies() uint64 {
	return r.softCPUStat().IdleJiffies()
}

// Jiffies returns the host's total jiffies since boot, or 0.
func (r *Reader) Jiffies() uint64 {
	return r.softCPUStat().TotalJiffies()
}
