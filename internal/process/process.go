// Package process models a single OS process as seen through the proc reader.
//
// CPU utilization here is the lifetime average (active CPU seconds divided by
// seconds alive), unlike the host figure in package processor which is a
// delta between two samples.
package process

import "cmp"

// Source is the part of the proc reader a Process reads from.
type Source interface {
	ProcessActiveJiffies(pid int) uint64
	ProcessUpTime(pid int) int64
	RAM(pid int) string
	User(pid int) string
	Command(pid int) string
	ClockTicks() int64
}

// memo caches a value after the first load, including an empty one.
type memo[T any] struct {
	value T
	ok    bool
}

func (m *memo[T]) get(load func() T) T {
	if !m.ok {
		m.value = load()
		m.ok = true
	}
	return m.value
}

// Stat is one reading of a process's CPU accounting and the host uptime it
// is measured against. StartTime is in jiffies after boot.
type Stat struct {
	ActiveJiffies uint64
	StartTime     uint64
	HostUpTime    int64
}

// Process is owned by a single caller and is not safe for concurrent use.
type Process struct {
	pid     int
	source  Source
	user    memo[string]
	command memo[string]
	usage   float64
	elapsed int64
}

// New builds a Process and computes its initial utilization so it can be ordered.
func New(pid int, source Source) *Process {
	p := &Process{pid: pid, source: source}
	p.CPUUtilization()
	return p
}

// NewFromStat builds a Process from a reading the caller already holds.
func NewFromStat(pid int, source Source, stat Stat) *Process {
	p := &Process{pid: pid, source: source}
	p.Observe(stat)
	return p
}

// PID returns the process identifier.
func (p *Process) PID() int {
	return p.pid
}

// User returns the owner's user name, resolved once.
func (p *Process) User() string {
	return p.user.get(func() string { return p.source.User(p.pid) })
}

// Command returns the raw command line, resolved once. It is empty when the
// process exited before the first read.
func (p *Process) Command() string {
	return p.command.get(func() string { return p.source.Command(p.pid) })
}

// RAM returns the current virtual memory size in MB; it is read on every call.
func (p *Process) RAM() string {
	return p.source.RAM(p.pid)
}

// UpTime returns the seconds since the process started; it is read on every call.
func (p *Process) UpTime() int64 {
	return p.source.ProcessUpTime(p.pid)
}

// CPUUtilization recomputes active seconds over seconds alive. A process with
// zero uptime reports 0.
func (p *Process) CPUUtilization() float64 {
	hz := p.source.ClockTicks()
	uptime := p.source.ProcessUpTime(p.pid)
	if hz <= 0 || uptime <= 0 {
		p.usage = 0
		return p.usage
	}
	p.usage = lifetimeAverage(p.source.ProcessActiveJiffies(p.pid), uptime, hz)
	return p.usage
}

// Observe recomputes utilization and elapsed time from stat without reading
// any files, so both come from the same instant.
func (p *Process) Observe(stat Stat) float64 {
	hz := p.source.ClockTicks()
	p.elapsed, p.usage = 0, 0
	if hz <= 0 {
		return 0
	}
	p.elapsed = max(stat.HostUpTime-int64(stat.StartTime/uint64(hz)), 0)
	if p.elapsed > 0 {
		p.usage = lifetimeAverage(stat.ActiveJiffies, p.elapsed, hz)
	}
	return p.usage
}

// Elapsed returns the seconds alive as of the latest Observe.
func (p *Process) Elapsed() int64 {
	return p.elapsed
}

func lifetimeAverage(active uint64, uptime, hz int64) float64 {
	return float64(active) / float64(hz) / float64(uptime)
}

// Usage returns the value computed by the latest CPUUtilization call.
func (p *Process) Usage() float64 {
	return p.usage
}

// Less orders processes by their latest utilization, ascending.
func (p *Process) Less(other *Process) bool {
	return p.usage < other.usage
}

// Compare is Less in the form slices.SortFunc expects.
func Compare(a, b *Process) int {
	return cmp.Compare(a.usage, b.usage)
}
