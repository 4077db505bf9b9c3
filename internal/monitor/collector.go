package monitor

import (
	"cmp"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/skobkin/proctop-web/internal/format"
	"github.com/skobkin/proctop-web/internal/proc"
	"github.com/skobkin/proctop-web/internal/process"
	"github.com/skobkin/proctop-web/internal/processor"
)

const maxCommandLen = 256

// processKey identifies a process across ticks. The start time keeps a
// recycled PID from inheriting the cached user and command of its predecessor.
type processKey struct {
	pid   int
	start uint64
}

type collector struct {
	reader    *proc.Reader
	processor *processor.Processor
	maxPIDs   int
	top       int
	logger    *slog.Logger
	known     map[processKey]*process.Process
}

func newCollector(reader *proc.Reader, maxPIDs, top int, logger *slog.Logger) *collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &collector{
		reader:    reader,
		processor: processor.New(reader),
		maxPIDs:   maxPIDs,
		top:       top,
		logger:    logger,
		known:     make(map[processKey]*process.Process),
	}
}

// collect reads the host uptime once so every process in the tick is
// measured against the same instant.
func (c *collector) collect(now time.Time) Snapshot {
	uptime := c.reader.UpTime()
	return Snapshot{
		Timestamp: now.UTC(),
		System:    c.system(uptime),
		Processes: c.processes(uptime),
	}
}

func (c *collector) system(uptime int64) System {
	sys := System{
		OS:               c.reader.OperatingSystem(),
		Kernel:           c.reader.Kernel(),
		CPUUtilization:   c.processor.Utilization(),
		UptimeSeconds:    uptime,
		Uptime:           format.ElapsedTime(uptime),
		TotalProcesses:   c.reader.TotalProcesses(),
		RunningProcesses: c.reader.RunningProcesses(),
	}
	if mem := c.reader.MemoryUtilization(); !math.IsNaN(mem) {
		sys.MemoryUtilization = &mem
	}
	if load, ok := c.reader.LoadAverage(); ok {
		sys.LoadAverage = &load
	}
	return sys
}

func (c *collector) processes(hostUpTime int64) []Process {
	pids := c.reader.PIDs()
	next := make(map[processKey]*process.Process, len(pids))
	tracked := make([]*process.Process, 0, len(pids))

	for _, pid := range pids {
		if c.maxPIDs > 0 && len(tracked) >= c.maxPIDs {
			break
		}
		stat, err := c.reader.ProcessStat(pid)
		if err != nil || !stat.HasStartTime() {
			// Exited between listing and reading, or a truncated line.
			c.logger.Debug("skipping process", "pid", pid, "err", err)
			continue
		}
		sample := process.Stat{
			ActiveJiffies: stat.ActiveJiffies(),
			StartTime:     stat.StartTime,
			HostUpTime:    hostUpTime,
		}
		key := processKey{pid: pid, start: stat.StartTime}
		p, ok := c.known[key]
		if ok {
			p.Observe(sample)
		} else {
			p = process.NewFromStat(pid, c.reader, sample)
		}
		next[key] = p
		tracked = append(tracked, p)
	}
	if dropped := len(c.known) - countKept(c.known, next); dropped > 0 {
		c.logger.Debug("processes gone since last tick", "count", dropped)
	}
	c.known = next

	slices.SortFunc(tracked, func(a, b *process.Process) int {
		if n := process.Compare(b, a); n != 0 {
			return n
		}
		return cmp.Compare(a.PID(), b.PID())
	})
	if c.top > 0 && len(tracked) > c.top {
		tracked = tracked[:c.top]
	}

	out := make([]Process, 0, len(tracked))
	for _, p := range tracked {
		uptime := p.Elapsed()
		out = append(out, Process{
			PID:            p.PID(),
			User:           p.User(),
			Command:        formatCmdline(p.Command()),
			CPUUtilization: p.Usage(),
			RAMMB:          p.RAM(),
			UptimeSeconds:  uptime,
			Uptime:         format.ElapsedTime(uptime),
		})
	}
	return out
}

func countKept(prev, next map[processKey]*process.Process) int {
	kept := 0
	for key := range prev {
		if _, ok := next[key]; ok {
			kept++
		}
	}
	return kept
}

// formatCmdline turns NUL-separated arguments into a single display line.
func formatCmdline(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "\x00")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	cmd := strings.Join(out, " ")
	if len(cmd) <= maxCommandLen {
		return cmd
	}
	cut := maxCommandLen
	for cut > 0 && !utf8.RuneStart(cmd[cut]) {
		cut--
	}
	return cmd[:cut]
}
