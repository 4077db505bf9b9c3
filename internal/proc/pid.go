package proc

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// 1-indexed field positions of /proc/<pid>/stat, see proc(5).
const (
	statFieldState     = 3
	statFieldUTime     = 14
	statFieldSTime     = 15
	statFieldCUTime    = 16
	statFieldCSTime    = 17
	statFieldStartTime = 22
)

// ProcStat is the subset of /proc/<pid>/stat the monitor uses.
type ProcStat struct {
	PID       int
	Comm      string
	State     string
	UTime     uint64
	STime     uint64
	CUTime    uint64
	CSTime    uint64
	StartTime uint64

	fields int
}

// HasTimes reports whether the line reached the cstime field.
func (s ProcStat) HasTimes() bool {
	return s.fields >= statFieldCSTime
}

// HasStartTime reports whether the line reached the starttime field.
func (s ProcStat) HasStartTime() bool {
	return s.fields >= statFieldStartTime
}

// require returns ErrShortStat when the line ended before field n.
func (s ProcStat) require(n int) error {
	if s.fields < n {
		return fmt.Errorf("%w: %d fields, need %d", ErrShortStat, s.fields, n)
	}
	return nil
}

// ActiveJiffies sums utime, stime, cutime and cstime.
func (s ProcStat) ActiveJiffies() uint64 {
	return s.UTime + s.STime + s.CUTime + s.CSTime
}

// parseProcStat splits after the last ')' so a comm containing spaces or
// parentheses cannot shift the numeric offsets.
func parseProcStat(line string) (ProcStat, error) {
	open := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if open < 0 || end < open {
		return ProcStat{}, fmt.Errorf("%w: stat comm", ErrMalformed)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(line[:open]))
	if err != nil {
		return ProcStat{}, fmt.Errorf("%w: stat pid: %v", ErrMalformed, err)
	}

	rest := strings.Fields(line[end+1:])
	stat := ProcStat{
		PID:    pid,
		Comm:   line[open+1 : end],
		fields: 2 + len(rest),
	}
	// rest[0] is field 3.
	field := func(n int) string { return rest[n-statFieldState] }
	parse := func(n int, dst *uint64) error {
		value, err := strconv.ParseUint(field(n), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: stat field %d: %v", ErrMalformed, n, err)
		}
		*dst = value
		return nil
	}

	if stat.fields >= statFieldState {
		stat.State = field(statFieldState)
	}
	if stat.HasTimes() {
		for n, dst := range map[int]*uint64{
			statFieldUTime:  &stat.UTime,
			statFieldSTime:  &stat.STime,
			statFieldCUTime: &stat.CUTime,
			statFieldCSTime: &stat.CSTime,
		} {
			if err := parse(n, dst); err != nil {
				return ProcStat{}, err
			}
		}
	}
	if stat.HasStartTime() {
		if err := parse(statFieldStartTime, &stat.StartTime); err != nil {
			return ProcStat{}, err
		}
	}
	return stat, nil
}

// PIDs lists the numeric directories under the proc root in enumeration order.
func (r *Reader) PIDs() []int {
	entries, err := fs.ReadDir(r.root.FS(), ".")
	if err != nil {
		r.logger.Debug("failed to list proc root", "path", r.paths.ProcRoot, "err", err)
		return nil
	}
	pids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !allDigits(entry.Name()) {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

// ProcessStat reads and parses /proc/<pid>/stat.
func (r *Reader) ProcessStat(pid int) (ProcStat, error) {
	data, err := r.root.ReadFile(pidPath(pid, statFilename))
	if err != nil {
		return ProcStat{}, fmt.Errorf("read stat: %w", err)
	}
	return parseProcStat(firstLine(data))
}

// ProcessActiveJiffies returns utime+stime+cutime+cstime for pid, or 0 when
// the process is gone or its stat line is short.
func (r *Reader) ProcessActiveJiffies(pid int) uint64 {
	stat, err := r.ProcessStat(pid)
	if err == nil {
		err = stat.require(statFieldCSTime)
	}
	if err != nil {
		r.logger.Debug("process stat unavailable", "pid", pid, "err", err)
		return 0
	}
	return stat.ActiveJiffies()
}

// ProcessStartTime returns the start time of pid in jiffies after boot.
func (r *Reader) ProcessStartTime(pid int) (uint64, bool) {
	stat, err := r.ProcessStat(pid)
	if err == nil {
		err = stat.require(statFieldStartTime)
	}
	if err != nil {
		r.logger.Debug("process stat unavailable", "pid", pid, "err", err)
		return 0, false
	}
	return stat.StartTime, true
}

// ProcessUpTime returns the seconds pid has been alive, or 0.
func (r *Reader) ProcessUpTime(pid int) int64 {
	start, ok := r.ProcessStartTime(pid)
	if !ok {
		return 0
	}
	uptime := r.UpTime() - int64(start/uint64(r.hz))
	if uptime < 0 {
		return 0
	}
	return uptime
}

// RAM returns VmSize in MB with two decimals, or "".
func (r *Reader) RAM(pid int) string {
	raw, ok := r.statusField(pid, "VmSize:")
	if !ok {
		return ""
	}
	kb, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.logger.Debug("failed to parse VmSize", "pid", pid, "value", raw, "err", err)
		return ""
	}
	return strconv.FormatFloat(kb/1000, 'f', 2, 64)
}

// UID returns the real user id from /proc/<pid>/status, or "".
func (r *Reader) UID(pid int) string {
	uid, _ := r.statusField(pid, "Uid:")
	return uid
}

func (r *Reader) statusField(pid int, prefix string) (string, bool) {
	data, ok := r.readPID(pid, statusFilename)
	if !ok {
		return "", false
	}
	line, ok := findLine(data, prefix)
	if !ok {
		return "", false
	}
	return fieldAt(line, 1)
}

// User resolves the owner of pid through the passwd file, or "".
func (r *Reader) User(pid int) string {
	uid := r.UID(pid)
	if uid == "" {
		return ""
	}
	f, err := os.Open(r.paths.PasswdPath)
	if err != nil {
		r.logger.Debug("passwd unavailable", "path", r.paths.PasswdPath, "err", err)
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) >= 3 && parts[2] == uid {
			return parts[0]
		}
	}
	return ""
}

// Command returns the first line of /proc/<pid>/cmdline verbatim, NUL
// separators included, or "".
func (r *Reader) Command(pid int) string {
	data, ok := r.readPID(pid, cmdlineFilename)
	if !ok {
		return ""
	}
	return firstLine(data)
}
