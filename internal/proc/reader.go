// Package proc reads host and per-process accounting data from a Linux
// proc filesystem. Every exported accessor is fail-soft: a missing file,
// a vanished process or a short line yields the documented zero value and
// is only reported through the debug log.
package proc

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/procfs"
)

const (
	statFilename    = "stat"
	meminfoFilename = "meminfo"
	uptimeFilename  = "uptime"
	versionFilename = "version"
	statusFilename  = "status"
	cmdlineFilename = "cmdline"
)

// Paths locates the files a Reader parses. Tests point these at fixture trees.
type Paths struct {
	ProcRoot      string
	OSReleasePath string
	PasswdPath    string
}

// DefaultPaths returns the conventional locations on a Linux host.
func DefaultPaths() Paths {
	return Paths{
		ProcRoot:      "/proc",
		OSReleasePath: "/etc/os-release",
		PasswdPath:    "/etc/passwd",
	}
}

// Reader extracts typed values from proc files. It keeps no state between
// calls other than the open proc root handle.
type Reader struct {
	paths  Paths
	root   *os.Root
	procFS procfs.FS
	hz     int64
	logger *slog.Logger
}

// NewReader opens the proc root described by paths. A clockTicks value of
// zero asks the OS for the clock-tick frequency.
func NewReader(paths Paths, clockTicks int64, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	defaults := DefaultPaths()
	if paths.ProcRoot == "" {
		paths.ProcRoot = defaults.ProcRoot
	}
	if paths.OSReleasePath == "" {
		paths.OSReleasePath = defaults.OSReleasePath
	}
	if paths.PasswdPath == "" {
		paths.PasswdPath = defaults.PasswdPath
	}
	if clockTicks < 0 {
		return nil, fmt.Errorf("clock ticks must be >= 0")
	}
	if clockTicks == 0 {
		clockTicks = systemClockTicks()
	}

	root, err := os.OpenRoot(paths.ProcRoot)
	if err != nil {
		return nil, fmt.Errorf("open proc root: %w", err)
	}
	procFS, err := procfs.NewFS(paths.ProcRoot)
	if err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("init procfs: %w", err)
	}

	return &Reader{
		paths:  paths,
		root:   root,
		procFS: procFS,
		hz:     clockTicks,
		logger: logger,
	}, nil
}

// ClockTicks returns the number of jiffies per second used for conversions.
func (r *Reader) ClockTicks() int64 {
	return r.hz
}

// Paths returns the file locations the Reader was built with.
func (r *Reader) Paths() Paths {
	return r.paths
}

// Close releases the proc root handle.
func (r *Reader) Close() error {
	if r.root == nil {
		return nil
	}
	return r.root.Close()
}

// readProc reads a file relative to the proc root.
func (r *Reader) readProc(name string) ([]byte, bool) {
	data, err := r.root.ReadFile(name)
	if err != nil {
		r.logger.Debug("proc read failed", "path", filepath.Join(r.paths.ProcRoot, name), "err", err)
		return nil, false
	}
	return data, true
}

func (r *Reader) readPID(pid int, name string) ([]byte, bool) {
	return r.readProc(pidPath(pid, name))
}

func pidPath(pid int, name string) string {
	return filepath.Join(strconv.Itoa(pid), name)
}
