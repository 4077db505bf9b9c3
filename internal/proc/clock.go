package proc

import "github.com/tklauser/go-sysconf"

// defaultClockTicks is USER_HZ on every mainstream Linux architecture.
const defaultClockTicks = 100

// systemClockTicks asks the OS for sysconf(_SC_CLK_TCK) without cgo.
func systemClockTicks() int64 {
	hz, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || hz <= 0 {
		return defaultClockTicks
	}
	return hz
}
