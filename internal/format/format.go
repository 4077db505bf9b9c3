// Package format renders durations for the process table.
package format

import "fmt"

// ElapsedTime renders seconds as H:MM:SS. Hours are not wrapped at 24 and
// negative input renders as 0:00:00.
func ElapsedTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := seconds % 3600 / 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds%60)
}
