package proc

import "errors"

var (
	// ErrNoCPULine indicates that the stat file had no aggregate "cpu" line.
	ErrNoCPULine = errors.New("proc: no aggregate cpu line")

	// ErrShortStat indicates that a per-process stat line ended before a required field.
	ErrShortStat = errors.New("proc: short stat")

	// ErrMalformed indicates a kernel field that could not be parsed.
	// Seeing it means the kernel text layout drifted from what the parser expects.
	ErrMalformed = errors.New("proc: malformed field")
)
