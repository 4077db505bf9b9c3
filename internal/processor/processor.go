// Package processor computes host CPU utilization from two consecutive
// samples of the cumulative jiffy counters.
package processor

import "github.com/skobkin/proctop-web/internal/proc"

// Source supplies one aggregate counter snapshot per call.
type Source interface {
	CPUStat() (proc.CPUStat, error)
}

// Processor keeps the previous and current idle, non-idle and total counters.
// It is not safe for concurrent use.
type Processor struct {
	source Source

	prevIdle    uint64
	idle        uint64
	prevNonIdle uint64
	nonIdle     uint64
	prevTotal   uint64
	total       uint64
}

// New returns a Processor in the uninitialized state (all counters zero).
func New(source Source) *Processor {
	return &Processor{source: source}
}

// Utilization shifts the current counters into the previous slot, samples
// fresh ones and returns Δnon-idle / Δtotal in [0, 1].
//
// The first call measures against zero counters and therefore reports the
// average load since boot. When the snapshot cannot be read or no time has
// elapsed the result is 0 and, for a failed read, the counters stay put.
func (p *Processor) Utilization() float64 {
	stat, err := p.source.CPUStat()
	if err != nil {
		return 0
	}

	p.prevIdle = p.idle
	p.prevNonIdle = p.nonIdle
	p.prevTotal = p.total

	p.idle = stat.IdleJiffies()
	p.nonIdle = stat.ActiveJiffies()
	p.total = p.idle + p.nonIdle

	deltaTotal := deltaU64(p.total, p.prevTotal)
	if deltaTotal == 0 {
		return 0
	}
	return clamp01(float64(deltaU64(p.nonIdle, p.prevNonIdle)) / float64(deltaTotal))
}

func deltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	// counter reset
	return 0
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
