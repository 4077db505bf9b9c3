package process

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	hz      int64
	active  map[int]uint64
	uptime  map[int]int64
	ram     map[int]string
	users   map[int]string
	cmds    map[int]string
	userHit   int
	cmdHit    int
	ramHit    int
	statReads int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		hz:     100,
		active: map[int]uint64{},
		uptime: map[int]int64{},
		ram:    map[int]string{},
		users:  map[int]string{},
		cmds:   map[int]string{},
	}
}

func (f *fakeSource) ProcessActiveJiffies(pid int) uint64 {
	f.statReads++
	return f.active[pid]
}

func (f *fakeSource) ProcessUpTime(pid int) int64 {
	f.statReads++
	return f.uptime[pid]
}

func (f *fakeSource) ClockTicks() int64 { return f.hz }

func (f *fakeSource) RAM(pid int) string {
	f.ramHit++
	return f.ram[pid]
}

func (f *fakeSource) User(pid int) string {
	f.userHit++
	return f.users[pid]
}

func (f *fakeSource) Command(pid int) string {
	f.cmdHit++
	return f.cmds[pid]
}

func TestCPUUtilizationLifetimeAverage(t *testing.T) {
	src := newFakeSource()
	// 1000 jiffies at 100 Hz = 10 active seconds over 20 seconds alive.
	src.active[1] = 1000
	src.uptime[1] = 20

	p := New(1, src)
	assert.InDelta(t, 0.5, p.Usage(), 1e-12)
	assert.InDelta(t, 0.5, p.CPUUtilization(), 1e-12)

	src.active[1] = 3000
	src.uptime[1] = 40
	assert.InDelta(t, 0.75, p.CPUUtilization(), 1e-12, "recomputed on every call")
}

func TestCPUUtilizationZeroUptime(t *testing.T) {
	src := newFakeSource()
	src.active[1] = 500

	p := New(1, src)
	assert.Equal(t, 0.0, p.CPUUtilization())

	src.hz = 0
	src.uptime[1] = 10
	assert.Equal(t, 0.0, p.CPUUtilization())
}

func TestUserAndCommandResolvedOnce(t *testing.T) {
	src := newFakeSource()
	src.users[7] = "alice"
	src.cmds[7] = "sleep\x00100\x00"

	p := New(7, src)
	for range 3 {
		assert.Equal(t, "alice", p.User())
		assert.Equal(t, "sleep\x00100\x00", p.Command())
	}
	assert.Equal(t, 1, src.userHit)
	assert.Equal(t, 1, src.cmdHit)

	src.users[7] = "bob"
	assert.Equal(t, "alice", p.User())
}

func TestEmptyCommandIsCached(t *testing.T) {
	src := newFakeSource()
	p := New(9, src)

	assert.Equal(t, "", p.Command())
	src.cmds[9] = "late"
	assert.Equal(t, "", p.Command())
	assert.Equal(t, 1, src.cmdHit)
}

func TestRAMAndUpTimeAreLive(t *testing.T) {
	src := newFakeSource()
	src.ram[3] = "1.00"
	src.uptime[3] = 5

	p := New(3, src)
	assert.Equal(t, "1.00", p.RAM())
	assert.Equal(t, int64(5), p.UpTime())

	src.ram[3] = "2.50"
	src.uptime[3] = 6
	assert.Equal(t, "2.50", p.RAM())
	assert.Equal(t, int64(6), p.UpTime())
	assert.Equal(t, 2, src.ramHit)
}

func TestOrdering(t *testing.T) {
	src := newFakeSource()
	src.active[1], src.uptime[1] = 200, 10 // 0.2
	src.active[2], src.uptime[2] = 800, 10 // 0.8
	src.active[3], src.uptime[3] = 500, 10 // 0.5

	a, b, c := New(1, src), New(2, src), New(3, src)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Negative(t, Compare(a, b))
	assert.Zero(t, Compare(a, a))

	procs := []*Process{b, a, c}
	slices.SortFunc(procs, Compare)
	require.Len(t, procs, 3)
	assert.Equal(t, []int{1, 3, 2}, []int{procs[0].PID(), procs[1].PID(), procs[2].PID()})
}

func TestObserveUsesGivenReading(t *testing.T) {
	src := newFakeSource()
	// Started 200s after boot, host up 1000s: 800s alive, 400 active seconds.
	stat := Stat{ActiveJiffies: 40000, StartTime: 20000, HostUpTime: 1000}

	p := NewFromStat(5, src, stat)
	assert.InDelta(t, 0.5, p.Usage(), 1e-12)
	assert.Equal(t, int64(800), p.Elapsed())

	stat.ActiveJiffies, stat.HostUpTime = 120000, 1800
	assert.InDelta(t, 0.75, p.Observe(stat), 1e-12)
	assert.Equal(t, int64(1600), p.Elapsed())
	assert.Zero(t, src.statReads, "observing must not read the source")
}

func TestObserveMatchesCPUUtilization(t *testing.T) {
	src := newFakeSource()
	src.active[2] = 1500
	src.uptime[2] = 30

	live := New(2, src)
	observed := NewFromStat(2, src, Stat{ActiveJiffies: 1500, StartTime: 7000, HostUpTime: 100})
	assert.InDelta(t, live.Usage(), observed.Usage(), 1e-12)
	assert.Equal(t, int64(30), observed.Elapsed())
}

func TestObserveUndefinedUptime(t *testing.T) {
	src := newFakeSource()

	// Start tick beyond the host uptime clamps to zero seconds alive.
	p := NewFromStat(4, src, Stat{ActiveJiffies: 500, StartTime: 500000, HostUpTime: 10})
	assert.Zero(t, p.Usage())
	assert.Zero(t, p.Elapsed())

	src.hz = 0
	assert.Zero(t, p.Observe(Stat{ActiveJiffies: 500, HostUpTime: 10}))
}
