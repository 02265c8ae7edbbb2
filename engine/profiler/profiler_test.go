package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordDispatch(t *testing.T) {
	p := NewProfiler()
	p.RecordDispatch("0 (flat)", 2*time.Millisecond)
	p.RecordDispatch("0 (flat)", 4*time.Millisecond)
	p.RecordDispatch("2 (layered)", 9*time.Millisecond)

	stats := p.DispatchStats()
	assert.Len(t, stats, 2)
	flat := stats["0 (flat)"]
	assert.Equal(t, 2, flat.Count)
	assert.Equal(t, 3*time.Millisecond, flat.Mean())
	assert.Equal(t, 4*time.Millisecond, flat.Max)
	assert.Equal(t, 9*time.Millisecond, stats["2 (layered)"].Mean())
	assert.Zero(t, DispatchStat{}.Mean())
}

func TestTick_LogsAndResetsDispatches(t *testing.T) {
	p := NewProfiler()
	p.SetUpdateInterval(time.Hour)
	p.RecordDispatch("1 (step)", time.Millisecond)

	assert.False(t, p.Tick(), "interval not elapsed")
	assert.Len(t, p.DispatchStats(), 1)

	p.SetUpdateInterval(time.Nanosecond)
	time.Sleep(time.Millisecond)
	assert.True(t, p.Tick())
	assert.Empty(t, p.DispatchStats())
}

func TestGCPauses(t *testing.T) {
	p := NewProfiler()
	last, worst := p.gcPauses()
	assert.Zero(t, last)
	assert.Zero(t, worst)

	p.mem.NumGC = 3
	p.mem.PauseNs[0] = 500
	p.mem.PauseNs[1] = 9000
	p.mem.PauseNs[2] = 2000
	p.prevGC = 1
	last, worst = p.gcPauses()
	assert.Equal(t, 2*time.Microsecond, last)
	assert.Equal(t, 9*time.Microsecond, worst, "only pauses since the previous log count")
}
