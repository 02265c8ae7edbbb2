package profiler

import (
	"log"
	"maps"
	"runtime"
	"slices"
	"time"
)

const mb = 1 << 20

// DispatchStat accumulates the compute dispatch timings of one mode.
type DispatchStat struct {
	Count int
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average dispatch time, 0 when nothing was recorded.
func (s DispatchStat) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Profiler logs frame rate, Go heap behavior and per-mode dispatch timing once per interval.
// It is driven from the frame loop and is not safe for concurrent use.
type Profiler struct {
	interval time.Duration
	since    time.Time
	frames   int

	mem        runtime.MemStats
	prevGC     uint32
	prevAllocd uint64

	dispatches map[string]DispatchStat
}

// NewProfiler creates a profiler that logs once per second.
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler() *Profiler {
	return &Profiler{
		interval:   time.Second,
		since:      time.Now(),
		dispatches: make(map[string]DispatchStat),
	}
}

// SetUpdateInterval sets how often Tick logs statistics.
//
// Parameters:
//   - interval: the logging interval; values <= 0 keep the current interval
func (p *Profiler) SetUpdateInterval(interval time.Duration) {
	if interval > 0 {
		p.interval = interval
	}
}

// RecordDispatch adds one compute dispatch timing to the statistics of a mode.
//
// Parameters:
//   - mode: the mode label the dispatch ran under
//   - elapsed: the wall-clock time of the dispatch
func (p *Profiler) RecordDispatch(mode string, elapsed time.Duration) {
	s := p.dispatches[mode]
	s.Count++
	s.Total += elapsed
	s.Max = max(s.Max, elapsed)
	p.dispatches[mode] = s
}

// DispatchStats returns a copy of the per-mode dispatch statistics recorded since the last log.
func (p *Profiler) DispatchStats() map[string]DispatchStat {
	return maps.Clone(p.dispatches)
}

// Tick counts a frame and, once the interval has elapsed, logs and resets the statistics.
//
// Returns:
//   - bool: true if statistics were logged
func (p *Profiler) Tick() bool {
	p.frames++
	now := time.Now()
	elapsed := now.Sub(p.since)
	if elapsed < p.interval {
		return false
	}

	runtime.ReadMemStats(&p.mem)
	secs := elapsed.Seconds()
	last, worst := p.gcPauses()
	log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		float64(p.frames)/secs,
		float64(p.mem.Alloc)/mb,
		float64(p.mem.TotalAlloc-p.prevAllocd)/mb/secs,
		p.mem.NumGC, last.Microseconds(), worst.Microseconds(),
		float64(p.mem.Sys)/mb)
	for _, mode := range slices.Sorted(maps.Keys(p.dispatches)) {
		s := p.dispatches[mode]
		log.Printf("[Profiler] mode %s | dispatches: %d | mean: %s | max: %s", mode, s.Count, s.Mean(), s.Max)
	}

	clear(p.dispatches)
	p.frames = 0
	p.since = now
	p.prevGC = p.mem.NumGC
	p.prevAllocd = p.mem.TotalAlloc
	return true
}

// gcPauses returns the most recent GC pause and the longest pause since the previous log. The
// runtime keeps the last len(PauseNs) pauses in a ring.
func (p *Profiler) gcPauses() (last, worst time.Duration) {
	n := p.mem.NumGC
	if n == 0 {
		return 0, 0
	}
	ring := uint32(len(p.mem.PauseNs))
	from := p.prevGC
	if n-from > ring {
		from = n - ring
	}
	for i := from; i < n; i++ {
		worst = max(worst, time.Duration(p.mem.PauseNs[i%ring]))
	}
	return time.Duration(p.mem.PauseNs[(n-1)%ring]), worst
}
