// Package profiler reports frame rate, memory and skipped-frame statistics at a fixed interval.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/phex-go/engine/logging"
)

const defaultInterval = time.Second

// Stats is one reporting window.
type Stats struct {
	// FPS is presented frames per second over the window.
	FPS float64
	// Skipped is how many frames were skipped in the window, usually while the surface was
	// reconfigured or minimized.
	Skipped int
	// HeapMB is live heap memory.
	HeapMB float64
	// AllocRateMB is heap allocation churn per second.
	AllocRateMB float64
	// GCCount is the total number of completed GC cycles.
	GCCount uint32
	// LastPauseUs and MaxPauseUs are the most recent and the longest GC pause in the window.
	LastPauseUs, MaxPauseUs uint64
	// SysMB is the memory obtained from the OS.
	SysMB float64
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	skipped        int
	lastTime       time.Time
	updateInterval time.Duration
	now            func() time.Time
	readMem        bool
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: defaultInterval,
		now:            time.Now,
		readMem:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick records one presented frame and logs the window's statistics once the update interval has
// elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	return p.flush()
}

// Skip records one skipped frame. Skipped frames do not count toward FPS.
//
// Returns:
//   - bool: true if stats were logged, false otherwise
func (p *Profiler) Skip() bool {
	p.skipped++
	return p.flush()
}

// Last returns the most recently logged window.
func (p *Profiler) Last() Stats {
	return p.last
}

func (p *Profiler) flush() bool {
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	s := Stats{
		FPS:     float64(p.frameCount) / elapsed.Seconds(),
		Skipped: p.skipped,
	}
	if p.readMem {
		p.readMemStats(&s, elapsed)
	}

	logging.Info("profile",
		"fps", round2(s.FPS),
		"skipped", s.Skipped,
		"heap_mb", round2(s.HeapMB),
		"alloc_mb_s", round2(s.AllocRateMB),
		"gc", s.GCCount,
		"gc_last_us", s.LastPauseUs,
		"gc_max_us", s.MaxPauseUs,
		"sys_mb", round2(s.SysMB),
	)

	p.last = s
	p.frameCount = 0
	p.skipped = 0
	p.lastTime = currentTime
	return true
}

func (p *Profiler) readMemStats(s *Stats, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	s.GCCount = p.memStats.NumGC
	if s.GCCount > 0 {
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		start := p.lastGCCount
		if s.GCCount-start > 256 {
			start = s.GCCount - 256
		}
		for i := start; i < s.GCCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
