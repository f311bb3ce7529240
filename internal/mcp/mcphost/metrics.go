package mcphost

import (
	"slices"
	"sync"
)

// defaultWindowSize is the default capacity of each tool's rolling window.
const defaultWindowSize = 100

// rollingWindow keeps the latest size call outcomes of one tool in a ring
// buffer. All methods are safe for concurrent use.
type rollingWindow struct {
	mu      sync.Mutex
	samples []int64 // latency in ms
	failed  []bool
	pos     int // next write position
	count   int // total samples written, may exceed size
	errors  int // failed samples currently in the buffer
	size    int
}

// newRollingWindow creates a window with the given capacity. A size of 0 or
// less defaults to [defaultWindowSize].
func newRollingWindow(size int) *rollingWindow {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &rollingWindow{
		samples: make([]int64, size),
		failed:  make([]bool, size),
		size:    size,
	}
}

// Record adds one call outcome, evicting the oldest once the buffer is full.
func (w *rollingWindow) Record(latencyMs int64, isError bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count >= w.size && w.failed[w.pos] {
		w.errors--
	}
	w.samples[w.pos] = latencyMs
	w.failed[w.pos] = isError
	if isError {
		w.errors++
	}
	w.pos = (w.pos + 1) % w.size
	w.count++
}

func (w *rollingWindow) windowLen() int {
	return min(w.count, w.size)
}

// sortedCopy returns the buffered latencies in ascending order. Must be
// called with w.mu held.
func (w *rollingWindow) sortedCopy() []int64 {
	n := w.windowLen()
	if n == 0 {
		return nil
	}
	cp := slices.Clone(w.samples[:n])
	slices.Sort(cp)
	return cp
}

func (w *rollingWindow) percentile(p float64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	sorted := w.sortedCopy()
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p+0.5)]
}

// P50 returns the median latency in ms, or 0 without samples.
func (w *rollingWindow) P50() int64 { return w.percentile(0.50) }

// P99 returns the 99th-percentile latency in ms, or 0 without samples.
func (w *rollingWindow) P99() int64 { return w.percentile(0.99) }

// ErrorRate returns the fraction of buffered calls that failed.
func (w *rollingWindow) ErrorRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.windowLen()
	if n == 0 {
		return 0
	}
	return float64(w.errors) / float64(n)
}

// Count returns the total number of recorded calls.
func (w *rollingWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
