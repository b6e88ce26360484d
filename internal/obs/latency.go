package obs

import (
	"fmt"
	"sync/atomic"
	"time"
)

// LatencyStats aggregates duration samples lock-free.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
	last  uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	Last  time.Duration
}

func (s LatencySnapshot) String() string {
	if s.Count == 0 {
		return "no samples"
	}
	return fmt.Sprintf("count=%d min=%s avg=%s max=%s last=%s", s.Count, s.Min, s.Avg, s.Max, s.Last)
}

// Observe records a duration sample. Negative samples are dropped.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)
	atomic.StoreUint64(&l.last, nanos)

	for {
		cur := atomic.LoadUint64(&l.min)
		if cur != 0 && nanos >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, cur, nanos) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&l.max)
		if nanos <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, cur, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
		Last:  time.Duration(atomic.LoadUint64(&l.last)),
	}
}
