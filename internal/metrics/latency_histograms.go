package metrics

import (
	"sync/atomic"
	"time"
)

// LatencyHistogram keeps lock-free min/max/avg of pipeline latency and mirrors
// every sample into PipelineSeconds.
type LatencyHistogram struct {
	min   atomic.Int64
	max   atomic.Int64
	count atomic.Uint64
	sum   atomic.Int64
}

func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{}
}

func (lh *LatencyHistogram) Record(kind string, d time.Duration) {
	ns := d.Nanoseconds()
	if ns < 0 {
		ns = 0
	}
	lh.count.Add(1)
	lh.sum.Add(ns)

	for {
		old := lh.min.Load()
		if old != 0 && ns >= old {
			break
		}
		if lh.min.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := lh.max.Load()
		if ns <= old {
			break
		}
		if lh.max.CompareAndSwap(old, ns) {
			break
		}
	}

	PipelineSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func (lh *LatencyHistogram) GetStats() LatencyStats {
	count := lh.count.Load()
	var avg time.Duration
	if count > 0 {
		avg = time.Duration(lh.sum.Load() / int64(count))
	}

	return LatencyStats{
		Min:   time.Duration(lh.min.Load()),
		Max:   time.Duration(lh.max.Load()),
		Avg:   avg,
		Count: count,
	}
}

type LatencyStats struct {
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	Count uint64
}
