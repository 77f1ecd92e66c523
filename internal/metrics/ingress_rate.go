package metrics

import (
	"sync/atomic"
	"time"
)

// IngressRateCounter tracks routed events per second since start or last reset.
type IngressRateCounter struct {
	events    atomic.Uint64
	startTime atomic.Int64
	now       func() time.Time
}

func NewIngressRateCounter() *IngressRateCounter {
	irc := &IngressRateCounter{now: time.Now}
	irc.startTime.Store(irc.now().UnixNano())
	return irc
}

func (irc *IngressRateCounter) Increment(kind string) {
	irc.events.Add(1)
	EventsIngested.WithLabelValues(kind).Inc()
}

func (irc *IngressRateCounter) GetRate() float64 {
	elapsed := irc.now().UnixNano() - irc.startTime.Load()
	if elapsed <= 0 {
		return 0
	}
	return float64(irc.events.Load()) / (float64(elapsed) / 1e9)
}

func (irc *IngressRateCounter) GetCount() uint64 {
	return irc.events.Load()
}

func (irc *IngressRateCounter) Reset() {
	irc.events.Store(0)
	irc.startTime.Store(irc.now().UnixNano())
}
