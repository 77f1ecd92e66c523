package metrics

import (
	"sync/atomic"
	"time"
)

// GatewayHealth follows the gateway session. The session is considered
// healthy while connected and an event arrived within the stale window.
type GatewayHealth struct {
	connected  atomic.Bool
	lastEvent  atomic.Int64
	reconnects atomic.Uint64
	staleAfter time.Duration
	now        func() time.Time
}

func NewGatewayHealth() *GatewayHealth {
	return &GatewayHealth{staleAfter: 5 * time.Minute, now: time.Now}
}

func (gh *GatewayHealth) SetConnected(connected bool) {
	if connected && !gh.connected.Load() && gh.lastEvent.Load() != 0 {
		gh.reconnects.Add(1)
	}
	gh.connected.Store(connected)
	if connected {
		gh.lastEvent.Store(gh.now().UnixNano())
		GatewayConnected.Set(1)
	} else {
		GatewayConnected.Set(0)
	}
}

func (gh *GatewayHealth) RecordEvent() {
	gh.lastEvent.Store(gh.now().UnixNano())
}

func (gh *GatewayHealth) Reconnects() uint64 {
	return gh.reconnects.Load()
}

func (gh *GatewayHealth) IsHealthy() bool {
	if !gh.connected.Load() {
		return false
	}
	last := gh.lastEvent.Load()
	return gh.now().UnixNano()-last < gh.staleAfter.Nanoseconds()
}
