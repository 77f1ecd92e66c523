package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/pkg/util"
)

// Handler processes one event. It runs on the shard owning the event's guild.
type Handler func(ctx context.Context, ev Event)

// Pipeline fans gateway events out to a fixed number of shards keyed by guild,
// so one guild's events are handled in arrival order while different guilds
// proceed in parallel. A full shard drops the event instead of stalling the
// gateway.
type Pipeline struct {
	shards  []chan Event
	mask    uint64
	dropped atomic.Uint64
	closed  atomic.Bool
	mu      sync.RWMutex
}

// NewPipeline rounds shards up to a power of two.
func NewPipeline(shards, depth int) *Pipeline {
	if shards < 1 {
		shards = 1
	}
	if depth < 1 {
		depth = 1
	}
	n := nextPowerOf2(uint32(shards))

	p := &Pipeline{
		shards: make([]chan Event, n),
		mask:   uint64(n - 1),
	}
	for i := range p.shards {
		p.shards[i] = make(chan Event, depth)
	}
	return p
}

func (p *Pipeline) shardFor(guildID uint64) int {
	return int(util.HashIndex64(guildID, p.mask))
}

// Submit reports false when the event was dropped.
func (p *Pipeline) Submit(ev Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return false
	}

	select {
	case p.shards[p.shardFor(ev.GuildID)] <- ev:
		return true
	default:
		p.dropped.Add(1)
		metrics.EventsDropped.WithLabelValues(ev.Kind.String()).Inc()
		logging.Warn("Dropped %s event for guild %d: shard full", ev.Kind, ev.GuildID)
		return false
	}
}

// Run consumes every shard until ctx is cancelled, then drains what was
// already accepted and returns. Handlers get a context that outlives ctx so
// drained events can still be persisted.
func (p *Pipeline) Run(ctx context.Context, handle Handler) {
	base := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, shard := range p.shards {
		wg.Add(1)
		go func(events <-chan Event) {
			defer wg.Done()
			for ev := range events {
				handle(base, ev)
			}
		}(shard)
	}

	<-ctx.Done()
	p.Close()
	wg.Wait()
}

// Close stops accepting events. Shard consumers exit once drained.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Swap(true) {
		return
	}
	for _, shard := range p.shards {
		close(shard)
	}
}

func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Pipeline) Depth() int {
	n := 0
	for _, shard := range p.shards {
		n += len(shard)
	}
	return n
}

func nextPowerOf2(n uint32) uint32 {
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}
