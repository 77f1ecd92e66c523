package dispatcher

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

// RateLimitBucket mirrors Discord's per-route rate limit headers.
type RateLimitBucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RateLimitMonitor remembers the last seen bucket per route and guild so that
// callers can wait instead of earning a 429.
type RateLimitMonitor struct {
	mu      sync.RWMutex
	buckets map[string]*RateLimitBucket
	now     func() time.Time
}

func NewRateLimitMonitor() *RateLimitMonitor {
	return &RateLimitMonitor{
		buckets: make(map[string]*RateLimitBucket),
		now:     time.Now,
	}
}

// WaitTime is zero when the route may be called immediately.
func (rlm *RateLimitMonitor) WaitTime(route string, guildID uint64) time.Duration {
	rlm.mu.RLock()
	bucket, exists := rlm.buckets[rlm.getKey(route, guildID)]
	rlm.mu.RUnlock()

	if !exists || bucket.Remaining > 0 {
		return 0
	}

	wait := bucket.ResetAt.Sub(rlm.now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (rlm *RateLimitMonitor) CanExecute(route string, guildID uint64) bool {
	return rlm.WaitTime(route, guildID) == 0
}

func (rlm *RateLimitMonitor) UpdateFromFastHTTPResponse(resp *fasthttp.Response, route string, guildID uint64) {
	remaining := string(resp.Header.Peek("X-RateLimit-Remaining"))
	if remaining == "" {
		return
	}

	bucket := &RateLimitBucket{}
	bucket.Remaining, _ = strconv.Atoi(remaining)
	bucket.Limit, _ = strconv.Atoi(string(resp.Header.Peek("X-RateLimit-Limit")))

	if after := string(resp.Header.Peek("X-RateLimit-Reset-After")); after != "" {
		if secs, err := strconv.ParseFloat(after, 64); err == nil {
			bucket.ResetAt = rlm.now().Add(time.Duration(secs * float64(time.Second)))
		}
	} else if reset := string(resp.Header.Peek("X-RateLimit-Reset")); reset != "" {
		if secs, err := strconv.ParseFloat(reset, 64); err == nil {
			bucket.ResetAt = time.Unix(0, int64(secs*float64(time.Second)))
		}
	}

	rlm.mu.Lock()
	rlm.buckets[rlm.getKey(route, guildID)] = bucket
	rlm.mu.Unlock()
}

// RetryAfter reads the back-off of a 429 response, in seconds or fractions of a second.
func RetryAfter(resp *fasthttp.Response) time.Duration {
	raw := string(resp.Header.Peek("Retry-After"))
	if raw == "" {
		return time.Second
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

func (rlm *RateLimitMonitor) getKey(route string, guildID uint64) string {
	return route + ":" + strconv.FormatUint(guildID, 10)
}

func (rlm *RateLimitMonitor) GetBucket(route string, guildID uint64) *RateLimitBucket {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()

	if b, ok := rlm.buckets[rlm.getKey(route, guildID)]; ok {
		cp := *b
		return &cp
	}
	return nil
}
