package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"go-antiraid/internal/config"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
)

const (
	RouteBan     = "ban"
	RouteKick    = "kick"
	RouteTimeout = "timeout"

	maxDeleteMessageSeconds = 7 * 24 * 60 * 60
	maxBackoff              = 5 * time.Second
)

// HTTPError is a non-2xx answer from the REST API.
type HTTPError struct {
	Route  string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Route, e.Status, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *HTTPError) Temporary() bool {
	return e.Status == fasthttp.StatusTooManyRequests || e.Status >= 500
}

// RESTExecutor performs moderation calls against the Discord REST API with
// client-side rate limiting and bounded retries on 429 and 5xx answers.
type RESTExecutor struct {
	cfg          *config.Store
	httpPool     *HTTPPool
	rateLimiter  *RateLimitMonitor
	limiter      *rate.Limiter
	baseURL      string
	token        string
	retryBackoff time.Duration
	now          func() time.Time
}

func NewRESTExecutor(cfg *config.Store, httpPool *HTTPPool, rateLimiter *RateLimitMonitor) *RESTExecutor {
	c := cfg.Get()
	rps := c.Network.RequestsPerSecond
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return &RESTExecutor{
		cfg:          cfg,
		httpPool:     httpPool,
		rateLimiter:  rateLimiter,
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		baseURL:      c.Network.APIBaseURL,
		token:        c.Bot.Token,
		retryBackoff: 250 * time.Millisecond,
		now:          time.Now,
	}
}

func (re *RESTExecutor) Ban(ctx context.Context, guildID, userID uint64, reason string, deleteDays int) error {
	seconds := deleteDays * 24 * 60 * 60
	if seconds > maxDeleteMessageSeconds {
		seconds = maxDeleteMessageSeconds
	}
	if seconds < 0 {
		seconds = 0
	}

	body, err := json.Marshal(map[string]int{"delete_message_seconds": seconds})
	if err != nil {
		return err
	}

	uri := fmt.Sprintf("%s/guilds/%d/bans/%d", re.baseURL, guildID, userID)
	return re.do(ctx, RouteBan, fasthttp.MethodPut, uri, body, reason, guildID)
}

func (re *RESTExecutor) Kick(ctx context.Context, guildID, userID uint64, reason string) error {
	uri := fmt.Sprintf("%s/guilds/%d/members/%d", re.baseURL, guildID, userID)
	return re.do(ctx, RouteKick, fasthttp.MethodDelete, uri, nil, reason, guildID)
}

func (re *RESTExecutor) Timeout(ctx context.Context, guildID, userID uint64, minutes int, reason string) error {
	until := re.now().Add(time.Duration(minutes) * time.Minute).UTC().Format(time.RFC3339)
	body, err := json.Marshal(map[string]string{"communication_disabled_until": until})
	if err != nil {
		return err
	}

	uri := fmt.Sprintf("%s/guilds/%d/members/%d", re.baseURL, guildID, userID)
	return re.do(ctx, RouteTimeout, fasthttp.MethodPatch, uri, body, reason, guildID)
}

func (re *RESTExecutor) do(ctx context.Context, route, method, uri string, body []byte, reason string, guildID uint64) error {
	maxRetries := re.cfg.Get().Network.MaxRetries

	for attempt := 0; ; attempt++ {
		if wait := re.rateLimiter.WaitTime(route, guildID); wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
		}
		if err := re.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limiter: %w", route, err)
		}

		retryAfter, err := re.send(route, method, uri, body, reason, guildID)
		if err == nil {
			return nil
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.Temporary() {
			return err
		}
		if attempt >= maxRetries {
			return err
		}

		metrics.RESTRetries.WithLabelValues(route).Inc()
		logging.Warn("Retrying %s in guild %d after attempt %d: %v", route, guildID, attempt+1, err)
		backoff := re.retryBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepCtx(ctx, min(backoff, maxBackoff)); err != nil {
			return err
		}
	}
}

// send performs one request. A 429 also returns the server's Retry-After.
func (re *RESTExecutor) send(route, method, uri string, body []byte, reason string, guildID uint64) (time.Duration, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bot "+re.token)
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(reason))
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	timeout := time.Duration(re.cfg.Get().Network.RequestTimeoutMs) * time.Millisecond
	start := time.Now()
	err := re.httpPool.GetClient().DoTimeout(req, resp, timeout)
	metrics.RESTLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("%s request failed: %w", route, err)
	}

	re.rateLimiter.UpdateFromFastHTTPResponse(resp, route, guildID)

	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		return 0, nil
	case status == fasthttp.StatusTooManyRequests:
		return RetryAfter(resp), &HTTPError{Route: route, Status: status, Body: string(resp.Body())}
	default:
		return 0, &HTTPError{Route: route, Status: status, Body: string(resp.Body())}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
