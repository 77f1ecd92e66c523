package metrics

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func TestLatencyHistogram_Stats(t *testing.T) {
	lh := NewLatencyHistogram()
	before := testutil.CollectAndCount(PipelineSeconds)

	lh.Record("join", 2*time.Millisecond)
	lh.Record("join", 4*time.Millisecond)
	lh.Record("join", 6*time.Millisecond)

	stats := lh.GetStats()
	assert.Equal(t, uint64(3), stats.Count)
	assert.Equal(t, 2*time.Millisecond, stats.Min)
	assert.Equal(t, 6*time.Millisecond, stats.Max)
	assert.Equal(t, 4*time.Millisecond, stats.Avg)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(PipelineSeconds), before)
}

func TestLatencyHistogram_Empty(t *testing.T) {
	stats := NewLatencyHistogram().GetStats()
	assert.Zero(t, stats.Count)
	assert.Zero(t, stats.Avg)
}

func TestIngressRateCounter(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	now := start
	irc := &IngressRateCounter{now: func() time.Time { return now }}
	irc.startTime.Store(start.UnixNano())

	before := testutil.ToFloat64(EventsIngested.WithLabelValues("message"))
	for i := 0; i < 10; i++ {
		irc.Increment("message")
	}
	now = start.Add(5 * time.Second)

	assert.Equal(t, uint64(10), irc.GetCount())
	assert.InDelta(t, 2.0, irc.GetRate(), 1e-9)
	assert.Equal(t, before+10, testutil.ToFloat64(EventsIngested.WithLabelValues("message")))

	irc.Reset()
	assert.Zero(t, irc.GetCount())
	assert.Zero(t, irc.GetRate())
}

func TestGatewayHealth(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	gh := NewGatewayHealth()
	gh.now = func() time.Time { return now }

	assert.False(t, gh.IsHealthy())

	gh.SetConnected(true)
	assert.True(t, gh.IsHealthy())
	assert.Equal(t, 1.0, testutil.ToFloat64(GatewayConnected))

	now = now.Add(10 * time.Minute)
	assert.False(t, gh.IsHealthy(), "no events for longer than the stale window")

	gh.RecordEvent()
	assert.True(t, gh.IsHealthy())

	gh.SetConnected(false)
	assert.False(t, gh.IsHealthy())
	gh.SetConnected(true)
	assert.Equal(t, uint64(1), gh.Reconnects())
}

func TestExporter_Endpoints(t *testing.T) {
	reg := NewRegistry()
	reg.Gateway().SetConnected(true)
	ActionsExecuted.WithLabelValues("ban", "ok").Inc()

	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewExporter(reg).Serve(ctx, ln) }()

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}

	status, body, err := client.Get(nil, "http://metrics.local/metrics")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Contains(t, string(body), "antiraid_actions_total")

	status, body, err = client.Get(nil, "http://metrics.local/healthz")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, "ok\n", string(body))

	status, _, err = client.Get(nil, "http://metrics.local/nope")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusNotFound, status)

	cancel()
	assert.NoError(t, <-done)
}

func TestExporter_Summary(t *testing.T) {
	reg := NewRegistry()
	reg.Latency().Record("join", time.Millisecond)
	assert.Contains(t, NewExporter(reg).Summary(), "pipeline avg 1ms")
}
