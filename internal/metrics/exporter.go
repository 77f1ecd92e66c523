package metrics

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"go-antiraid/internal/logging"
)

// Exporter serves /metrics and /healthz.
type Exporter struct {
	registry *Registry
	server   *fasthttp.Server
	metrics  fasthttp.RequestHandler
}

func NewExporter(registry *Registry) *Exporter {
	e := &Exporter{
		registry: registry,
		metrics:  fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()),
	}
	e.server = &fasthttp.Server{
		Name:    "go-antiraid",
		Handler: e.handle,
	}
	return e
}

func (e *Exporter) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/metrics":
		e.metrics(ctx)
	case "/healthz":
		if e.registry.Gateway().IsHealthy() {
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok\n")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetBodyString("gateway unavailable\n")
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

// Serve blocks until ctx is cancelled or the listener fails.
func (e *Exporter) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		if err := e.server.Shutdown(); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (e *Exporter) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	logging.Info("Metrics listening on %s", addr)
	return e.Serve(ctx, ln)
}

// Summary is the one-line status used by the raidstatus command.
func (e *Exporter) Summary() string {
	stats := e.registry.Latency().GetStats()
	return fmt.Sprintf(
		"events %d (%.2f/s), pipeline avg %s max %s, gateway healthy %v",
		e.registry.Ingress().GetCount(),
		e.registry.Ingress().GetRate(),
		stats.Avg, stats.Max,
		e.registry.Gateway().IsHealthy(),
	)
}
