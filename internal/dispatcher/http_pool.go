package dispatcher

import (
	"context"
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// HTTPPool round-robins REST calls over a fixed set of keep-alive clients.
type HTTPPool struct {
	clients []*fasthttp.Client
	index   atomic.Uint32
}

func NewHTTPPool(size int, timeout time.Duration) *HTTPPool {
	return newHTTPPool(size, timeout, nil)
}

// NewHTTPPoolWithDial routes every connection through dial, for in-memory transports.
func NewHTTPPoolWithDial(size int, timeout time.Duration, dial fasthttp.DialFunc) *HTTPPool {
	return newHTTPPool(size, timeout, dial)
}

func newHTTPPool(size int, timeout time.Duration, dial fasthttp.DialFunc) *HTTPPool {
	if size < 1 {
		size = 1
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
	}

	clients := make([]*fasthttp.Client, size)
	for i := range clients {
		clients[i] = &fasthttp.Client{
			Name:                          "go-antiraid",
			MaxConnsPerHost:               256,
			MaxIdleConnDuration:           90 * time.Second,
			ReadTimeout:                   timeout,
			WriteTimeout:                  timeout,
			MaxConnWaitTimeout:            timeout,
			MaxResponseBodySize:           1 << 20,
			DisableHeaderNamesNormalizing: true,
			MaxIdemponentCallAttempts:     1,
			DialDualStack:                 true,
			TLSConfig:                     tlsConfig,
			Dial:                          dial,
		}
	}

	return &HTTPPool{clients: clients}
}

func (hp *HTTPPool) GetClient() *fasthttp.Client {
	i := hp.index.Add(1)
	return hp.clients[int(i)%len(hp.clients)]
}

// Warmup opens connections to the API ahead of the first enforcement.
func (hp *HTTPPool) Warmup(ctx context.Context, url string) int {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	ok := 0
	for _, client := range hp.clients {
		if ctx.Err() != nil {
			break
		}
		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		if err := client.DoTimeout(req, resp, 2*time.Second); err == nil && resp.StatusCode() == fasthttp.StatusOK {
			ok++
		}
		resp.Reset()
	}
	return ok
}
