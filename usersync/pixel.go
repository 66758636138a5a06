package usersync

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/context/ctxhttp"
)

// PixelFirer issues the user sync GET. Implementations must not block the caller.
type PixelFirer interface {
	Fire(ctx context.Context, url string)
}

// HTTPPixelFirer fires each pixel from its own goroutine. The GET outlives the
// inbound request that triggered it and is bounded only by Timeout.
type HTTPPixelFirer struct {
	Client  *http.Client
	Timeout time.Duration

	wg sync.WaitGroup
}

func NewHTTPPixelFirer(client *http.Client, timeout time.Duration) *HTTPPixelFirer {
	return &HTTPPixelFirer{
		Client:  client,
		Timeout: timeout,
	}
}

func (p *HTTPPixelFirer) Fire(ctx context.Context, url string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		fireCtx := context.WithoutCancel(ctx)
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			fireCtx, cancel = context.WithTimeout(fireCtx, p.Timeout)
			defer cancel()
		}

		resp, err := ctxhttp.Get(fireCtx, p.Client, url)
		if err != nil {
			glog.Warningf("User sync pixel %s failed: %v", url, err)
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= http.StatusBadRequest {
			glog.Warningf("User sync pixel %s returned status %d", url, resp.StatusCode)
		}
	}()
}

// Wait blocks until every pixel fired so far has completed. The server calls it on shutdown.
func (p *HTTPPixelFirer) Wait() {
	p.wg.Wait()
}
