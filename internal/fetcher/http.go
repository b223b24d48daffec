package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Rate       rate.Limit
	Burst      int
}

// hostLimiter paces requests to one host and retunes itself from response
// codes: clean responses grow the rate 20% up to twice the configured value,
// 429s halve it down to a quarter.
type hostLimiter struct {
	mu    sync.Mutex
	lim   *rate.Limiter
	cur   rate.Limit
	ceil  rate.Limit
	floor rate.Limit
}

func newHostLimiter(r rate.Limit, burst int) *hostLimiter {
	return &hostLimiter{
		lim:   rate.NewLimiter(r, burst),
		cur:   r,
		ceil:  r * 2,
		floor: r / 4,
	}
}

func (h *hostLimiter) wait(ctx context.Context) error {
	return h.lim.Wait(ctx)
}

func (h *hostLimiter) grow() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cur = min(h.cur*1.2, h.ceil)
	h.lim.SetLimit(h.cur)
}

// shrink returns the new rate so the caller can log it.
func (h *hostLimiter) shrink() rate.Limit {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cur = max(h.cur*0.5, h.floor)
	h.lim.SetLimit(h.cur)
	return h.cur
}

func (h *hostLimiter) rate() rate.Limit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// HTTPFetcher implements Fetcher using net/http with retry and per-host
// adaptive rate limiting. Portal hosts are arbitrary, so limiters are
// created on first contact.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu    sync.Mutex
	hosts map[string]*hostLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dataqa/1.0"
	}
	if opts.Rate == 0 {
		opts.Rate = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 1
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:  opts,
		hosts: make(map[string]*hostLimiter),
	}
}

func (f *HTTPFetcher) limiterFor(host string) *hostLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	hl, ok := f.hosts[host]
	if !ok {
		hl = newHostLimiter(f.opts.Rate, f.opts.Burst)
		f.hosts[host] = hl
	}
	return hl
}

// attempt issues the request once. retry reports whether the failure is
// worth another attempt.
func (f *HTTPFetcher) attempt(ctx context.Context, req *http.Request, hl *hostLimiter) (resp *http.Response, retry bool, err error) {
	if err := hl.wait(ctx); err != nil {
		return nil, false, eris.Wrap(err, "rate limiter wait")
	}

	resp, err = f.client.Do(req.Clone(ctx))
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		newRate := hl.shrink()
		zap.L().Warn("http: throttled by host, slowing down",
			zap.String("url", req.URL.String()),
			zap.Float64("rate", float64(newRate)),
		)
		return nil, true, eris.Errorf("http 429 from %s", req.URL.String())
	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, true, eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
	}

	hl.grow()
	return resp, false, nil
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	hl := f.limiterFor(req.URL.Host)

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		resp, retry, err := f.attempt(ctx, req, hl)
		if err == nil {
			return resp, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		zap.L().Warn("http: attempt failed, backing off",
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		sleepBackoff(ctx, attempt)
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

// sleepBackoff waits 2^attempt seconds capped at 30s, plus jitter up to half
// the delay. Wakes early when ctx is done.
func sleepBackoff(ctx context.Context, attempt int) {
	d := min(time.Second<<attempt, 30*time.Second)
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return resp.Body, nil
}
