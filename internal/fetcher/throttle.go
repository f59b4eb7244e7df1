package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

// ThrottledFetcher spaces requests to the same domain by at least delay.
type ThrottledFetcher struct {
	Fetcher
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu       sync.Mutex
	throttle map[string]*domainThrottle
}

// domainThrottle implements per-domain rate limiting.
type domainThrottle struct {
	mu        sync.Mutex
	lastFetch time.Time
}

// NewThrottledFetcher wraps f. A delay of zero returns f unchanged.
func NewThrottledFetcher(f Fetcher, delay time.Duration) Fetcher {
	if delay <= 0 {
		return f
	}
	return &ThrottledFetcher{
		Fetcher:  f,
		delay:    delay,
		sleep:    sleepContext,
		now:      time.Now,
		throttle: make(map[string]*domainThrottle),
	}
}

// Fetch waits out the domain's delay, then fetches.
func (t *ThrottledFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := t.wait(ctx, req.Domain()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	return t.Fetcher.Fetch(ctx, req)
}

func (t *ThrottledFetcher) wait(ctx context.Context, domain string) error {
	t.mu.Lock()
	d, ok := t.throttle[domain]
	if !ok {
		d = &domainThrottle{}
		t.throttle[domain] = d
	}
	t.mu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastFetch.IsZero() {
		if wait := t.delay - t.now().Sub(d.lastFetch); wait > 0 {
			if err := t.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	d.lastFetch = t.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
