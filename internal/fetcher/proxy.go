package fetcher

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

// ProxyManager rotates outbound requests across configured proxies and
// takes failing ones out of rotation.
type ProxyManager struct {
	proxies  []*proxyEntry
	rotation string
	index    atomic.Int64
	mu       sync.RWMutex
	logger   *slog.Logger
}

type proxyEntry struct {
	URL     *url.URL
	Healthy bool
	LastErr error
}

type proxySlotKey struct{}

// proxySlot records which proxy served a request so the fetcher can
// report failures against it.
type proxySlot struct {
	mu  sync.Mutex
	url *url.URL
}

func withProxySlot(ctx context.Context) (context.Context, *proxySlot) {
	slot := &proxySlot{}
	return context.WithValue(ctx, proxySlotKey{}, slot), slot
}

func (s *proxySlot) get() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// NewProxyManager creates a new ProxyManager from configuration.
func NewProxyManager(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyManager {
	pm := &ProxyManager{
		proxies:  make([]*proxyEntry, 0, len(cfg.URLs)),
		rotation: cfg.Rotation,
		logger:   logger.With("component", "proxy_manager"),
	}

	for _, rawURL := range cfg.URLs {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, &proxyEntry{URL: u, Healthy: true})
	}

	pm.logger.Info("proxy manager initialized", "count", len(pm.proxies), "rotation", cfg.Rotation)
	return pm
}

// ProxyFunc returns an http.Transport-compatible proxy function.
func (pm *ProxyManager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		proxy, err := pm.Next()
		if err != nil {
			return nil, err
		}
		if slot, ok := req.Context().Value(proxySlotKey{}).(*proxySlot); ok {
			slot.mu.Lock()
			slot.url = proxy
			slot.mu.Unlock()
		}
		return proxy, nil
	}
}

// Next returns the next healthy proxy URL. Once every proxy has been taken
// out of rotation it returns types.ErrProxyExhausted rather than falling
// back to a direct connection.
func (pm *ProxyManager) Next() (*url.URL, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	healthy := pm.healthyProxies()
	if len(healthy) == 0 {
		return nil, types.ErrProxyExhausted
	}

	if pm.rotation == "random" {
		return healthy[rand.Intn(len(healthy))].URL, nil
	}
	idx := pm.index.Add(1) % int64(len(healthy))
	return healthy[idx].URL, nil
}

// MarkFailed takes a proxy out of rotation.
func (pm *ProxyManager) MarkFailed(proxyURL *url.URL, err error) {
	if proxyURL == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.proxies {
		if p.URL.String() == proxyURL.String() {
			p.Healthy = false
			p.LastErr = err
			pm.logger.Warn("proxy marked unhealthy", "proxy", proxyURL.Host, "error", err)
			return
		}
	}
}

// MarkHealthy puts a proxy back into rotation.
func (pm *ProxyManager) MarkHealthy(proxyURL *url.URL) {
	if proxyURL == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.proxies {
		if p.URL.String() == proxyURL.String() {
			p.Healthy = true
			p.LastErr = nil
			return
		}
	}
}

// HealthyCount returns the number of healthy proxies.
func (pm *ProxyManager) HealthyCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.healthyProxies())
}

func (pm *ProxyManager) healthyProxies() []*proxyEntry {
	healthy := make([]*proxyEntry, 0, len(pm.proxies))
	for _, p := range pm.proxies {
		if p.Healthy {
			healthy = append(healthy, p)
		}
	}
	return healthy
}
