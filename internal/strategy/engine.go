package strategy

import (
	"context"
	"io"
	"net/http"

	"couriergate/internal/cache"
	"couriergate/internal/logging"
	"couriergate/internal/metrics"
	"couriergate/internal/origin"
)

const (
	offlineTextBody = "Offline - Content not available"
	offlineJSONBody = `{"error":"Offline - No cached data available","offline":true}`
)

// Engine intercepts app traffic and serves it through the cache according
// to the routing rule. It never fails a request: every path resolves to a
// real response, a cached copy, or a synthesized 503.
type Engine struct {
	Gens   Generations
	Cache  cache.Store
	Origin origin.Fetcher
	Logger logging.Logger

	// MaxCacheBodySize caps what gets stored; larger bodies are served
	// but not cached.
	MaxCacheBodySize int64

	// Track schedules fire-and-forget work (background revalidation).
	// The worker wires this to its keep-alive group; tests may run it
	// synchronously.
	Track func(fn func())
}

func NewEngine(gens Generations, store cache.Store, fetcher origin.Fetcher, logger logging.Logger) *Engine {
	return &Engine{
		Gens:             gens,
		Cache:            store,
		Origin:           fetcher,
		Logger:           logger,
		MaxCacheBodySize: 1 << 20,
		Track:            func(fn func()) { go fn() },
	}
}

func (e *Engine) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	d := Decide(req, e.Gens)

	switch d.Policy {
	case PolicyCacheFirst:
		e.cacheFirst(rw, req, d.Generation)
	case PolicyNetworkFirst:
		e.networkFirst(rw, req, d.Generation)
	default:
		e.passThrough(rw, req)
	}
}

// passThrough forwards the request untouched; the cache is neither read
// nor written.
func (e *Engine) passThrough(rw http.ResponseWriter, req *http.Request) {
	resp, err := e.Origin.Fetch(req)
	if err != nil {
		metrics.ObserveFetch(PolicyPassThrough, "error")
		http.Error(rw, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	metrics.ObserveFetch(PolicyPassThrough, "network")
	copyHeader(rw.Header(), resp.Header)
	rw.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(rw, resp.Body)
}

func (e *Engine) cacheFirst(rw http.ResponseWriter, req *http.Request, gen string) {
	key := cache.Key(req)

	if snap, ok := e.Cache.Match(req.Context(), gen, key); ok {
		metrics.IncCacheHit(gen)
		metrics.ObserveFetch(PolicyCacheFirst, "hit")
		e.Track(func() { e.revalidate(req, gen, key) })
		writeSnapshot(rw, snap)
		return
	}
	metrics.IncCacheMiss(gen)

	snap, err := e.fetchSnapshot(req)
	if err != nil {
		e.Logger.Warn("cache-first fetch failed", "key", key, "err", err.Error())
		metrics.ObserveFetch(PolicyCacheFirst, "offline")
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(rw, offlineTextBody)
		return
	}

	if snap.StatusCode == http.StatusOK && int64(len(snap.Body)) <= e.MaxCacheBodySize {
		e.Cache.Put(req.Context(), gen, key, snap)
	}
	metrics.ObserveFetch(PolicyCacheFirst, "network")
	writeSnapshot(rw, snap)
}

func (e *Engine) networkFirst(rw http.ResponseWriter, req *http.Request, gen string) {
	key := cache.Key(req)

	snap, err := e.fetchSnapshot(req)
	if err == nil {
		if snap.StatusCode == http.StatusOK && int64(len(snap.Body)) <= e.MaxCacheBodySize {
			e.Cache.Put(req.Context(), gen, key, snap)
		}
		metrics.ObserveFetch(PolicyNetworkFirst, "network")
		writeSnapshot(rw, snap)
		return
	}

	e.Logger.Warn("network-first fetch failed, trying cache", "key", key, "err", err.Error())

	if cached, ok := e.Cache.Match(req.Context(), gen, key); ok {
		metrics.IncCacheHit(gen)
		metrics.ObserveFetch(PolicyNetworkFirst, "offline-cache")
		writeSnapshot(rw, cached)
		return
	}
	metrics.IncCacheMiss(gen)

	metrics.ObserveFetch(PolicyNetworkFirst, "offline")
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusServiceUnavailable)
	_, _ = io.WriteString(rw, offlineJSONBody)
}

// revalidate refreshes a cache hit in the background. Failures are
// swallowed; the caller already has a response.
func (e *Engine) revalidate(req *http.Request, gen, key string) {
	fresh, err := http.NewRequestWithContext(context.Background(), http.MethodGet, req.URL.String(), nil)
	if err != nil {
		return
	}
	fresh.Header = req.Header.Clone()

	snap, err := e.fetchSnapshot(fresh)
	if err != nil {
		e.Logger.Warn("background revalidation failed", "key", key, "err", err.Error())
		return
	}
	if snap.StatusCode == http.StatusOK && int64(len(snap.Body)) <= e.MaxCacheBodySize {
		e.Cache.Put(context.Background(), gen, key, snap)
	}
}

// fetchSnapshot performs the network fetch and materializes the response.
// Bodies are read fully; the strategies need them both for the caller and
// for the cache copy.
func (e *Engine) fetchSnapshot(req *http.Request) (*cache.Snapshot, error) {
	resp, err := e.Origin.Fetch(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return cache.SnapshotResponse(resp)
}

func writeSnapshot(rw http.ResponseWriter, snap *cache.Snapshot) {
	copyHeader(rw.Header(), snap.Header)
	rw.WriteHeader(snap.StatusCode)
	_, _ = rw.Write(snap.Body)
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
