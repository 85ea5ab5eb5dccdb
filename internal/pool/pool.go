// Package pool provides the shared ResourcePool: named HTTP client pools
// with hard concurrency caps and optional request-rate limits. The pool is
// the primary backpressure mechanism protecting external providers; tasks
// beyond the cap wait for a slot rather than racing.
package pool

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/inkforge/inkforge/internal/metrics"
)

// Pool names. Callers asking for an unknown pool get Default.
const (
	Search  = "search"
	Content = "content"
	Default = "default"
)

// Limits bounds one named pool.
type Limits struct {
	MaxConcurrent int
	// RPM caps requests per minute; zero disables rate limiting.
	RPM int
}

type entry struct {
	client  *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// ResourcePool is the process-wide set of reusable network clients,
// partitioned by purpose. Constructed once at startup and passed by
// reference; never looked up through globals.
type ResourcePool struct {
	mu    sync.RWMutex
	pools map[string]*entry
}

// New builds a ResourcePool with the given per-pool limits. A Default pool
// is always present.
func New(limits map[string]Limits) *ResourcePool {
	rp := &ResourcePool{pools: make(map[string]*entry)}
	if _, ok := limits[Default]; !ok {
		if limits == nil {
			limits = map[string]Limits{}
		}
		limits[Default] = Limits{MaxConcurrent: 4}
	}
	for name, l := range limits {
		rp.add(name, l)
	}
	return rp
}

func (rp *ResourcePool) add(name string, l Limits) {
	if l.MaxConcurrent <= 0 {
		l.MaxConcurrent = 1
	}
	e := &entry{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        l.MaxConcurrent * 2,
				MaxIdleConnsPerHost: l.MaxConcurrent,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sem: semaphore.NewWeighted(int64(l.MaxConcurrent)),
	}
	if l.RPM > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(float64(l.RPM)/60.0), l.RPM)
	}
	rp.mu.Lock()
	rp.pools[name] = e
	rp.mu.Unlock()
}

func (rp *ResourcePool) get(name string) *entry {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	if e, ok := rp.pools[name]; ok {
		return e
	}
	return rp.pools[Default]
}

// Client returns the shared HTTP client for a pool.
func (rp *ResourcePool) Client(name string) *http.Client {
	return rp.get(name).client
}

// Acquire blocks until a slot in the named pool is free (and the rate
// limiter admits the call), then returns a release func. The release func
// must be called exactly once.
func (rp *ResourcePool) Acquire(ctx context.Context, name string) (func(), error) {
	e := rp.get(name)
	if e == nil {
		return nil, fmt.Errorf("resource pool %q not configured", name)
	}

	if !e.sem.TryAcquire(1) {
		metrics.PoolWaits.WithLabelValues(name).Inc()
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			e.sem.Release(1)
			return nil, err
		}
	}

	metrics.PoolInFlight.WithLabelValues(name).Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			metrics.PoolInFlight.WithLabelValues(name).Dec()
			e.sem.Release(1)
		})
	}, nil
}

// Close shuts down idle connections in every pool. Called at process exit.
func (rp *ResourcePool) Close() {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	for _, e := range rp.pools {
		e.client.CloseIdleConnections()
	}
}
