// Package plancache caches prepared command plans keyed by their text, so
// repeated commands against a guarded resource skip re-parsing. Backed by
// dgraph-io/ristretto.
package plancache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/prometheus/client_golang/prometheus"
)

// Plan is the normalized form of a command: its text, the resolved command
// name and whether it only reads the resource.
type Plan struct {
	Text     string
	Name     string
	ReadOnly bool
}

// Cache holds plans with a per-entry TTL.
type Cache struct {
	c   *ristretto.Cache
	ttl time.Duration

	hitCounter  prometheus.Counter
	missCounter prometheus.Counter
}

// Option configures a Cache.
type Option func(*Cache, *ristretto.Config)

// WithTTL sets the per-entry TTL. Zero means entries never expire.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache, _ *ristretto.Config) {
		c.ttl = ttl
	}
}

// WithRistretto applies a custom ristretto configuration.
//
// If cfg is nil, defaults are used.
func WithRistretto(cfg *ristretto.Config) Option {
	return func(_ *Cache, dst *ristretto.Config) {
		if cfg == nil {
			return
		}
		*dst = *cfg
	}
}

// WithMetrics enables Prometheus metrics collection using the provided registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Cache, _ *ristretto.Config) {
		c.hitCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airlock_plancache_hits_total",
			Help: "Total number of plan cache hits",
		})
		c.missCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airlock_plancache_misses_total",
			Help: "Total number of plan cache misses",
		})
		reg.MustRegister(c.hitCounter, c.missCounter)
	}
}

// New returns a plan cache.
func New(opts ...Option) *Cache {
	cfg := &ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	}
	c := &Cache{}
	for _, opt := range opts {
		opt(c, cfg)
	}
	rc, err := ristretto.NewCache(cfg)
	if err != nil {
		panic(err)
	}
	c.c = rc
	return c
}

// Lookup returns the cached plan for text, building and storing it with
// build on a miss.
func (c *Cache) Lookup(text string, build func(string) (Plan, error)) (Plan, error) {
	if v, ok := c.c.Get(text); ok {
		if c.hitCounter != nil {
			c.hitCounter.Inc()
		}
		return v.(Plan), nil
	}
	if c.missCounter != nil {
		c.missCounter.Inc()
	}
	p, err := build(text)
	if err != nil {
		return Plan{}, err
	}
	cost := int64(len(text)) + int64(len(p.Name))
	c.c.SetWithTTL(text, p, cost, c.ttl)
	c.c.Wait()
	return p, nil
}

// Invalidate removes the plan for text.
func (c *Cache) Invalidate(text string) {
	c.c.Del(text)
	c.c.Wait()
}

// Close releases resources held by the cache.
func (c *Cache) Close() {
	c.c.Close()
}
