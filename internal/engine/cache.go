package engine

import (
	"sync"

	"golang.org/x/sync/singleflight"
	"tailscale.com/util/lru"

	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/report"
)

// ResultCache maps content keys to finished reports. Concurrent requests for
// the same key share one computation, and failed computations are not
// stored. MaxEntries of 0 keeps every report for the life of the process.
type ResultCache struct {
	mu      sync.Mutex
	entries lru.Cache[string, *report.CaseReport]
	flight  singleflight.Group
}

// NewResultCache returns a cache holding at most maxEntries reports,
// evicting the least recently used. Zero means unbounded.
func NewResultCache(maxEntries int) *ResultCache {
	c := &ResultCache{}
	c.entries.MaxEntries = maxEntries
	return c
}

// Get returns the cached report for key.
func (c *ResultCache) Get(key string) (*report.CaseReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.GetOk(key)
}

// Len reports the number of cached reports.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// GetOrCompute returns the cached report for key or runs compute exactly
// once across concurrent callers. hit is true when no computation ran for
// this caller's own request.
func (c *ResultCache) GetOrCompute(key string, compute func() (*report.CaseReport, error)) (rep *report.CaseReport, hit bool, err error) {
	if rep, ok := c.Get(key); ok {
		monitoring.CacheLookups.WithLabelValues("hit").Inc()
		return rep, true, nil
	}

	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		if rep, ok := c.Get(key); ok {
			return rep, nil
		}
		rep, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries.Set(key, rep)
		c.mu.Unlock()
		return rep, nil
	})
	if err != nil {
		return nil, false, err
	}

	outcome := "miss"
	if shared {
		outcome = "shared"
	}
	monitoring.CacheLookups.WithLabelValues(outcome).Inc()
	return v.(*report.CaseReport), shared, nil
}
