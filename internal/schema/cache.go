package schema

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/db"
)

// Negotiator owns the optional capability cache. With a zero TTL every call
// inspects the catalog, so schema changes apply without a restart.
type Negotiator struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	cached *Capability
	at     time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats contains negotiator cache statistics.
type CacheStats struct {
	TTLSeconds float64 `json:"ttl_seconds"`
	Cached     bool    `json:"cached"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
}

// NewNegotiator creates a Negotiator. ttl <= 0 disables caching.
func NewNegotiator(ttl time.Duration) *Negotiator {
	return &Negotiator{ttl: ttl, now: time.Now}
}

// Negotiate returns the cached capability when fresh, otherwise inspects
// the catalog through q. A nil Negotiator never caches.
func (n *Negotiator) Negotiate(ctx context.Context, q db.Querier) (Capability, error) {
	if n == nil || n.ttl <= 0 {
		if n != nil {
			n.misses.Add(1)
		}
		return Negotiate(ctx, q)
	}

	n.mu.RLock()
	if n.cached != nil && n.now().Sub(n.at) < n.ttl {
		c := *n.cached
		n.mu.RUnlock()
		n.hits.Add(1)
		return c, nil
	}
	n.mu.RUnlock()

	n.misses.Add(1)
	c, err := Negotiate(ctx, q)
	if err != nil {
		return Capability{}, err
	}

	n.mu.Lock()
	n.cached = &c
	n.at = n.now()
	n.mu.Unlock()
	return c, nil
}

// Invalidate drops the cached capability. Called after migrations and on SIGHUP.
func (n *Negotiator) Invalidate() {
	if n == nil {
		return
	}
	n.mu.Lock()
	n.cached = nil
	n.mu.Unlock()
	zap.L().Debug("schema: capability cache invalidated")
}

// Stats returns cache statistics.
func (n *Negotiator) Stats() CacheStats {
	n.mu.RLock()
	cached := n.cached != nil
	n.mu.RUnlock()
	return CacheStats{
		TTLSeconds: n.ttl.Seconds(),
		Cached:     cached,
		Hits:       n.hits.Load(),
		Misses:     n.misses.Load(),
	}
}
