// Package flowcache provides a per-tenant, TTL-bounded cache of flow
// definitions so the engine does not hit the flow store on every message.
package flowcache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

// DefaultTTL is how long a tenant's cached flow list stays fresh. Flows
// change rarely relative to message volume, so 60 seconds is plenty.
const DefaultTTL = 60 * time.Second

// FetchFunc loads all flows for a tenant from the external store. It returns
// active and inactive flows; the cache filters by IsActive.
type FetchFunc func(ctx context.Context, tenantID string) ([]models.ChatbotFlow, error)

type entry struct {
	flows     []models.ChatbotFlow
	fetchedAt time.Time
}

// Cache is a TTL cache of flow definitions keyed by tenant. It is safe for
// concurrent use; tenants do not contend beyond the shared map lock.
type Cache struct {
	fetch   FetchFunc
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the cache clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache over the given fetch function.
func New(fetch FetchFunc, opts ...Option) *Cache {
	c := &Cache{
		fetch:   fetch,
		ttl:     DefaultTTL,
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetActiveFlows returns the tenant's active flows sorted by priority
// descending, preserving declaration order within equal priority. A cache hit
// within the TTL skips the fetch entirely.
func (c *Cache) GetActiveFlows(ctx context.Context, tenantID string) ([]models.ChatbotFlow, error) {
	c.mu.RLock()
	cached, ok := c.entries[tenantID]
	c.mu.RUnlock()

	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		slog.Debug("flowcache.GetActiveFlows: cache hit", "tenantID", tenantID, "flows", len(cached.flows))
		return activeByPriority(cached.flows), nil
	}

	flows, err := c.fetch(ctx, tenantID)
	if err != nil {
		slog.Error("flowcache.GetActiveFlows: fetch failed", "tenantID", tenantID, "error", err)
		return nil, err
	}

	c.mu.Lock()
	c.entries[tenantID] = entry{flows: flows, fetchedAt: c.now()}
	c.mu.Unlock()

	slog.Debug("flowcache.GetActiveFlows: fetched and cached", "tenantID", tenantID, "flows", len(flows))
	return activeByPriority(flows), nil
}

// Clear evicts one tenant's cached flows.
func (c *Cache) Clear(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
	slog.Debug("flowcache.Clear: tenant evicted", "tenantID", tenantID)
}

// ClearAll evicts every tenant.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	slog.Debug("flowcache.ClearAll: cache emptied")
}

func activeByPriority(flows []models.ChatbotFlow) []models.ChatbotFlow {
	active := make([]models.ChatbotFlow, 0, len(flows))
	for _, flow := range flows {
		if flow.IsActive {
			active = append(active, flow)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})
	return active
}
