package transactions

import (
	"context"
	"sync"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"

	"golang.org/x/sync/singleflight"
)

const catalogCacheSize = 16

// Catalog serves the distinct category labels of the logged-in user. Lists
// are cached per credential for a TTL and concurrent loads share one call.
type Catalog struct {
	client ledger.CategoryClient
	creds  ledger.CredentialSource
	cache  cache.Cache[[]string]
	group  singleflight.Group
	logger *log.Logger

	// gen counts invalidations. A load only caches its result when no
	// invalidation happened since it started.
	mu  sync.Mutex
	gen uint64
}

func NewCatalog(client ledger.CategoryClient, creds ledger.CredentialSource, ttl time.Duration, logger *log.Logger) *Catalog {
	return NewCatalogWithCache(client, creds, cache.NewLRUCache[[]string](catalogCacheSize, ttl), logger)
}

func NewCatalogWithCache(client ledger.CategoryClient, creds ledger.CredentialSource, c cache.Cache[[]string], logger *log.Logger) *Catalog {
	return &Catalog{
		client: client,
		creds:  creds,
		cache:  c,
		logger: log.OrDefault(logger, log.ComponentTransactions),
	}
}

func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	key := c.creds.Credential()
	if cats, ok := c.cache.Get(key); ok {
		return append([]string(nil), cats...), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		start := c.generation()
		cats, err := c.client.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == start {
			c.cache.Set(key, cats)
		}
		c.mu.Unlock()
		return cats, nil
	})
	if err != nil {
		c.logger.LogFailure(ctx, "Category listing failed", err, core.Kind(err), log.OpList, nil)
		return nil, err
	}
	return append([]string(nil), v.([]string)...), nil
}

// Invalidate drops every cached list. Loads already in flight are not cached
// and later callers start a fresh load.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.cache.Purge()
	c.mu.Unlock()
	c.group.Forget(c.creds.Credential())
}

func (c *Catalog) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}
