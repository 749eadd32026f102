package chainclient

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache keeps resolved prices so repeated lookups within one run agree
type PriceCache struct {
	mu       sync.RWMutex
	cache    map[string]*cachedPrice
	cacheTTL time.Duration
	now      func() time.Time
}

// cachedPrice represents a cached price with the source that produced it
type cachedPrice struct {
	price     decimal.Decimal
	source    string
	timestamp time.Time
}

// NewPriceCache creates a new price cache
func NewPriceCache(cacheTTL time.Duration) *PriceCache {
	return &PriceCache{
		cache:    make(map[string]*cachedPrice),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Get retrieves a cached price if it's still valid
func (c *PriceCache) Get(key string) (decimal.Decimal, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[key]
	if !exists {
		return decimal.Zero, "", false
	}

	if c.now().Sub(cached.timestamp) > c.cacheTTL {
		return decimal.Zero, "", false
	}

	return cached.price, cached.source, true
}

// Set stores a price in the cache with current timestamp
func (c *PriceCache) Set(key string, price decimal.Decimal, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = &cachedPrice{
		price:     price,
		source:    source,
		timestamp: c.now(),
	}
}
