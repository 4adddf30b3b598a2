package search

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"bureaucracy-oracle/internal/common/metrics"
	"bureaucracy-oracle/internal/models"
)

// Keywords that mark a query as exchange-rate sensitive.
var exchangeRateTerms = []string{"cotización", "cotizacion", "dólar", "dolar", "tipo de cambio"}

// CacheConfig tunes the search cache.
type CacheConfig struct {
	ExchangeRateTTL time.Duration
	DefaultTTL      time.Duration
	// MaxEntries bounds the cache with LRU eviction; 0 means unbounded.
	MaxEntries int
	Now        func() time.Time
}

type cacheEntry struct {
	query    string
	result   *models.SearchResult
	storedAt time.Time
}

// Cache memoizes search results per (query, domain) with a TTL chosen from
// the query text. Expired entries are dropped when read.
type Cache struct {
	config  CacheConfig
	entries *lru.Cache[string, cacheEntry]
}

func NewCache(config CacheConfig) (*Cache, error) {
	if config.ExchangeRateTTL == 0 {
		config.ExchangeRateTTL = time.Hour
	}
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 24 * time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	size := config.MaxEntries
	if size <= 0 {
		size = math.MaxInt32
	}
	entries, err := lru.NewWithEvict[string, cacheEntry](size, func(string, cacheEntry) {
		metrics.SearchCache.WithLabelValues("evicted").Inc()
	})
	if err != nil {
		return nil, err
	}

	return &Cache{config: config, entries: entries}, nil
}

// Key is the content hash for a (query, domain) pair.
func Key(query, domain string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(query) + ":" + domain))
	return hex.EncodeToString(sum[:])
}

// TTLFor classifies a query: exchange-rate questions go stale quickly.
func (c *Cache) TTLFor(query string) time.Duration {
	q := strings.ToLower(query)
	for _, term := range exchangeRateTerms {
		if strings.Contains(q, term) {
			return c.config.ExchangeRateTTL
		}
	}
	return c.config.DefaultTTL
}

// Get returns the cached result when it is younger than its TTL.
func (c *Cache) Get(query, domain string) (*models.SearchResult, bool) {
	key := Key(query, domain)
	entry, ok := c.entries.Get(key)
	if !ok {
		metrics.SearchCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	if c.config.Now().Sub(entry.storedAt) >= c.TTLFor(entry.query) {
		c.entries.Remove(key)
		metrics.SearchCache.WithLabelValues("expired").Inc()
		return nil, false
	}

	metrics.SearchCache.WithLabelValues("hit").Inc()
	return entry.result, true
}

// Set stores a result. Concurrent writers for the same key are allowed;
// the last one wins.
func (c *Cache) Set(query, domain string, result *models.SearchResult) {
	c.entries.Add(Key(query, domain), cacheEntry{
		query:    query,
		result:   result,
		storedAt: c.config.Now(),
	})
}

func (c *Cache) Len() int {
	return c.entries.Len()
}
