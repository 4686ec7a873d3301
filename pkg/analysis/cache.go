package analysis

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
)

const (
	// DefaultCacheSize bounds the number of memoized analyses.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is how long an analysis stays valid.
	DefaultCacheTTL = 5 * time.Minute
)

// Cache memoizes analyses by sentence, size-bounded with LRU eviction and a
// per-entry TTL. Keys are the MD5 of the sentence text, which keeps them
// fixed-width no matter how long the sentence runs.
type Cache struct {
	lru  *expirable.LRU[string, token.Analysis]
	size int
	ttl  time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache builds a cache. Non-positive size or ttl fall back to the
// defaults.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		lru:  expirable.NewLRU[string, token.Analysis](size, nil, ttl),
		size: size,
		ttl:  ttl,
	}
}

func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached analysis for text, if present and fresh.
func (c *Cache) Get(ctx context.Context, text string) (token.Analysis, bool) {
	tokens, ok := c.lru.Get(cacheKey(text))
	if ok {
		c.hits.Add(1)
		zerolog.Ctx(ctx).Debug().Int("tokens", len(tokens)).Msg("analysis cache hit")
		return tokens, true
	}
	c.misses.Add(1)
	return nil, false
}

// Put stores the analysis for text.
func (c *Cache) Put(ctx context.Context, text string, tokens token.Analysis) {
	c.lru.Add(cacheKey(text), tokens)
	zerolog.Ctx(ctx).Debug().
		Int("tokens", len(tokens)).
		Int("entries", c.lru.Len()).
		Msg("analysis cached")
}

// Purge drops every entry and returns how many were dropped. The hit and
// miss counters keep counting across purges.
func (c *Cache) Purge(ctx context.Context) int {
	n := c.lru.Len()
	c.lru.Purge()
	zerolog.Ctx(ctx).Debug().Int("entries", n).Msg("analysis cache purged")
	return n
}

// Stats is a point-in-time snapshot of the cache.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	TTLSeconds float64 `json:"ttl_seconds"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
}

func (c *Cache) Stats() Stats {
	return Stats{
		Entries:    c.lru.Len(),
		MaxEntries: c.size,
		TTLSeconds: c.ttl.Seconds(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}
}
