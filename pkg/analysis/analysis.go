// Package analysis talks to the external analyzer service that produces the
// token lists this engine consumes, and memoizes its answers. The analyzer
// owns all linguistic decisions; nothing here inspects German beyond passing
// strings through.
package analysis

import (
	"context"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
)

// Analyzer produces the analyzed tokens for one sentence. The target word and
// its character position travel with the request so the service can
// disambiguate duplicate surface forms; the returned analysis always covers
// the whole sentence.
type Analyzer interface {
	Analyze(ctx context.Context, text, targetWord string, targetPosition int) (token.Analysis, error)
}

// Cached wraps an Analyzer with the TTL cache. Analyses are keyed by
// sentence text alone: the token list covers the whole sentence, so any
// target word shares the same answer.
type Cached struct {
	inner Analyzer
	cache *Cache
}

// NewCached builds a caching wrapper around inner. A nil cache gets the
// default size and TTL.
func NewCached(inner Analyzer, cache *Cache) *Cached {
	if cache == nil {
		cache = NewCache(0, 0)
	}
	return &Cached{inner: inner, cache: cache}
}

// Cache exposes the underlying cache for the stats and purge operations.
func (c *Cached) Cache() *Cache {
	return c.cache
}

func (c *Cached) Analyze(ctx context.Context, text, targetWord string, targetPosition int) (token.Analysis, error) {
	if tokens, ok := c.cache.Get(ctx, text); ok {
		return tokens, nil
	}
	tokens, err := c.inner.Analyze(ctx, text, targetWord, targetPosition)
	if err != nil {
		return nil, err
	}
	c.cache.Put(ctx, text, tokens)
	return tokens, nil
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, text, targetWord string, targetPosition int) (token.Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, text, targetWord string, targetPosition int) (token.Analysis, error) {
	return f(ctx, text, targetWord, targetPosition)
}
