package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"ragchat/internal/domain"
)

// Cached memoizes an embedder's vectors by exact input text. Embedders are
// deterministic for a fixed model, so repeated queries skip the model call.
type Cached struct {
	next  domain.Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next domain.Embedder, size int) (*Cached, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

// Name returns the wrapped embedder's name.
func (c *Cached) Name() string { return c.next.Name() }

// Dimension returns the wrapped embedder's dimension.
func (c *Cached) Dimension() int { return c.next.Dimension() }

// Embed returns the cached vector for text, computing it on a miss. Failures are not cached.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}
