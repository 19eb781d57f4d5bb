package transport

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// BlockCache is an in-memory hot-block cache layered over the on-disk
// cache file, sized in bytes rather than entry count so large vector
// blocks don't starve the counter-admission policy. Keyed by block index.
type BlockCache struct {
	cache *ristretto.Cache
}

// NewBlockCache builds a cache with the given maximum cost (bytes).
func NewBlockCache(maxBytes int64) (*BlockCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxBytes / 1024 * 10, // ~10x entries expected, ristretto's own sizing guidance
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: constructing block cache: %w", err)
	}

	return &BlockCache{cache: c}, nil
}

// Get returns the cached block for index, if present.
func (c *BlockCache) Get(index int) ([]byte, bool) {
	v, ok := c.cache.Get(index)
	if !ok {
		return nil, false
	}

	data, ok := v.([]byte)

	return data, ok
}

// Put admits a verified block into the cache, costed by its byte length.
func (c *BlockCache) Put(index int, data []byte) {
	c.cache.Set(index, data, int64(len(data)))
}

// Wait blocks until pending Set calls have been processed by the cache's
// internal buffers, useful in tests that assert on Get immediately after
// Put.
func (c *BlockCache) Wait() { c.cache.Wait() }

// Close releases the cache's background goroutines.
func (c *BlockCache) Close() { c.cache.Close() }
