package pool

import "github.com/pomelo-net/pomelo-go/domain"

// Cache fronts a Root with a per-goroutine batch of chunkSize items, so
// worker-pool goroutines acquire/release in bulk instead of contending on
// the root's mutex per object. Not safe for concurrent use —
// one Cache per worker goroutine, by design.
type Cache[T any] struct {
	root      *Root[T]
	chunkSize int
	held      []*T
}

// NewCache creates a Cache backed by root, batching in groups of
// domain.PoolCacheChunkSize.
func NewCache[T any](root *Root[T]) *Cache[T] {
	return &Cache[T]{root: root, chunkSize: domain.PoolCacheChunkSize}
}

// Acquire returns an item from the local batch, refilling from root in one
// chunkSize-sized call when the batch is empty.
func (c *Cache[T]) Acquire() *T {
	if len(c.held) == 0 {
		c.held = c.root.AcquireBatch(c.held[:0], c.chunkSize)
	}
	n := len(c.held)
	v := c.held[n-1]
	c.held = c.held[:n-1]
	return v
}

// Release returns v to the local batch, flushing to root once the batch
// grows past 2x chunkSize so a cache that only ever releases doesn't grow
// without bound.
func (c *Cache[T]) Release(v *T) {
	c.held = append(c.held, v)
	if len(c.held) > 2*c.chunkSize {
		c.root.ReleaseBatch(c.held[:c.chunkSize])
		c.held = append(c.held[:0], c.held[c.chunkSize:]...)
	}
}

// Flush returns every locally held item to root. Call when the owning
// goroutine is shutting down.
func (c *Cache[T]) Flush() {
	if len(c.held) == 0 {
		return
	}
	c.root.ReleaseBatch(c.held)
	c.held = c.held[:0]
}
