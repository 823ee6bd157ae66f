// ABOUTME: Bounded LRU cache of decoded audio segments
// ABOUTME: Keyed by (track, chunk, enhancement) so variants never collide
package segcache

import (
	"container/list"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

// DefaultCapacity bounds the cache to this many decoded segments.
const DefaultCapacity = 32

// Cache holds the N most recently used decoded segments. Insertion beyond
// capacity evicts the least recently used entry.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[track.CacheKey]*list.Element
}

type entry struct {
	key track.CacheKey
	seg *audio.Segment
}

// New creates a cache bounded to capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[track.CacheKey]*list.Element),
	}
}

// Get returns the segment for key, marking it most recently used.
func (c *Cache) Get(key track.CacheKey) (*audio.Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)

	return el.Value.(*entry).seg, true
}

// Set stores the segment under key, evicting the least recently used entry
// when over capacity.
func (c *Cache) Set(key track.CacheKey, seg *audio.Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).seg = seg
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, seg: seg})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		ev := oldest.Value.(*entry)
		c.order.Remove(oldest)
		delete(c.entries, ev.key)
		log.Debug().Int("chunk", ev.key.Chunk).Str("track", ev.key.TrackID).Msg("Evicted segment from cache")
	}
}

// Len returns the number of cached segments.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every entry. Called on track, enhancement, or preset change
// so a reused key space never serves stale audio.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[track.CacheKey]*list.Element)
}
