package tokencache

import (
	"container/list"
	"sync"

	"github.com/hyperjump/tokcache/internal/nlp"
)

// memoryCache is an LRU of decoded batches keyed by content hash.
// A nil *memoryCache is a valid, always-empty cache.
type memoryCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type memoryEntry struct {
	key   string
	value *nlp.DocBin
}

func newMemoryCache(capacity int) *memoryCache {
	if capacity <= 0 {
		return nil
	}
	return &memoryCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *memoryCache) Get(key string) (*nlp.DocBin, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return shallowCopy(elem.Value.(*memoryEntry).value), true
	}
	return nil, false
}

func (c *memoryCache) Set(key string, value *nlp.DocBin) {
	if c == nil {
		return
	}
	value = shallowCopy(value)
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*memoryEntry).value = value
		return
	}

	elem := c.lru.PushFront(&memoryEntry{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*memoryEntry).key)
		}
	}
}

func (c *memoryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// shallowCopy gives each caller its own Docs slice over the shared docs.
func shallowCopy(b *nlp.DocBin) *nlp.DocBin {
	return &nlp.DocBin{
		Docs:   append([]*nlp.Doc(nil), b.Docs...),
		Engine: b.Engine,
	}
}
