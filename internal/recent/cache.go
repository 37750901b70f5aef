// Package recent keeps a bounded, age-expiring store of recently seen
// message payloads for deferred dereferencing (files, urls, forwards).
package recent

import (
	"container/list"
	"sync"
	"time"

	"github.com/matheus3301/macbridge/internal/schema"
)

// Defaults sized to survive a normal backlog of deferred lookups.
const (
	DefaultCapacity = 500
	DefaultMaxAge   = time.Hour
)

type entry struct {
	key      string
	payload  *schema.MessagePayload
	storedAt time.Time
}

// Cache is a fixed-capacity LRU with age expiry. Entries are inserted
// on receipt, evicted by capacity or age, and never updated.
type Cache struct {
	capacity int
	maxAge   time.Duration

	mu    sync.Mutex
	ll    *list.List // front = most recently used
	items map[string]*list.Element
}

// New creates a cache with the given capacity and max entry age.
func New(capacity int, maxAge time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		maxAge:   maxAge,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Set stores a payload under id, evicting the oldest entry when the
// cache is full.
func (c *Cache) Set(id string, msg *schema.MessagePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*entry).payload = msg
		el.Value.(*entry).storedAt = time.Now()
		return
	}

	c.items[id] = c.ll.PushFront(&entry{key: id, payload: msg, storedAt: time.Now()})
	if c.ll.Len() > c.capacity {
		c.removeOldest()
	}
}

// Get returns the payload stored under id, or nil when the id is
// unknown or the entry has aged out.
func (c *Cache) Get(id string) *schema.MessagePayload {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return nil
	}
	ent := el.Value.(*entry)
	if time.Since(ent.storedAt) > c.maxAge {
		c.remove(el)
		return nil
	}
	c.ll.MoveToFront(el)
	return ent.payload
}

// Len returns the number of stored entries, counting expired ones not
// yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) removeOldest() {
	if el := c.ll.Back(); el != nil {
		c.remove(el)
	}
}

func (c *Cache) remove(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
