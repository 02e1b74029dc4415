package cache

import "container/list"

// lru indexes entries by key in recency order. It also counts how many
// keys reference each integrity so shared blobs outlive a single key.
// Not safe for concurrent use; Manager guards it.
type lru struct {
	ll    *list.List // front = most recently used
	items map[Key]*list.Element
	refs  map[string]int // integrity -> keys referencing it
	size  int64
}

func newLRU() *lru {
	return &lru{
		ll:    list.New(),
		items: make(map[Key]*list.Element),
		refs:  make(map[string]int),
	}
}

// Get returns the entry for key and marks it most recently used.
func (c *lru) Get(key Key) (Entry, bool) {
	el, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(Entry), true
}

// Peek returns the entry without touching recency.
func (c *lru) Peek(key Key) (Entry, bool) {
	el, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	return el.Value.(Entry), true
}

// Set inserts or replaces an entry and makes it most recently used.
// It returns the entry it replaced, if any.
func (c *lru) Set(e Entry) (Entry, bool) {
	if el, ok := c.items[e.Key]; ok {
		old := el.Value.(Entry)
		c.release(old)
		el.Value = e
		c.retain(e)
		c.ll.MoveToFront(el)
		return old, true
	}
	c.items[e.Key] = c.ll.PushFront(e)
	c.retain(e)
	return Entry{}, false
}

// Remove drops key. unused is true when no other key references the
// removed entry's integrity.
func (c *lru) Remove(key Key) (e Entry, unused, ok bool) {
	el, found := c.items[key]
	if !found {
		return Entry{}, false, false
	}
	e = el.Value.(Entry)
	c.ll.Remove(el)
	delete(c.items, key)
	c.release(e)
	return e, c.refs[e.Integrity] == 0, true
}

// Oldest returns the least recently used entry for which skip is false.
func (c *lru) Oldest(skip func(Key) bool) (Entry, bool) {
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		e := el.Value.(Entry)
		if skip != nil && skip(e.Key) {
			continue
		}
		return e, true
	}
	return Entry{}, false
}

// Keys returns the keys from most to least recently used.
func (c *lru) Keys() []Key {
	keys := make([]Key, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(Entry).Key)
	}
	return keys
}

// Entries returns the entries from most to least recently used.
func (c *lru) Entries() []Entry {
	entries := make([]Entry, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		entries = append(entries, el.Value.(Entry))
	}
	return entries
}

// Referenced reports whether any key still uses integrity.
func (c *lru) Referenced(integrity string) bool {
	return c.refs[integrity] > 0
}

func (c *lru) Len() int    { return c.ll.Len() }
func (c *lru) Size() int64 { return c.size }

func (c *lru) retain(e Entry) {
	c.refs[e.Integrity]++
	c.size += e.Size
}

func (c *lru) release(e Entry) {
	c.size -= e.Size
	if c.refs[e.Integrity]--; c.refs[e.Integrity] <= 0 {
		delete(c.refs, e.Integrity)
	}
}
