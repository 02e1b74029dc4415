// Package queue holds the playback queue: an ordered list of tracks with a
// head (index 0 of Items) that is playing or about to play.
package queue

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Queue is safe for concurrent use. Mutations do not notify observers on
// their own; callers batch them and then call Refresh.
//
// Items are kept in insertion order with a head cursor. Items returns the
// head-relative view: the head and what follows it, then the items before
// it (the ones that come back around when the queue wraps).
type Queue struct {
	mu     sync.RWMutex
	items  []Item
	head   int
	policy BoundaryPolicy
	rng    *rand.Rand // nil uses the global source

	subsMu sync.Mutex
	subs   []*Subscription
}

// New creates an empty queue with the given boundary policy.
func New(policy BoundaryPolicy) *Queue {
	return &Queue{policy: policy}
}

// Policy returns the boundary policy used by Shift.
func (q *Queue) Policy() BoundaryPolicy {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.policy
}

// SetPolicy changes the boundary policy.
func (q *Queue) SetPolicy(p BoundaryPolicy) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.policy = p
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// IsEmpty returns true if nothing is queued.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Head returns the item at index 0.
func (q *Queue) Head() (Item, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[q.head], true
}

// Items returns a copy of the head-relative view.
func (q *Queue) Items() []Item {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.viewLocked()
}

func (q *Queue) viewLocked() []Item {
	result := make([]Item, 0, len(q.items))
	result = append(result, q.items[q.head:]...)
	return append(result, q.items[:q.head]...)
}

// Index returns the position of entry in the head-relative view, or -1.
func (q *Queue) Index(entry uuid.UUID) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i := q.indexLocked(entry)
	if i < 0 {
		return -1
	}
	return (i - q.head + len(q.items)) % len(q.items)
}

// Contains reports whether entry is still queued.
func (q *Queue) Contains(entry uuid.UUID) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.indexLocked(entry) >= 0
}

// Find returns the queued item with the given entry.
func (q *Queue) Find(entry uuid.UUID) (Item, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i := q.indexLocked(entry)
	if i < 0 {
		return Item{}, false
	}
	return q.items[i], true
}

// FindTrack returns the first item, in head-relative order, holding
// trackID.
func (q *Queue) FindTrack(trackID string) (Item, bool) {
	for _, it := range q.Items() {
		if it.TrackID == trackID {
			return it, true
		}
	}
	return Item{}, false
}

// Seek makes entry the head without reordering anything. Items before it
// come back around after the last item. Returns false if entry is not
// queued.
func (q *Queue) Seek(entry uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexLocked(entry)
	if i < 0 {
		return false
	}
	q.head = i
	return true
}

func (q *Queue) indexLocked(entry uuid.UUID) int {
	return slices.IndexFunc(q.items, func(it Item) bool { return it.Entry == entry })
}

// Add appends items after the last queued item.
func (q *Queue) Add(items ...Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Replace clears the queue and adds items; the first one becomes the head.
func (q *Queue) Replace(items ...Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = slices.Clone(items)
	q.head = 0
}

// Top moves an existing item to index 0. The other items keep their order.
// Returns false if entry is not queued.
func (q *Queue) Top(entry uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(entry)
	if i < 0 {
		return false
	}
	if i == q.head {
		return true
	}

	item := q.items[i]
	q.items = slices.Delete(q.items, i, i+1)
	if i < q.head {
		q.head--
	}
	q.items = slices.Insert(q.items, q.head, item)
	return true
}

// Peek returns the item Shift(offset) would make the head, without
// moving. ok is false when the head would not change.
func (q *Queue) Peek(offset int) (Item, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	idx, moved := q.policy.target(q.head, offset, len(q.items))
	if !moved {
		return Item{}, false
	}
	return q.items[idx], true
}

// Shift moves the head by offset (+1 next, -1 previous) following the
// boundary policy. Returns false if the head did not change.
func (q *Queue) Shift(offset int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx, moved := q.policy.target(q.head, offset, len(q.items))
	if moved {
		q.head = idx
	}
	return moved
}

// Delete removes an item. wasHead reports whether it was at index 0; in
// that case the following item becomes the head and reloading it is up to
// the caller.
func (q *Queue) Delete(entry uuid.UUID) (wasHead, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(entry)
	if i < 0 {
		return false, false
	}
	wasHead = i == q.head
	q.items = slices.Delete(q.items, i, i+1)

	switch {
	case len(q.items) == 0:
		q.head = 0
	case i < q.head:
		q.head--
	case q.head >= len(q.items):
		if q.policy == Wrap {
			q.head = 0
		} else {
			q.head = len(q.items) - 1
		}
	}
	return wasHead, true
}

// Random shuffles the queue. With pinHead the head stays at index 0 and
// only the rest is shuffled. Nothing is added or dropped.
func (q *Queue) Random(pinHead bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	view := q.viewLocked()
	rest := view
	if pinHead && len(view) > 0 {
		rest = view[1:]
	}
	q.shuffle(rest)
	q.items = view
	q.head = 0
}

func (q *Queue) shuffle(items []Item) {
	swap := func(i, j int) { items[i], items[j] = items[j], items[i] }
	if q.rng != nil {
		q.rng.Shuffle(len(items), swap)
		return
	}
	rand.Shuffle(len(items), swap)
}

// Clear removes every item.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.head = 0
}

// Subscribe registers an observer for refresh notifications.
func (q *Queue) Subscribe() *Subscription {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()
	sub := newSubscription()
	q.subs = append(q.subs, sub)
	return sub
}

// Unsubscribe removes an observer and closes its Done channel.
func (q *Queue) Unsubscribe(sub *Subscription) {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()
	i := slices.Index(q.subs, sub)
	if i < 0 {
		return
	}
	q.subs = slices.Delete(q.subs, i, i+1)
	sub.close()
}

// Refresh tells every observer that the queue changed.
func (q *Queue) Refresh() {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()
	for _, sub := range q.subs {
		sub.notify()
	}
}

// Close unsubscribes every observer.
func (q *Queue) Close() {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()
	for _, sub := range q.subs {
		sub.close()
	}
	q.subs = nil
}
