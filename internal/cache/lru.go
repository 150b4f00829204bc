package cache

import (
	"container/list"

	"github.com/hupe1980/ivarray/internal/clock"
)

// LRU is the recency index of a value array. It tracks the last access time
// of every cached key and yields the least recently used one.
//
// Keys are kept in a list ordered by timestamp. Since the clock never goes
// backwards, refreshing a key always moves it to the back, and the front is
// the oldest key. Equal timestamps keep insertion order.
//
// LRU is not safe for concurrent use.
type LRU struct {
	clock     clock.Clock
	items     map[uint32]*list.Element
	evictList *list.List
}

type item struct {
	key   uint32
	stamp int64
}

// NewLRU creates an empty index stamped by c.
func NewLRU(c clock.Clock) *LRU {
	if c == nil {
		c = clock.NewLogical()
	}
	return &LRU{
		clock:     c,
		items:     make(map[uint32]*list.Element),
		evictList: list.New(),
	}
}

// Track registers key with a fresh timestamp, replacing any previous one.
func (l *LRU) Track(key uint32) {
	stamp := l.clock.Now()
	if ent, ok := l.items[key]; ok {
		ent.Value.(*item).stamp = stamp
		l.evictList.MoveToBack(ent)
		return
	}
	l.items[key] = l.evictList.PushBack(&item{key: key, stamp: stamp})
}

// Touch refreshes the timestamp of a tracked key. It reports false and does
// nothing when key is not tracked.
func (l *LRU) Touch(key uint32) bool {
	ent, ok := l.items[key]
	if !ok {
		return false
	}
	ent.Value.(*item).stamp = l.clock.Now()
	l.evictList.MoveToBack(ent)
	return true
}

// Untrack removes key from the index.
func (l *LRU) Untrack(key uint32) {
	if ent, ok := l.items[key]; ok {
		l.evictList.Remove(ent)
		delete(l.items, key)
	}
}

// Oldest returns the least recently used key. ok is false when the index is
// empty.
func (l *LRU) Oldest() (key uint32, ok bool) {
	ent := l.evictList.Front()
	if ent == nil {
		return 0, false
	}
	return ent.Value.(*item).key, true
}

// LastAccess returns the timestamp recorded for key.
func (l *LRU) LastAccess(key uint32) (int64, bool) {
	ent, ok := l.items[key]
	if !ok {
		return 0, false
	}
	return ent.Value.(*item).stamp, true
}

// Contains reports whether key is tracked.
func (l *LRU) Contains(key uint32) bool {
	_, ok := l.items[key]
	return ok
}

// Len returns the number of tracked keys.
func (l *LRU) Len() int {
	return len(l.items)
}

// Keys returns the tracked keys from least to most recently used.
func (l *LRU) Keys() []uint32 {
	keys := make([]uint32, 0, len(l.items))
	for ent := l.evictList.Front(); ent != nil; ent = ent.Next() {
		keys = append(keys, ent.Value.(*item).key)
	}
	return keys
}

// Reset removes every key.
func (l *LRU) Reset() {
	l.items = make(map[uint32]*list.Element)
	l.evictList.Init()
}
