package ivarray

import (
	"context"
	"path/filepath"
	"time"

	"github.com/hupe1980/ivarray/blockstore"
	"github.com/hupe1980/ivarray/internal/cache"
	"github.com/hupe1980/ivarray/internal/entry"
	"github.com/hupe1980/ivarray/internal/fs"
	"github.com/hupe1980/ivarray/internal/resource"
)

// ValueArray maps integer keys to byte values.
//
// Every key owns one slot. A slot holds its value either inline in a size
// bounded LRU cache or as a reference to a block in a blockstore.Store.
// Mutations are written to the cache, and reach the block store lazily on
// eviction or Save. Save also rewrites the index file, which records the
// capacity and the block id of every slot.
//
// A ValueArray is not safe for concurrent use.
type ValueArray struct {
	path  string // index file
	index fs.File
	store blockstore.Store

	entries       []entry.Entry
	keyCount      uint32
	cacheBytes    uint64
	maxCacheBytes uint64
	capacityDirty bool
	lru           *cache.LRU

	isLong             func(int) bool
	maxKeyID           uint32
	growthIncrement    uint32
	controller         *resource.Controller
	preloadConcurrency int

	metrics MetricsCollector
	logger  *Logger
	closed  bool
}

// Stats is a point-in-time summary of an array.
type Stats struct {
	Capacity      uint32
	Keys          uint32
	CacheBytes    uint64
	MaxCacheBytes uint64
	CachedKeys    int
}

// IndexFileName returns the index file path of the array name in dir.
func IndexFileName(dir, name string) string {
	return filepath.Join(dir, name+"_IVfile")
}

func newValueArray(path string, o options) *ValueArray {
	return &ValueArray{
		path:               path,
		store:              o.store,
		maxCacheBytes:      o.maxCacheBytes,
		lru:                cache.NewLRU(o.clock),
		isLong:             o.isLong,
		maxKeyID:           o.maxKeyID,
		growthIncrement:    o.growthIncrement,
		controller:         o.controller,
		preloadConcurrency: o.preloadConcurrency,
		metrics:            o.metricsCollector,
		logger:             o.logger,
	}
}

// Build creates an empty array named name in dir, sized for expectedKeys.
// An existing index file is truncated. Without WithBlockStore a new file
// block store is created at <dir>/<name>.
func Build(dir, name string, expectedKeys uint32, opts ...Option) (*ValueArray, error) {
	o := applyOptions(opts)
	ctx := context.Background()
	path := IndexFileName(dir, name)
	logger := o.logger.WithArray(name)
	o.logger = logger

	a := newValueArray(path, o)
	a.entries = make([]entry.Entry, roundCapacity(uint64(expectedKeys)))
	a.capacityDirty = true

	if err := a.createIndex(o.fsys); err != nil {
		logger.LogOpen(ctx, path, true, 0, 0, err)
		return nil, err
	}

	if a.store == nil {
		store, err := blockstore.CreateFileStore(filepath.Join(dir, name), func(fo *blockstore.FileOptions) {
			fo.FileSystem = o.fsys
		})
		if err != nil {
			_ = a.index.Close()
			err = initError("create block store", err)
			logger.LogOpen(ctx, path, true, 0, 0, err)
			return nil, err
		}
		a.store = store
	}

	logger.LogOpen(ctx, path, true, a.Capacity(), 0, nil)
	return a, nil
}

// Open loads the array named name from dir. Every used slot starts out on
// disk; nothing is cached unless WithPreload is given.
func Open(dir, name string, opts ...Option) (*ValueArray, error) {
	o := applyOptions(opts)
	ctx := context.Background()
	path := IndexFileName(dir, name)
	logger := o.logger.WithArray(name)
	o.logger = logger

	a := newValueArray(path, o)
	if err := a.openIndex(o.fsys); err != nil {
		logger.LogOpen(ctx, path, false, 0, 0, err)
		return nil, err
	}

	if a.store == nil {
		store, err := blockstore.OpenFileStore(filepath.Join(dir, name), func(fo *blockstore.FileOptions) {
			fo.FileSystem = o.fsys
		})
		if err != nil {
			_ = a.index.Close()
			err = initError("open block store", err)
			logger.LogOpen(ctx, path, false, 0, 0, err)
			return nil, err
		}
		a.store = store
	}

	logger.LogOpen(ctx, path, false, a.Capacity(), a.keyCount, nil)

	if o.preload {
		if err := a.Preload(ctx); err != nil {
			if o.store != nil {
				// An injected store stays with the caller on failure.
				a.store = nil
			}
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// roundCapacity rounds n up to the capacity granularity, with a floor of
// MinCapacity.
func roundCapacity(n uint64) uint32 {
	c := (n + MinCapacity - 1) / MinCapacity * MinCapacity
	if c < MinCapacity {
		c = MinCapacity
	}
	if c > MaxCapacity {
		return MaxCapacity
	}
	return uint32(c)
}

// Capacity returns the number of slots.
func (a *ValueArray) Capacity() uint32 { return uint32(len(a.entries)) }

// Len returns the number of used slots.
func (a *ValueArray) Len() uint32 { return a.keyCount }

// Contains reports whether key holds a value.
func (a *ValueArray) Contains(key uint32) bool {
	return key < a.Capacity() && a.entries[key].Used()
}

// Stats returns a summary of the array.
func (a *ValueArray) Stats() Stats {
	return Stats{
		Capacity:      a.Capacity(),
		Keys:          a.keyCount,
		CacheBytes:    a.cacheBytes,
		MaxCacheBytes: a.maxCacheBytes,
		CachedKeys:    a.lru.Len(),
	}
}

// Search returns the value stored under key.
//
// A cached value is returned without copying: the slice must not be
// modified and is only valid until the next mutating call. Values read from
// the block store are admitted into the cache unless they are long.
func (a *ValueArray) Search(ctx context.Context, key uint32) ([]byte, error) {
	start := time.Now()
	value, hit, err := a.search(ctx, key)
	a.metrics.RecordSearch(hit, time.Since(start), err)
	return value, err
}

func (a *ValueArray) search(ctx context.Context, key uint32) ([]byte, bool, error) {
	if a.closed {
		return nil, false, ErrClosed
	}
	if key >= a.Capacity() || !a.entries[key].Used() {
		return nil, false, keyError("search", key, ErrOutOfRange)
	}

	e := &a.entries[key]
	if e.InCache() {
		a.lru.Touch(key)
		return e.Bytes(), true, nil
	}

	block := e.Block()
	data, err := a.store.Read(ctx, block)
	if err != nil {
		return nil, false, storeError("search", key, ErrBlockRead, err)
	}

	if e.IsLong() || a.isLong(len(data)) {
		e.SetLong(block)
		return data, false, nil
	}

	// The value is returned even when it cannot be cached.
	if err := a.addInCache(ctx, key, data, block); err != nil {
		a.logger.DebugContext(ctx, "admission skipped", "key", key, "error", err)
	}
	return data, false, nil
}

// Insert stores value under a key that is not in use yet. value is copied.
// Keys beyond the capacity grow the array.
func (a *ValueArray) Insert(ctx context.Context, key uint32, value []byte) error {
	start := time.Now()
	err := a.insert(ctx, key, value)
	a.metrics.RecordInsert(time.Since(start), err)
	return err
}

func (a *ValueArray) insert(ctx context.Context, key uint32, value []byte) error {
	if a.closed {
		return ErrClosed
	}
	if key >= a.maxKeyID {
		return keyError("insert", key, ErrKeyTooLarge)
	}
	if key < a.Capacity() && a.entries[key].Used() {
		return keyError("insert", key, ErrAlreadyExists)
	}
	long := a.isLong(len(value))
	if !long && uint64(len(value)) > a.maxCacheBytes {
		return keyError("insert", key, ErrValueTooLargeForCache)
	}

	if key >= a.Capacity() {
		a.grow(ctx, key)
	}

	buf := make([]byte, len(value))
	copy(buf, value)

	e := &a.entries[key]
	if long {
		block, err := a.store.Write(ctx, buf)
		if err != nil {
			return storeError("insert", key, ErrBlockWrite, err)
		}
		e.SetLong(block)
	} else if err := a.addInCache(ctx, key, buf, blockstore.NoBlock); err != nil {
		return err
	}

	e.SetDirty(true)
	a.keyCount++
	return nil
}

// grow enlarges the array so that key fits.
func (a *ValueArray) grow(ctx context.Context, key uint32) {
	old := a.Capacity()
	newCap := max(roundCapacity(uint64(old)+uint64(a.growthIncrement)), roundCapacity(uint64(key)+1))

	entries := make([]entry.Entry, newCap)
	for i := range a.entries {
		entries[i] = a.entries[i].Clone()
	}
	a.entries = entries
	a.capacityDirty = true

	a.logger.LogGrow(ctx, old, newCap)
}

// Modify replaces the value of a used key. value is copied.
func (a *ValueArray) Modify(ctx context.Context, key uint32, value []byte) error {
	start := time.Now()
	err := a.modify(ctx, key, value)
	a.metrics.RecordModify(time.Since(start), err)
	return err
}

func (a *ValueArray) modify(ctx context.Context, key uint32, value []byte) error {
	if a.closed {
		return ErrClosed
	}
	if key >= a.Capacity() {
		return keyError("modify", key, ErrOutOfRange)
	}
	e := &a.entries[key]
	if !e.Used() {
		return keyError("modify", key, ErrNotFound)
	}

	long := a.isLong(len(value))
	if !long && uint64(len(value)) > a.maxCacheBytes {
		return keyError("modify", key, ErrValueTooLargeForCache)
	}

	buf := make([]byte, len(value))
	copy(buf, value)

	var err error
	switch {
	case long:
		err = a.modifyToLong(ctx, key, buf)
	case e.InCache():
		err = a.modifyCached(ctx, key, buf)
	default:
		err = a.modifyUncached(ctx, key, buf)
	}
	if err != nil {
		return err
	}

	e.SetDirty(true)
	return nil
}

// modifyToLong writes the new value before the old block is freed.
func (a *ValueArray) modifyToLong(ctx context.Context, key uint32, buf []byte) error {
	e := &a.entries[key]

	block, err := a.store.Write(ctx, buf)
	if err != nil {
		return storeError("modify", key, ErrBlockWrite, err)
	}
	if err := a.store.Free(ctx, e.Block()); err != nil {
		_ = a.store.Free(ctx, block)
		return storeError("modify", key, ErrBlockWrite, err)
	}

	if e.InCache() {
		a.dropCached(key)
	}
	e.SetLong(block)
	return nil
}

// modifyCached swaps the cached bytes in place. Other keys are evicted when
// the value grows past the budget; the modified key never is.
func (a *ValueArray) modifyCached(ctx context.Context, key uint32, buf []byte) error {
	e := &a.entries[key]
	oldLen := int64(len(e.Bytes()))
	delta := int64(len(buf)) - oldLen

	a.lru.Untrack(key)
	if err := a.reserve(ctx, delta); err != nil {
		a.lru.Track(key)
		return err
	}
	if err := a.store.Free(ctx, e.Block()); err != nil {
		a.unreserve(delta)
		a.lru.Track(key)
		return storeError("modify", key, ErrBlockWrite, err)
	}

	e.ReplaceBytes(buf)
	a.cacheBytes = uint64(int64(a.cacheBytes) + delta)
	if delta < 0 {
		a.controller.ReleaseMemory(-delta)
	}
	a.lru.Track(key)
	return nil
}

// reserve makes room for delta additional cached bytes by evicting tracked
// keys. A negative delta needs no room.
func (a *ValueArray) reserve(ctx context.Context, delta int64) error {
	if delta <= 0 {
		return nil
	}
	for a.cacheBytes+uint64(delta) > a.maxCacheBytes {
		evicted, err := a.swapOut(ctx)
		if err != nil {
			return err
		}
		if !evicted {
			return ErrValueTooLargeForCache
		}
	}
	for !a.controller.TryAcquireMemory(delta) {
		evicted, err := a.swapOut(ctx)
		if err != nil {
			return err
		}
		if !evicted {
			return resource.ErrMemoryLimitExceeded
		}
	}
	return nil
}

func (a *ValueArray) unreserve(delta int64) {
	if delta > 0 {
		a.controller.ReleaseMemory(delta)
	}
}

// modifyUncached admits the new value before the old block is freed, so a
// failed admission leaves the slot untouched.
func (a *ValueArray) modifyUncached(ctx context.Context, key uint32, buf []byte) error {
	e := &a.entries[key]
	prev := *e

	if err := a.addInCache(ctx, key, buf, blockstore.NoBlock); err != nil {
		return err
	}
	if err := a.store.Free(ctx, prev.Block()); err != nil {
		a.dropCached(key)
		*e = prev
		return storeError("modify", key, ErrBlockWrite, err)
	}
	return nil
}

// Remove deletes the value of a used key and frees its block.
func (a *ValueArray) Remove(ctx context.Context, key uint32) error {
	start := time.Now()
	err := a.remove(ctx, key)
	a.metrics.RecordRemove(time.Since(start), err)
	return err
}

func (a *ValueArray) remove(ctx context.Context, key uint32) error {
	if a.closed {
		return ErrClosed
	}
	if key >= a.Capacity() {
		return keyError("remove", key, ErrOutOfRange)
	}
	e := &a.entries[key]
	if !e.Used() {
		return keyError("remove", key, ErrNotFound)
	}

	if err := a.store.Free(ctx, e.Block()); err != nil {
		return storeError("remove", key, ErrBlockWrite, err)
	}
	if e.InCache() {
		a.dropCached(key)
	}
	e.Clear()
	a.keyCount--
	return nil
}

// Close releases the cache and closes the index file and the block store.
// It does not save: unsaved changes are discarded.
func (a *ValueArray) Close() error {
	if a == nil || a.closed {
		return nil
	}
	a.closed = true

	unsaved := 0
	if a.capacityDirty {
		unsaved++
	}
	for i := range a.entries {
		if a.entries[i].Dirty() {
			unsaved++
		}
	}

	for _, key := range a.lru.Keys() {
		a.dropCached(key)
	}
	a.lru.Reset()

	var firstErr error
	if a.index != nil {
		if err := a.index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.logger.LogClose(context.Background(), unsaved, firstErr)
	return firstErr
}
