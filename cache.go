package ivarray

import (
	"context"

	"github.com/hupe1980/ivarray/blockstore"
)

// addInCache admits b as the cached value of key, evicting the least
// recently used keys until it fits. block is the block backing b, or
// NoBlock for cache-only bytes.
func (a *ValueArray) addInCache(ctx context.Context, key uint32, b []byte, block blockstore.BlockID) error {
	n := uint64(len(b))
	if n > a.maxCacheBytes {
		return keyError("admit", key, ErrValueTooLargeForCache)
	}
	if err := a.reserve(ctx, int64(n)); err != nil {
		return err
	}
	a.admit(key, b, block)
	return nil
}

// admit stores b in the slot of key. The caller has made room and acquired
// controller memory.
func (a *ValueArray) admit(key uint32, b []byte, block blockstore.BlockID) {
	a.entries[key].SetCached(b, block)
	a.cacheBytes += uint64(len(b))
	a.lru.Track(key)
}

// swapOut evicts the least recently used key. Cache-only bytes are written
// to the block store first; the slot stays dirty so Save records the new
// block. It reports false when nothing is cached.
func (a *ValueArray) swapOut(ctx context.Context) (bool, error) {
	key, ok := a.lru.Oldest()
	if !ok {
		return false, nil
	}

	e := &a.entries[key]
	writeBack := e.Unbacked()
	if writeBack {
		block, err := a.store.Write(ctx, e.Bytes())
		if err != nil {
			return false, storeError("evict", key, ErrBlockWrite, err)
		}
		e.SetBlock(block)
		e.SetDirty(true)
	}

	n := a.dropCached(key)
	a.metrics.RecordEviction(writeBack)
	a.logger.LogEviction(ctx, key, n, writeBack)
	return true, nil
}

// dropCached releases the cached bytes of key and returns their length.
func (a *ValueArray) dropCached(key uint32) int {
	b := a.entries[key].Release()
	a.cacheBytes -= uint64(len(b))
	a.controller.ReleaseMemory(int64(len(b)))
	a.lru.Untrack(key)
	return len(b)
}
