package ivarray

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Preload warms the cache with the values of used slots, in key order.
//
// It stops at the first value whose admission would push the cache past
// half of its budget, or that the resource controller does not grant.
// Long values are skipped. Reads are issued in parallel windows; values are
// admitted strictly in key order.
func (a *ValueArray) Preload(ctx context.Context) error {
	start := time.Now()
	loaded, err := a.preload(ctx)
	a.logger.LogPreload(ctx, loaded, a.cacheBytes, time.Since(start), err)
	return err
}

func (a *ValueArray) preload(ctx context.Context) (int, error) {
	if a.closed {
		return 0, ErrClosed
	}

	var keys []uint32
	for i := range a.entries {
		e := &a.entries[i]
		if e.Used() && !e.InCache() && !e.IsLong() {
			keys = append(keys, uint32(i))
		}
	}

	limit := a.maxCacheBytes / 2
	loaded := 0
	window := a.preloadConcurrency
	results := make([][]byte, window)

	for len(keys) > 0 {
		batch := keys[:min(window, len(keys))]
		keys = keys[len(batch):]

		g, gctx := errgroup.WithContext(ctx)
		for i, key := range batch {
			block := a.entries[key].Block()
			g.Go(func() error {
				if err := a.controller.AcquireReader(gctx); err != nil {
					return err
				}
				defer a.controller.ReleaseReader()

				data, err := a.store.Read(gctx, block)
				if err != nil {
					return storeError("preload", key, ErrBlockRead, err)
				}
				if err := a.controller.AcquireIO(gctx, len(data)); err != nil {
					return err
				}
				results[i] = data
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return loaded, err
		}

		for i, key := range batch {
			data := results[i]
			results[i] = nil

			e := &a.entries[key]
			if a.isLong(len(data)) {
				e.SetLong(e.Block())
				continue
			}
			n := uint64(len(data))
			if a.cacheBytes+n > limit || !a.controller.TryAcquireMemory(int64(n)) {
				return loaded, nil
			}
			a.admit(key, data, e.Block())
			loaded++
		}
	}
	return loaded, nil
}
