// Package ivarray provides the per-key value array of a key-value storage
// engine.
//
// A ValueArray has one slot per integer key. Each slot either holds its
// value in a size-bounded in-memory LRU cache or points to a block in a
// block store. Values larger than the long-value threshold always live in
// the block store.
//
// # Quick Start
//
//	arr, err := ivarray.Build("./data", "subject", 10_000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer arr.Close()
//
//	_ = arr.Insert(ctx, 42, []byte("hello"))
//	v, _ := arr.Search(ctx, 42)
//	_ = arr.Modify(ctx, 42, []byte("hello, world"))
//	_ = arr.Save(ctx) // durable after this
//
//	arr, err = ivarray.Open("./data", "subject", ivarray.WithPreload())
//
// # Persistence Model
//
// Mutations only touch the cache. Cache-only values reach the block store
// when they are evicted or when Save runs. Save rewrites the index file
// <dir>/<name>_IVfile: a little-endian uint32 capacity followed by one
// uint32 block id per slot (0 for unused slots). Close does not save.
//
// # Block Stores
//
// By default values are kept in a file store at <dir>/<name>. Any
// blockstore.Store can be injected with WithBlockStore, including
// blockstore.ObjectStore on top of S3 or MinIO and the compressing
// blockstore.Compressed decorator.
//
// # Concurrency
//
// A ValueArray is single-owner and not safe for concurrent use. Several
// arrays can share a memory budget through WithResourceController.
package ivarray
