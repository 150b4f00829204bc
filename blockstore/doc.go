// Package blockstore provides the block stores a value array persists its
// values in.
//
// A Store maps byte blobs to 32-bit block ids. Id 0 is reserved as the
// "no block" sentinel and is never handed out. Freed ids are reused.
//
// # Implementations
//
//   - FileStore: chains of fixed-size blocks in a single local file, with a
//     roaring free list saved next to it
//   - ObjectStore: one blob per block in any blobstore.BlobStore (local
//     directory, S3, MinIO)
//   - Memory: an in-memory store for tests
//
// Compressed wraps any Store and compresses blobs with LZ4, ZSTD or Snappy.
package blockstore
