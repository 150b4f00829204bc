// Package blobstore provides named-blob storage backends.
//
// A value array never talks to a BlobStore directly: blockstore.ObjectStore
// maps block ids onto blob names, which lets the block store live on a
// local directory, in memory, on MinIO or on S3.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, reads through read-only mmap, atomic writes
//   - MemoryStore: in-memory, for tests
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
