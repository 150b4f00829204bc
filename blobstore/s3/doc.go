// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	blobs := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "kv/")
//	blocks, err := blockstore.NewObjectStore(ctx, blobs, "subject_values")
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large values
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
