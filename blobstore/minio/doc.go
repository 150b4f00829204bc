// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible services (Ceph, Garage,
// SeaweedFS) without pulling in the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	blobs := minioblob.NewStore(client, "my-bucket", "kv/")
//	blocks, err := blockstore.NewObjectStore(ctx, blobs, "subject_values")
//	arr, err := ivarray.Build(dir, "subject", 0, ivarray.WithBlockStore(blocks))
package minio
