package minio

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hupe1980/ivarray/blobstore"
	"github.com/hupe1980/ivarray/blockstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	const bucket = "test-ivarray"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, fmt.Sprintf("test-%d/", time.Now().UnixNano()))

	t.Run("Blobs", func(t *testing.T) {
		data := []byte("hello minio world")
		require.NoError(t, store.Put(ctx, "test.txt", data))

		blob, err := store.Open(ctx, "test.txt")
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 5)
		n, err := blob.ReadAt(ctx, buf, 6)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "minio", string(buf))
		require.NoError(t, blob.Close())

		names, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Contains(t, names, "test.txt")

		require.NoError(t, store.Delete(ctx, "test.txt"))
		_, err = store.Open(ctx, "test.txt")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("BlockStore", func(t *testing.T) {
		bs, err := blockstore.NewObjectStore(ctx, store, "blocks")
		require.NoError(t, err)
		defer bs.Close()

		id, err := bs.Write(ctx, []byte("value on minio"))
		require.NoError(t, err)

		got, err := bs.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "value on minio", string(got))

		require.NoError(t, bs.Free(ctx, id))
		require.NoError(t, bs.SaveFreeList(ctx))
	})
}
