package blockstore

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/ivarray/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPuts struct {
	*blobstore.MemoryStore
	fail bool
}

func (f *failingPuts) Put(ctx context.Context, name string, data []byte) error {
	if f.fail {
		return errors.New("put failed")
	}
	return f.MemoryStore.Put(ctx, name, data)
}

func TestObjectStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	s, err := NewObjectStore(ctx, blobs, "subject_values")
	require.NoError(t, err)

	a, err := s.Write(ctx, []byte("alpha"))
	require.NoError(t, err)
	b, err := s.Write(ctx, []byte("beta"))
	require.NoError(t, err)
	assert.Equal(t, BlockID(1), a)
	assert.Equal(t, BlockID(2), b)

	names, err := blobs.List(ctx, "subject_values/")
	require.NoError(t, err)
	assert.Equal(t, []string{"subject_values/0000000001", "subject_values/0000000002"}, names)

	got, err := s.Read(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))

	require.NoError(t, s.Free(ctx, a))
	_, err = s.Read(ctx, a)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, blobs.Len())

	require.NoError(t, s.SaveFreeList(ctx))
	require.NoError(t, s.Close())

	reopened, err := NewObjectStore(ctx, blobs, "subject_values")
	require.NoError(t, err)

	got, err = reopened.Read(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "beta", string(got))

	c, err := reopened.Write(ctx, []byte("gamma"))
	require.NoError(t, err)
	assert.Equal(t, a, c)

	d, err := reopened.Write(ctx, []byte("delta"))
	require.NoError(t, err)
	assert.Equal(t, BlockID(3), d)
}

func TestObjectStore_Checksum(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	s, err := NewObjectStore(ctx, blobs, "p")
	require.NoError(t, err)

	id, err := s.Write(ctx, []byte("value"))
	require.NoError(t, err)

	raw, err := blobstore.ReadAll(ctx, blobs, "p/0000000001")
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, blobs.Put(ctx, "p/0000000001", raw))

	_, err = s.Read(ctx, id)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestObjectStore_FailedPutFreesID(t *testing.T) {
	ctx := context.Background()
	blobs := &failingPuts{MemoryStore: blobstore.NewMemoryStore()}

	s, err := NewObjectStore(ctx, blobs, "p")
	require.NoError(t, err)

	blobs.fail = true
	id, err := s.Write(ctx, []byte("lost"))
	assert.Error(t, err)
	assert.Equal(t, NoBlock, id)

	blobs.fail = false
	id, err = s.Write(ctx, []byte("kept"))
	require.NoError(t, err)
	assert.Equal(t, BlockID(1), id)
}

func TestObjectStore_CorruptFreeList(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	require.NoError(t, blobs.Put(ctx, "p/"+FreeListBlob, []byte("garbage-garbage")))

	_, err := NewObjectStore(ctx, blobs, "p")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestObjectStore_LocalBackend(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewLocalStore(t.TempDir())

	s, err := NewObjectStore(ctx, blobs, "values")
	require.NoError(t, err)

	id, err := s.Write(ctx, []byte("on disk"))
	require.NoError(t, err)

	got, err := s.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(got))

	require.NoError(t, s.Free(ctx, id))
	require.NoError(t, s.SaveFreeList(ctx))

	names, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"values/freelist"}, names)
}
