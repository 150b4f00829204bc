package blockstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/ivarray/blobstore"
)

// FreeListBlob is the blob name of an object store's free list, relative to
// its prefix.
const FreeListBlob = "freelist"

const objectHeaderSize = 8 // xxhash64

// ObjectStore keeps one blob per block in a blobstore.BlobStore, so values
// can live in S3, MinIO or a local directory.
//
// Blob names are the zero-padded block id under prefix. Free ids and the
// high-water mark are persisted by SaveFreeList as a single blob.
type ObjectStore struct {
	mu     sync.RWMutex
	blobs  blobstore.BlobStore
	prefix string

	free   *roaring.Bitmap
	next   BlockID
	closed bool
}

// NewObjectStore opens the object store under prefix, loading its free list
// if one was saved before.
func NewObjectStore(ctx context.Context, blobs blobstore.BlobStore, prefix string) (*ObjectStore, error) {
	s := &ObjectStore{
		blobs:  blobs,
		prefix: prefix,
		free:   roaring.New(),
		next:   1,
	}

	data, err := blobstore.ReadAll(ctx, blobs, s.name(FreeListBlob))
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("blockstore: read free list: %w", err)
	}

	if len(data) < freeHeaderSize {
		return nil, fmt.Errorf("%w: free list too short", ErrCorrupt)
	}
	next := BlockID(binary.LittleEndian.Uint32(data[0:]))
	bm := data[freeHeaderSize:]
	if next == NoBlock || xxhash.Sum64(bm) != binary.LittleEndian.Uint64(data[4:]) {
		return nil, fmt.Errorf("%w: free list checksum mismatch", ErrCorrupt)
	}
	if err := s.free.UnmarshalBinary(bm); err != nil {
		return nil, fmt.Errorf("%w: decode free list: %w", ErrCorrupt, err)
	}
	s.next = next
	return s, nil
}

func (s *ObjectStore) name(elem string) string {
	return path.Join(s.prefix, elem)
}

func (s *ObjectStore) blockName(id BlockID) string {
	return s.name(fmt.Sprintf("%010d", uint32(id)))
}

// Read fetches the blob of id and verifies its checksum.
func (s *ObjectStore) Read(ctx context.Context, id BlockID) ([]byte, error) {
	if id == NoBlock {
		return nil, ErrNoBlock
	}

	s.mu.RLock()
	closed, live := s.closed, s.allocated(id)
	s.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !live {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	raw, err := blobstore.ReadAll(ctx, s.blobs, s.blockName(id))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("blockstore: read block %d: %w", id, err)
	}
	if len(raw) < objectHeaderSize {
		return nil, fmt.Errorf("%w: block %d: short blob", ErrCorrupt, id)
	}
	data := raw[objectHeaderSize:]
	if xxhash.Sum64(data) != binary.LittleEndian.Uint64(raw) {
		return nil, fmt.Errorf("%w: block %d: checksum mismatch", ErrCorrupt, id)
	}
	return data, nil
}

// Write uploads p under a newly allocated id. The id is returned to the
// free list when the upload fails.
func (s *ObjectStore) Write(ctx context.Context, p []byte) (BlockID, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NoBlock, ErrClosed
	}
	var id BlockID
	switch {
	case !s.free.IsEmpty():
		id = BlockID(s.free.Minimum())
		s.free.Remove(uint32(id))
	case s.next == math.MaxUint32:
		s.mu.Unlock()
		return NoBlock, ErrFull
	default:
		id = s.next
		s.next++
	}
	s.mu.Unlock()

	buf := make([]byte, objectHeaderSize+len(p))
	binary.LittleEndian.PutUint64(buf, xxhash.Sum64(p))
	copy(buf[objectHeaderSize:], p)

	if err := s.blobs.Put(ctx, s.blockName(id), buf); err != nil {
		s.mu.Lock()
		s.free.Add(uint32(id))
		s.mu.Unlock()
		return NoBlock, fmt.Errorf("blockstore: write block %d: %w", id, err)
	}
	return id, nil
}

// Free deletes the blob of id and marks the id free. Freeing NoBlock or a
// free id is a no-op.
func (s *ObjectStore) Free(ctx context.Context, id BlockID) error {
	if id == NoBlock {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.allocated(id) {
		return nil
	}
	if err := s.blobs.Delete(ctx, s.blockName(id)); err != nil {
		return fmt.Errorf("blockstore: delete block %d: %w", id, err)
	}
	s.free.Add(uint32(id))
	return nil
}

// SaveFreeList uploads the free bitmap and the high-water mark.
func (s *ObjectStore) SaveFreeList(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	bm, err := s.free.ToBytes()
	next := s.next
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("blockstore: encode free list: %w", err)
	}

	buf := make([]byte, freeHeaderSize+len(bm))
	binary.LittleEndian.PutUint32(buf[0:], uint32(next))
	binary.LittleEndian.PutUint64(buf[4:], xxhash.Sum64(bm))
	copy(buf[freeHeaderSize:], bm)

	if err := s.blobs.Put(ctx, s.name(FreeListBlob), buf); err != nil {
		return fmt.Errorf("blockstore: write free list: %w", err)
	}
	return nil
}

// Close marks the store closed. The underlying BlobStore is not closed.
func (s *ObjectStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *ObjectStore) allocated(id BlockID) bool {
	return id != NoBlock && id < s.next && !s.free.Contains(uint32(id))
}
