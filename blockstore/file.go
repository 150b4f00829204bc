package blockstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/ivarray/internal/fs"
)

const (
	// DefaultBlockSize is the block size of newly created file stores.
	DefaultBlockSize = 4096
	// MinBlockSize is the smallest block size a file store accepts.
	MinBlockSize = 64

	// ValuesSuffix and FreeListSuffix name the two files of a file store.
	ValuesSuffix   = "_values"
	FreeListSuffix = "_freelist"

	fileMagic   = 0x53425649 // "IVBS"
	fileVersion = 1

	nextSize       = 4
	headHeaderSize = nextSize + 4 + 8 // next | length | xxhash64
	freeHeaderSize = 4 + 8            // high-water | xxhash64
)

// ErrFull is returned when a store runs out of block ids.
var ErrFull = errors.New("blockstore: no block ids left")

// FileOptions configures a FileStore.
type FileOptions struct {
	// BlockSize is the size of one block. Ignored when opening an existing
	// store, whose block size is read from its header.
	BlockSize int
	// FileSystem is used for the values file and the free list.
	FileSystem fs.FileSystem
	// SyncOnSave fsyncs the values file in SaveFreeList.
	SyncOnSave bool
}

// DefaultFileOptions are the defaults applied before option functions.
var DefaultFileOptions = FileOptions{
	BlockSize:  DefaultBlockSize,
	FileSystem: fs.Default,
	SyncOnSave: true,
}

// FileStore keeps blobs in chains of fixed-size blocks inside a single file.
//
// Block 0 holds the file header, which is why id 0 can never be handed out.
// Every block starts with the id of the next block of its chain (0 ends the
// chain). The head block of a chain additionally records the blob length and
// its xxhash64 checksum, verified on every read.
//
// Free block ids are kept in a roaring bitmap. SaveFreeList replaces the
// "<base>_freelist" file atomically with the bitmap and the high-water mark.
type FileStore struct {
	mu        sync.RWMutex
	fsys      fs.FileSystem
	file      fs.File
	freePath  string
	blockSize int
	sync      bool

	free   *roaring.Bitmap
	next   BlockID // first id never allocated
	closed bool
}

// CreateFileStore creates (or truncates) the store at base.
func CreateFileStore(base string, optFns ...func(o *FileOptions)) (*FileStore, error) {
	opts := DefaultFileOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BlockSize < MinBlockSize {
		return nil, fmt.Errorf("blockstore: block size %d below minimum %d", opts.BlockSize, MinBlockSize)
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}

	if err := opts.FileSystem.MkdirAll(filepath.Dir(base), 0o750); err != nil {
		return nil, fmt.Errorf("blockstore: create directory: %w", err)
	}

	f, err := opts.FileSystem.OpenFile(base+ValuesSuffix, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("blockstore: create values file: %w", err)
	}

	s := &FileStore{
		fsys:      opts.FileSystem,
		file:      f,
		freePath:  base + FreeListSuffix,
		blockSize: opts.BlockSize,
		sync:      opts.SyncOnSave,
		free:      roaring.New(),
		next:      1,
	}

	header := make([]byte, s.blockSize)
	binary.LittleEndian.PutUint32(header[0:], fileMagic)
	binary.LittleEndian.PutUint32(header[4:], fileVersion)
	binary.LittleEndian.PutUint32(header[8:], uint32(s.blockSize))
	if _, err := f.WriteAt(header, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("blockstore: write header: %w", err)
	}

	if err := s.saveFreeList(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// OpenFileStore opens the existing store at base.
func OpenFileStore(base string, optFns ...func(o *FileOptions)) (*FileStore, error) {
	opts := DefaultFileOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}

	f, err := opts.FileSystem.OpenFile(base+ValuesSuffix, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open values file: %w", err)
	}

	header := make([]byte, 12)
	if _, err := f.ReadAt(header, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: read header: %w", ErrCorrupt, err)
	}
	if binary.LittleEndian.Uint32(header[0:]) != fileMagic {
		_ = f.Close()
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != fileVersion {
		_ = f.Close()
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	blockSize := int(binary.LittleEndian.Uint32(header[8:]))
	if blockSize < MinBlockSize {
		_ = f.Close()
		return nil, fmt.Errorf("%w: block size %d", ErrCorrupt, blockSize)
	}

	s := &FileStore{
		fsys:      opts.FileSystem,
		file:      f,
		freePath:  base + FreeListSuffix,
		blockSize: blockSize,
		sync:      opts.SyncOnSave,
		free:      roaring.New(),
	}
	if err := s.loadFreeList(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// BlockSize returns the block size of the store.
func (s *FileStore) BlockSize() int { return s.blockSize }

func (s *FileStore) headCapacity() int { return s.blockSize - headHeaderSize }
func (s *FileStore) bodyCapacity() int { return s.blockSize - nextSize }

// blocksFor returns the chain length needed for a blob of n bytes.
func (s *FileStore) blocksFor(n int) int {
	if n <= s.headCapacity() {
		return 1
	}
	rest := n - s.headCapacity()
	return 1 + (rest+s.bodyCapacity()-1)/s.bodyCapacity()
}

func (s *FileStore) offset(id BlockID) int64 {
	return int64(id) * int64(s.blockSize)
}

// Read returns the blob whose chain starts at id.
func (s *FileStore) Read(ctx context.Context, id BlockID) ([]byte, error) {
	if id == NoBlock {
		return nil, ErrNoBlock
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if !s.allocated(id) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	buf := make([]byte, s.blockSize)
	if err := s.readBlock(id, buf); err != nil {
		return nil, err
	}
	next := BlockID(binary.LittleEndian.Uint32(buf[0:]))
	length := int(binary.LittleEndian.Uint32(buf[4:]))
	sum := binary.LittleEndian.Uint64(buf[8:])

	if s.blocksFor(length) > int(s.next) {
		return nil, fmt.Errorf("%w: block %d: length %d", ErrCorrupt, id, length)
	}

	data := make([]byte, 0, length)
	data = append(data, buf[headHeaderSize:headHeaderSize+min(length, s.headCapacity())]...)

	for len(data) < length {
		if !s.allocated(next) {
			return nil, fmt.Errorf("%w: block %d: broken chain at %d", ErrCorrupt, id, next)
		}
		if err := s.readBlock(next, buf); err != nil {
			return nil, err
		}
		n := min(length-len(data), s.bodyCapacity())
		data = append(data, buf[nextSize:nextSize+n]...)
		next = BlockID(binary.LittleEndian.Uint32(buf[0:]))
	}

	if xxhash.Sum64(data) != sum {
		return nil, fmt.Errorf("%w: block %d: checksum mismatch", ErrCorrupt, id)
	}
	return data, nil
}

// Write stores p in a new chain and returns the id of its head block.
func (s *FileStore) Write(ctx context.Context, p []byte) (BlockID, error) {
	if err := ctx.Err(); err != nil {
		return NoBlock, err
	}
	if uint64(len(p)) > math.MaxUint32 {
		return NoBlock, fmt.Errorf("blockstore: blob of %d bytes too large", len(p))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NoBlock, ErrClosed
	}

	ids, err := s.allocate(s.blocksFor(len(p)))
	if err != nil {
		return NoBlock, err
	}

	buf := make([]byte, s.blockSize)
	rest := p
	for i, id := range ids {
		clear(buf)
		var next BlockID
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		binary.LittleEndian.PutUint32(buf[0:], uint32(next))
		if i == 0 {
			binary.LittleEndian.PutUint32(buf[4:], uint32(len(p)))
			binary.LittleEndian.PutUint64(buf[8:], xxhash.Sum64(p))
			rest = rest[copy(buf[headHeaderSize:], rest):]
		} else {
			rest = rest[copy(buf[nextSize:], rest):]
		}
		if _, err := s.file.WriteAt(buf, s.offset(id)); err != nil {
			s.release(ids)
			return NoBlock, fmt.Errorf("blockstore: write block %d: %w", id, err)
		}
	}
	return ids[0], nil
}

// Free releases the chain starting at id. Freeing NoBlock or an id that is
// already free is a no-op.
func (s *FileStore) Free(ctx context.Context, id BlockID) error {
	if id == NoBlock {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var chain []BlockID
	ptr := make([]byte, nextSize)
	for cur := id; s.allocated(cur); {
		if len(chain) >= int(s.next) {
			return fmt.Errorf("%w: block %d: cyclic chain", ErrCorrupt, id)
		}
		chain = append(chain, cur)
		if _, err := s.file.ReadAt(ptr, s.offset(cur)); err != nil {
			return fmt.Errorf("blockstore: read block %d: %w", cur, err)
		}
		cur = BlockID(binary.LittleEndian.Uint32(ptr))
	}
	s.release(chain)
	return nil
}

// SaveFreeList persists the free bitmap and, when configured, syncs the
// values file.
func (s *FileStore) SaveFreeList(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.sync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("blockstore: sync values file: %w", err)
		}
	}
	return s.saveFreeList()
}

// Close closes the values file. Unsaved free-list changes are lost.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// FreeBlocks returns the number of free block ids below the high-water mark.
func (s *FileStore) FreeBlocks() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.free.GetCardinality()
}

// HighWater returns the first block id that was never allocated.
func (s *FileStore) HighWater() BlockID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

func (s *FileStore) allocated(id BlockID) bool {
	return id != NoBlock && id < s.next && !s.free.Contains(uint32(id))
}

func (s *FileStore) readBlock(id BlockID, buf []byte) error {
	if _, err := s.file.ReadAt(buf, s.offset(id)); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("blockstore: read block %d: %w", id, err)
	}
	return nil
}

// allocate takes n ids, lowest free ids first, then fresh ones.
func (s *FileStore) allocate(n int) ([]BlockID, error) {
	fresh := n - int(min(uint64(n), s.free.GetCardinality()))
	if uint64(s.next)+uint64(fresh) > math.MaxUint32 {
		return nil, ErrFull
	}

	ids := make([]BlockID, 0, n)
	for len(ids) < n && !s.free.IsEmpty() {
		id := s.free.Minimum()
		s.free.Remove(id)
		ids = append(ids, BlockID(id))
	}
	for len(ids) < n {
		ids = append(ids, s.next)
		s.next++
	}
	return ids, nil
}

func (s *FileStore) release(ids []BlockID) {
	for _, id := range ids {
		s.free.Add(uint32(id))
	}
}

func (s *FileStore) saveFreeList() error {
	bm, err := s.free.ToBytes()
	if err != nil {
		return fmt.Errorf("blockstore: encode free list: %w", err)
	}
	buf := make([]byte, freeHeaderSize+len(bm))
	binary.LittleEndian.PutUint32(buf[0:], uint32(s.next))
	binary.LittleEndian.PutUint64(buf[4:], xxhash.Sum64(bm))
	copy(buf[freeHeaderSize:], bm)

	if err := s.fsys.WriteFile(s.freePath, buf); err != nil {
		return fmt.Errorf("blockstore: write free list: %w", err)
	}
	return nil
}

func (s *FileStore) loadFreeList() error {
	f, err := s.fsys.OpenFile(s.freePath, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("blockstore: open free list: %w", err)
	}
	defer f.Close() //nolint:errcheck

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("blockstore: stat free list: %w", err)
	}
	if fi.Size() < freeHeaderSize {
		return fmt.Errorf("%w: free list too short", ErrCorrupt)
	}
	buf := make([]byte, fi.Size())
	if _, err := f.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("blockstore: read free list: %w", err)
	}

	next := BlockID(binary.LittleEndian.Uint32(buf[0:]))
	bm := buf[freeHeaderSize:]
	if next == NoBlock || xxhash.Sum64(bm) != binary.LittleEndian.Uint64(buf[4:]) {
		return fmt.Errorf("%w: free list checksum mismatch", ErrCorrupt)
	}
	if err := s.free.UnmarshalBinary(bm); err != nil {
		return fmt.Errorf("%w: decode free list: %w", ErrCorrupt, err)
	}
	s.next = next
	return nil
}
