package blockstore

import (
	"context"
	"errors"
)

// BlockID identifies a persisted blob inside a Store.
//
// Its width is also the width of every record in a value array's index
// file, so it must stay a 32-bit type.
type BlockID uint32

// NoBlock is the reserved "no block" sentinel. No Store ever hands it out.
const NoBlock BlockID = 0

// BlockIDSize is the on-disk width of a BlockID in bytes.
const BlockIDSize = 4

var (
	// ErrNotFound is returned when reading a block that was never written or
	// has been freed.
	ErrNotFound = errors.New("blockstore: block not found")

	// ErrCorrupt is returned when a stored block fails validation.
	ErrCorrupt = errors.New("blockstore: corrupt block")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("blockstore: store closed")

	// ErrNoBlock is returned when a read is attempted with NoBlock.
	ErrNoBlock = errors.New("blockstore: read of reserved block id 0")
)

// Store turns byte blobs into block ids and back, and keeps track of which
// blocks are free.
//
// Implementations in this package are safe for concurrent use.
type Store interface {
	// Read returns the blob stored under id.
	Read(ctx context.Context, id BlockID) ([]byte, error)
	// Write persists p and returns its id. On failure it returns NoBlock and
	// a non-nil error.
	Write(ctx context.Context, p []byte) (BlockID, error)
	// Free releases the blob stored under id. Free(NoBlock) is a no-op.
	Free(ctx context.Context, id BlockID) error
	// SaveFreeList persists the store's free-space bookkeeping.
	SaveFreeList(ctx context.Context) error
	// Close releases the store's resources.
	Close() error
}

// LongValueThreshold is the default size above which a value is "long":
// it is always written straight to a Store and never kept in an inline
// cache.
const LongValueThreshold = 1 << 20

// IsLongValue reports whether a value of n bytes exceeds the default
// long-value threshold.
func IsLongValue(n int) bool {
	return n > LongValueThreshold
}

// ThresholdPolicy returns a long-value policy with a custom threshold.
func ThresholdPolicy(threshold int) func(int) bool {
	return func(n int) bool { return n > threshold }
}
