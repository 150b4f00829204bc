// Package entry holds the per-key slot of a value array.
package entry

import "github.com/hupe1980/ivarray/blockstore"

// State is the storage state of a slot.
type State uint8

const (
	// Unused slots hold no value.
	Unused State = iota
	// OnDisk slots live only in the block store.
	OnDisk
	// Cached slots hold their bytes in memory, optionally backed by a block.
	Cached
	// Long slots hold a value too large for the inline cache. They always
	// live in the block store.
	Long
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case OnDisk:
		return "on-disk"
	case Cached:
		return "cached"
	case Long:
		return "long"
	default:
		return "unknown"
	}
}

// Entry is one key slot.
//
// The zero value is an unused, clean slot. In state Cached the block is the
// block backing the cached bytes, or NoBlock when the bytes exist only in
// memory. Dirty means the persisted index record of the slot is stale.
type Entry struct {
	state State
	dirty bool
	block blockstore.BlockID
	value []byte
}

// State returns the slot state.
func (e *Entry) State() State { return e.state }

// Used reports whether the slot holds a live value.
func (e *Entry) Used() bool { return e.state != Unused }

// InCache reports whether the value bytes are held in memory.
func (e *Entry) InCache() bool { return e.state == Cached }

// IsLong reports whether the value bypasses the inline cache.
func (e *Entry) IsLong() bool { return e.state == Long }

// Dirty reports whether the slot's index record needs to be rewritten.
func (e *Entry) Dirty() bool { return e.dirty }

// SetDirty sets or clears the dirty bit.
func (e *Entry) SetDirty(dirty bool) { e.dirty = dirty }

// Block returns the block id, or NoBlock.
func (e *Entry) Block() blockstore.BlockID { return e.block }

// Bytes returns the cached bytes, or nil when the slot is not cached.
func (e *Entry) Bytes() []byte { return e.value }

// Unbacked reports whether the slot holds cache-only bytes that no block
// persists yet.
func (e *Entry) Unbacked() bool {
	return e.state == Cached && e.block == blockstore.NoBlock
}

// SetOnDisk moves the slot to state OnDisk. Any cached bytes are dropped.
func (e *Entry) SetOnDisk(block blockstore.BlockID) {
	e.state = OnDisk
	e.block = block
	e.value = nil
}

// SetLong moves the slot to state Long. Any cached bytes are dropped.
func (e *Entry) SetLong(block blockstore.BlockID) {
	e.state = Long
	e.block = block
	e.value = nil
}

// SetCached moves the slot to state Cached. The entry takes ownership of b.
func (e *Entry) SetCached(b []byte, block blockstore.BlockID) {
	e.state = Cached
	e.block = block
	e.value = b
}

// ReplaceBytes swaps the cached bytes of a cached slot. The new bytes are
// cache-only, so the slot loses its backing block; the caller is
// responsible for freeing it. It returns the previous bytes.
func (e *Entry) ReplaceBytes(b []byte) []byte {
	old := e.value
	e.value = b
	e.block = blockstore.NoBlock
	return old
}

// SetBlock records the block backing the slot without changing its state.
func (e *Entry) SetBlock(block blockstore.BlockID) { e.block = block }

// Release drops the cached bytes of a cached slot and returns them. The
// slot falls back to OnDisk with its current block; callers releasing
// unbacked bytes must write them back or move the slot elsewhere first.
func (e *Entry) Release() []byte {
	if e.state != Cached {
		return nil
	}
	b := e.value
	e.value = nil
	e.state = OnDisk
	return b
}

// Clear resets the slot to Unused and marks it dirty.
func (e *Entry) Clear() {
	e.state = Unused
	e.block = blockstore.NoBlock
	e.value = nil
	e.dirty = true
}

// Load initializes the slot from a persisted index record.
func (e *Entry) Load(block blockstore.BlockID) {
	*e = Entry{}
	if block != blockstore.NoBlock {
		e.state = OnDisk
		e.block = block
	}
}

// Clone returns a deep copy of the slot, including its cached bytes.
func (e *Entry) Clone() Entry {
	c := *e
	if e.value != nil {
		c.value = make([]byte, len(e.value))
		copy(c.value, e.value)
	}
	return c
}
