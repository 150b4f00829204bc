package blockstore

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Memory is an in-memory Store for tests. Freed ids are reused, lowest
// first, like the file store does.
type Memory struct {
	mu     sync.RWMutex
	blocks map[BlockID][]byte
	free   *roaring.Bitmap
	next   BlockID
	saves  int
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		blocks: make(map[BlockID][]byte),
		free:   roaring.New(),
		next:   1,
	}
}

// Read returns a copy of the blob stored under id.
func (m *Memory) Read(_ context.Context, id BlockID) ([]byte, error) {
	if id == NoBlock {
		return nil, ErrNoBlock
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	data, ok := m.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Write stores a copy of p.
func (m *Memory) Write(_ context.Context, p []byte) (BlockID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NoBlock, ErrClosed
	}

	var id BlockID
	if !m.free.IsEmpty() {
		id = BlockID(m.free.Minimum())
		m.free.Remove(uint32(id))
	} else {
		id = m.next
		m.next++
	}

	copied := make([]byte, len(p))
	copy(copied, p)
	m.blocks[id] = copied
	return id, nil
}

// Free releases id. Freeing NoBlock or an unknown id is a no-op.
func (m *Memory) Free(_ context.Context, id BlockID) error {
	if id == NoBlock {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.blocks[id]; !ok {
		return nil
	}
	delete(m.blocks, id)
	m.free.Add(uint32(id))
	return nil
}

// SaveFreeList only counts calls; the memory store has nothing to persist.
func (m *Memory) SaveFreeList(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.saves++
	return nil
}

// Close marks the store closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of live blocks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Saves returns how often SaveFreeList was called.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Live reports whether id holds a blob.
func (m *Memory) Live(id BlockID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[id]
	return ok
}
