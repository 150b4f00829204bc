package ivarray

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/ivarray/blockstore"
	"github.com/hupe1980/ivarray/internal/entry"
	"github.com/hupe1980/ivarray/internal/fs"
)

// recordSize is the width of one index file record. Record 0 holds the
// capacity, record i+1 the block id of key i.
const recordSize = blockstore.BlockIDSize

func recordOffset(key uint32) int64 {
	return (int64(key) + 1) * recordSize
}

func (a *ValueArray) createIndex(fsys fs.FileSystem) error {
	if err := fsys.MkdirAll(filepath.Dir(a.path), 0o750); err != nil {
		return initError("create directory", err)
	}
	f, err := fsys.OpenFile(a.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return initError("create index file", err)
	}
	a.index = f
	return nil
}

func (a *ValueArray) openIndex(fsys fs.FileSystem) error {
	f, err := fsys.OpenFile(a.path, os.O_RDWR, 0)
	if err != nil {
		return initError("open index file", err)
	}

	entries, err := readIndex(f)
	if err != nil {
		_ = f.Close()
		return err
	}

	a.index = f
	a.entries = entries
	for i := range a.entries {
		if a.entries[i].Used() {
			a.keyCount++
		}
	}
	return nil
}

// readIndex parses the capacity record and one block id per slot.
func readIndex(f fs.File) ([]entry.Entry, error) {
	head := make([]byte, recordSize)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, initError("read capacity", err)
	}
	capacity := binary.LittleEndian.Uint32(head)
	if capacity == 0 {
		return nil, initError("capacity is zero", nil)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, initError("stat index file", err)
	}
	if fi.Size() < recordOffset(capacity) {
		return nil, initError(fmt.Sprintf("index file too short for capacity %d", capacity), io.ErrUnexpectedEOF)
	}

	buf := make([]byte, int64(capacity)*recordSize)
	n, err := f.ReadAt(buf, recordSize)
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, initError(fmt.Sprintf("read %d block ids", capacity), err)
	}

	entries := make([]entry.Entry, capacity)
	for i := range entries {
		entries[i].Load(blockstore.BlockID(binary.LittleEndian.Uint32(buf[i*recordSize:])))
	}
	return entries, nil
}

// Save writes every dirty slot to the index file, writing cache-only
// values to the block store first, then syncs the index file and persists
// the block store's free list. The cache is left untouched.
//
// The first error aborts the pass. Slots flushed before it stay clean.
func (a *ValueArray) Save(ctx context.Context) error {
	start := time.Now()
	flushed, err := a.save(ctx)
	duration := time.Since(start)
	a.metrics.RecordSave(flushed, duration, err)
	a.logger.LogSave(ctx, flushed, duration, err)
	return err
}

func (a *ValueArray) save(ctx context.Context) (int, error) {
	if a.closed {
		return 0, ErrClosed
	}

	if a.capacityDirty {
		if err := a.index.Truncate(recordOffset(a.Capacity())); err != nil {
			return 0, fmt.Errorf("ivarray: resize index file: %w", err)
		}
		if err := a.writeRecord(0, a.Capacity()); err != nil {
			return 0, fmt.Errorf("ivarray: write capacity: %w", err)
		}
		a.capacityDirty = false
	}

	flushed := 0
	for i := range a.entries {
		e := &a.entries[i]
		if !e.Dirty() {
			continue
		}
		key := uint32(i)

		if e.Unbacked() {
			block, err := a.store.Write(ctx, e.Bytes())
			if err != nil {
				return flushed, storeError("save", key, ErrBlockWrite, err)
			}
			e.SetBlock(block)
		}

		if err := a.writeRecord(recordOffset(key), uint32(e.Block())); err != nil {
			return flushed, keyError("save", key, fmt.Errorf("write index record: %w", err))
		}
		e.SetDirty(false)
		flushed++
	}

	if err := a.index.Sync(); err != nil {
		return flushed, fmt.Errorf("ivarray: sync index file: %w", err)
	}
	if err := a.store.SaveFreeList(ctx); err != nil {
		return flushed, fmt.Errorf("ivarray: save free list: %w", err)
	}
	return flushed, nil
}

func (a *ValueArray) writeRecord(off int64, v uint32) error {
	var buf [recordSize]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := a.index.WriteAt(buf[:], off)
	return err
}
