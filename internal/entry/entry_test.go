package entry

import (
	"testing"

	"github.com/hupe1980/ivarray/blockstore"
	"github.com/stretchr/testify/assert"
)

func TestEntry_ZeroValue(t *testing.T) {
	var e Entry
	assert.Equal(t, Unused, e.State())
	assert.False(t, e.Used())
	assert.False(t, e.Dirty())
	assert.False(t, e.InCache())
	assert.Equal(t, blockstore.NoBlock, e.Block())
	assert.Nil(t, e.Bytes())
}

func TestEntry_Transitions(t *testing.T) {
	var e Entry

	e.SetCached([]byte("abc"), blockstore.NoBlock)
	assert.True(t, e.Used())
	assert.True(t, e.InCache())
	assert.True(t, e.Unbacked())
	assert.Equal(t, []byte("abc"), e.Bytes())

	e.SetBlock(7)
	assert.False(t, e.Unbacked())

	b := e.Release()
	assert.Equal(t, []byte("abc"), b)
	assert.Equal(t, OnDisk, e.State())
	assert.Equal(t, blockstore.BlockID(7), e.Block())
	assert.Nil(t, e.Bytes())

	// Release on a non-cached slot is a no-op.
	assert.Nil(t, e.Release())
	assert.Equal(t, OnDisk, e.State())

	e.SetLong(9)
	assert.True(t, e.IsLong())
	assert.False(t, e.InCache())
	assert.Equal(t, blockstore.BlockID(9), e.Block())

	e.Clear()
	assert.Equal(t, Unused, e.State())
	assert.True(t, e.Dirty())
	assert.Equal(t, blockstore.NoBlock, e.Block())
}

func TestEntry_ReplaceBytesDropsBacking(t *testing.T) {
	var e Entry
	e.SetCached([]byte("old"), 3)
	old := e.ReplaceBytes([]byte("newer"))
	assert.Equal(t, []byte("old"), old)
	assert.Equal(t, []byte("newer"), e.Bytes())
	assert.True(t, e.Unbacked())
}

func TestEntry_Load(t *testing.T) {
	var e Entry
	e.SetCached([]byte("x"), 0)
	e.SetDirty(true)

	e.Load(0)
	assert.Equal(t, Unused, e.State())
	assert.False(t, e.Dirty())

	e.Load(42)
	assert.Equal(t, OnDisk, e.State())
	assert.Equal(t, blockstore.BlockID(42), e.Block())
	assert.False(t, e.Dirty())
}

func TestEntry_CloneIsDeep(t *testing.T) {
	var e Entry
	e.SetCached([]byte("value"), 5)
	e.SetDirty(true)

	c := e.Clone()
	assert.Equal(t, e.State(), c.State())
	assert.Equal(t, e.Block(), c.Block())
	assert.True(t, c.Dirty())
	assert.Equal(t, []byte("value"), c.Bytes())

	c.Bytes()[0] = 'V'
	assert.Equal(t, []byte("value"), e.Bytes())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unused", Unused.String())
	assert.Equal(t, "on-disk", OnDisk.String())
	assert.Equal(t, "cached", Cached.String())
	assert.Equal(t, "long", Long.String())
	assert.Equal(t, "unknown", State(99).String())
}
