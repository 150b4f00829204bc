package blockstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.Write(ctx, []byte("a"))
	require.NoError(t, err)
	b, err := m.Write(ctx, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, BlockID(1), a)
	assert.Equal(t, BlockID(2), b)
	assert.Equal(t, 2, m.Len())

	got, err := m.Read(ctx, a)
	require.NoError(t, err)
	got[0] = 'x'
	again, err := m.Read(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), again, "reads must return copies")

	require.NoError(t, m.Free(ctx, a))
	require.NoError(t, m.Free(ctx, a))
	require.NoError(t, m.Free(ctx, NoBlock))
	assert.False(t, m.Live(a))

	_, err = m.Read(ctx, a)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Read(ctx, NoBlock)
	assert.ErrorIs(t, err, ErrNoBlock)

	c, err := m.Write(ctx, []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, a, c)

	require.NoError(t, m.SaveFreeList(ctx))
	assert.Equal(t, 1, m.Saves())

	require.NoError(t, m.Close())
	_, err = m.Write(ctx, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestThresholdPolicy(t *testing.T) {
	assert.False(t, IsLongValue(LongValueThreshold))
	assert.True(t, IsLongValue(LongValueThreshold+1))

	p := ThresholdPolicy(10)
	assert.False(t, p(10))
	assert.True(t, p(11))
}
