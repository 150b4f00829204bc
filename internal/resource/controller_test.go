package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
	assert.Equal(t, int64(0), c.MemoryLimit())
}

func TestController_Readers(t *testing.T) {
	c := NewController(Config{MaxReaders: 2})

	require.NoError(t, c.AcquireReader(context.Background()))
	require.NoError(t, c.AcquireReader(context.Background()))
	assert.False(t, c.TryAcquireReader())

	c.ReleaseReader()
	assert.True(t, c.TryAcquireReader())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireReader(ctx))
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	ctx := context.Background()

	// Within the burst, no waiting.
	require.NoError(t, c.AcquireIO(ctx, 1024))

	// Larger than the burst is split, not rejected.
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, c.AcquireIO(cctx, (1<<20)+10))
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(10))
	assert.True(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, int64(0), c.MemoryLimit())
	assert.NoError(t, c.AcquireReader(context.Background()))
	assert.True(t, c.TryAcquireReader())
	c.ReleaseReader()
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<30))
}
