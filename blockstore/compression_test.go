package blockstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressed_RoundTrip(t *testing.T) {
	ctx := context.Background()

	random := make([]byte, 4096)
	_, _ = rand.Read(random)

	payloads := map[string][]byte{
		"empty":        {},
		"short":        []byte("abc"),
		"repetitive":   bytes.Repeat([]byte("ivarray "), 1024),
		"incompressed": random,
	}

	for _, codec := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD, CompressionSnappy} {
		t.Run(codec.String(), func(t *testing.T) {
			inner := NewMemory()
			s := NewCompressed(inner, codec)

			for name, p := range payloads {
				id, err := s.Write(ctx, p)
				require.NoError(t, err, name)

				got, err := s.Read(ctx, id)
				require.NoError(t, err, name)
				assert.Equal(t, p, got, name)
			}
		})
	}
}

func TestCompressed_ShrinksRepetitiveData(t *testing.T) {
	ctx := context.Background()
	p := bytes.Repeat([]byte("ivarray "), 1024)

	for _, codec := range []Compression{CompressionLZ4, CompressionZSTD, CompressionSnappy} {
		inner := NewMemory()
		s := NewCompressed(inner, codec)

		id, err := s.Write(ctx, p)
		require.NoError(t, err)

		raw, err := inner.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, byte(codec), raw[0], codec.String())
		assert.Less(t, len(raw), len(p)/2, codec.String())
	}
}

func TestCompressed_StoresIncompressibleRaw(t *testing.T) {
	ctx := context.Background()
	p := make([]byte, 1024)
	_, _ = rand.Read(p)

	inner := NewMemory()
	s := NewCompressed(inner, CompressionZSTD)

	id, err := s.Write(ctx, p)
	require.NoError(t, err)

	raw, err := inner.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, byte(CompressionNone), raw[0])
	assert.Equal(t, p, raw[1:])
}

func TestCompressed_CodecChangeKeepsOldBlobsReadable(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	p := bytes.Repeat([]byte("abc"), 500)

	id, err := NewCompressed(inner, CompressionLZ4).Write(ctx, p)
	require.NoError(t, err)

	got, err := NewCompressed(inner, CompressionSnappy).Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestCompressed_CorruptTag(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	id, err := inner.Write(ctx, []byte{0x7f, 1, 2, 3})
	require.NoError(t, err)

	_, err = NewCompressed(inner, CompressionLZ4).Read(ctx, id)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCompressed_Delegates(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	s := NewCompressed(inner, CompressionSnappy)

	id, err := s.Write(ctx, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.Free(ctx, id))
	assert.False(t, inner.Live(id))

	require.NoError(t, s.SaveFreeList(ctx))
	assert.Equal(t, 1, inner.Saves())

	require.NoError(t, s.Close())
	_, err = inner.Write(ctx, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD, CompressionSnappy} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCompression("brotli")
	assert.Error(t, err)
	assert.Equal(t, "compression(9)", Compression(9).String())
}
