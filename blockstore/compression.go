package blockstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec of a Compressed store.
type Compression uint8

const (
	// CompressionNone stores blobs as they are (behind a one-byte tag).
	CompressionNone Compression = 0
	// CompressionLZ4 is fast block compression, good for hot data.
	CompressionLZ4 Compression = 1
	// CompressionZSTD trades speed for ratio, good for cold data.
	CompressionZSTD Compression = 2
	// CompressionSnappy is fast compression with a self-describing length.
	CompressionSnappy Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	case CompressionSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a codec name to its Compression.
func ParseCompression(name string) (Compression, error) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD, CompressionSnappy} {
		if c.String() == name {
			return c, nil
		}
	}
	return CompressionNone, fmt.Errorf("blockstore: unknown compression %q", name)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compressed wraps a Store and compresses blobs on the way in.
//
// Every stored blob starts with a tag byte naming the codec it was written
// with, so blobs stay readable after the configured codec changes. A blob
// that does not shrink below 90% of its size is stored raw.
type Compressed struct {
	inner Store
	codec Compression
}

// NewCompressed wraps inner. The wrapper owns inner and closes it.
func NewCompressed(inner Store, codec Compression) *Compressed {
	return &Compressed{inner: inner, codec: codec}
}

// Read reads and decodes the blob stored under id.
func (c *Compressed) Read(ctx context.Context, id BlockID) ([]byte, error) {
	raw, err := c.inner.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %w", ErrCorrupt, id, err)
	}
	return data, nil
}

// Write encodes p and stores it.
func (c *Compressed) Write(ctx context.Context, p []byte) (BlockID, error) {
	enc, err := encode(p, c.codec)
	if err != nil {
		return NoBlock, err
	}
	return c.inner.Write(ctx, enc)
}

// Free releases id in the wrapped store.
func (c *Compressed) Free(ctx context.Context, id BlockID) error {
	return c.inner.Free(ctx, id)
}

// SaveFreeList persists the wrapped store's free list.
func (c *Compressed) SaveFreeList(ctx context.Context) error {
	return c.inner.SaveFreeList(ctx)
}

// Close closes the wrapped store.
func (c *Compressed) Close() error {
	return c.inner.Close()
}

func encode(p []byte, codec Compression) ([]byte, error) {
	var body []byte
	switch codec {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(p)))
		n := binary.PutUvarint(buf, uint64(len(p)))
		m, err := lz4.CompressBlock(p, buf[n:], nil)
		if err != nil {
			return nil, fmt.Errorf("blockstore: lz4: %w", err)
		}
		if m > 0 {
			body = buf[:n+m]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		body = enc.EncodeAll(p, nil)
		zstdEncoderPool.Put(enc)
	case CompressionSnappy:
		body = snappy.Encode(nil, p)
	default:
		return nil, fmt.Errorf("blockstore: unknown compression %d", codec)
	}

	if body == nil || float64(len(body)) > float64(len(p))*0.9 {
		out := make([]byte, 1+len(p))
		out[0] = byte(CompressionNone)
		copy(out[1:], p)
		return out, nil
	}

	out := make([]byte, 1+len(body))
	out[0] = byte(codec)
	copy(out[1:], body)
	return out, nil
}

func decode(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing compression tag")
	}
	body := raw[1:]

	switch Compression(raw[0]) {
	case CompressionNone:
		return body, nil
	case CompressionLZ4:
		size, n := binary.Uvarint(body)
		if n <= 0 || size > uint64(len(body))*255+64 {
			return nil, fmt.Errorf("lz4: bad length header")
		}
		out := make([]byte, size)
		m, err := lz4.UncompressBlock(body[n:], out)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if uint64(m) != size {
			return nil, fmt.Errorf("lz4: decompressed size mismatch")
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	case CompressionSnappy:
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("snappy: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", raw[0])
	}
}
