// Package compress provides the block codecs a capture container's
// trace payload may be stored with. The CTF packets themselves are
// never compressed on the wire; only the container a capture tool
// wraps around them is, so every codec here works on the whole payload
// at once rather than streaming.
package compress

import (
	"fmt"

	"github.com/barectf-tools/ctfdecode/format"
)

// Compressor compresses a capture container's trace payload before
// it's written out.
type Compressor interface {
	// Compress returns a newly-allocated compressed copy of data; the
	// input slice is never modified. Internal buffers may be reused
	// across calls.
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a capture container's trace payload back
// into the raw bytes the packet decoder reads. Implementations must be
// safe for concurrent use.
type Decompressor interface {
	// Decompress returns the original payload, or an error when the
	// input is corrupted or was compressed with a different codec.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions; a capture tool compresses with the
// same codec the decoder side decompresses with.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves the built-in Codec for a container's compression
// type tag.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
