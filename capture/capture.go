// Package capture opens trace capture containers. A capture tool
// pulling a barectf stream off a target's flash or a debug probe often
// compresses the dump before shipping it; Open sniffs the container's
// leading magic and hands back a reader over the raw concatenated CTF
// packets, so a caller can point decode.Parser.Parse (or feed
// decode.Incremental) straight at a capture file without a separate
// decompression step. The CTF wire format itself is never compressed;
// only the container around it is.
package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/barectf-tools/ctfdecode/compress"
	"github.com/barectf-tools/ctfdecode/errs"
	"github.com/barectf-tools/ctfdecode/format"
)

// containerVersion is the current version of the tagged container
// layout: magic, version byte, compression type byte, payload.
const containerVersion = 0x1

var (
	// containerMagic opens a tagged capture container whose payload is
	// a whole-file block compressed with one of the compress codecs.
	containerMagic = [4]byte{'C', 'T', 'F', 'C'}
	// zstdFrameMagic is the zstd frame magic number, little-endian.
	zstdFrameMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}
	// lz4FrameMagic is the LZ4 frame magic number, little-endian.
	lz4FrameMagic = [4]byte{0x04, 0x22, 0x4D, 0x18}
	// s2StreamMagic is the first four bytes of the snappy/S2 stream
	// identifier chunk every S2 stream begins with.
	s2StreamMagic = [4]byte{0xFF, 0x06, 0x00, 0x00}
)

// Open sniffs r's first bytes and returns a reader over the raw trace
// payload: a transparently-decompressing reader for a recognized
// compressed container, or r itself (buffered, nothing consumed) when
// no container magic matches: a bare concatenation of CTF packets is
// its own payload. Inputs shorter than a magic pass through unchanged.
func Open(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	prefix, err := br.Peek(4)
	if err != nil {
		// Too short to carry any container magic; let the packet
		// decoder report end-of-stream on its own terms.
		return br, nil //nolint:nilerr
	}

	switch {
	case bytes.Equal(prefix, containerMagic[:]):
		return openTagged(br)
	case bytes.Equal(prefix, zstdFrameMagic[:]):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("capture: zstd frame: %w", err)
		}

		return zr.IOReadCloser(), nil
	case bytes.Equal(prefix, lz4FrameMagic[:]):
		return lz4.NewReader(br), nil
	case bytes.Equal(prefix, s2StreamMagic[:]):
		return s2.NewReader(br), nil
	default:
		return br, nil
	}
}

// openTagged reads a tagged container: the payload is block-compressed
// as a whole, so it is slurped and decompressed up front rather than
// streamed.
func openTagged(br *bufio.Reader) (io.Reader, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("capture: container header: %w", err)
	}

	if header[4] != containerVersion {
		return nil, fmt.Errorf("capture: unsupported container version %d", header[4])
	}

	ct := format.CompressionType(header[5])
	codec, err := compress.GetCodec(ct)
	if err != nil {
		return nil, fmt.Errorf("capture: compression tag 0x%x: %w", header[5], errs.ErrUnknownCaptureCodec)
	}

	payload, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("capture: container payload: %w", err)
	}

	trace, err := codec.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("capture: decompress %s payload: %w", ct, err)
	}

	return bytes.NewReader(trace), nil
}

// Pack wraps a raw trace payload in a tagged capture container,
// compressed with the named codec. It is the producing half a capture
// tool uses; the decoder side only ever calls Open.
func Pack(ct format.CompressionType, trace []byte) ([]byte, error) {
	codec, err := compress.GetCodec(ct)
	if err != nil {
		return nil, fmt.Errorf("capture: compression tag 0x%x: %w", uint8(ct), errs.ErrUnknownCaptureCodec)
	}

	payload, err := codec.Compress(trace)
	if err != nil {
		return nil, fmt.Errorf("capture: compress %s payload: %w", ct, err)
	}

	out := make([]byte, 0, len(containerMagic)+2+len(payload))
	out = append(out, containerMagic[:]...)
	out = append(out, containerVersion, byte(ct))
	out = append(out, payload...)

	return out, nil
}
