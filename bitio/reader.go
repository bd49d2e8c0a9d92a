package bitio

import (
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"

	"github.com/barectf-tools/ctfdecode/internal/pool"
)

// StreamReader wraps a forward-only byte source with a Cursor and a
// fixed trace-wide byte order. Every primitive read first aligns (which
// may consume and discard source bytes) then reads exactly Size bits in
// that byte order, advancing the cursor by the same amount the Cursor
// alone would if driven through AlignedIncrement; this is what keeps
// the planner's offline wire-size hints trustworthy against the live
// reader.
type StreamReader struct {
	r      io.Reader
	order  binary.ByteOrder
	cursor Cursor

	scratch [8]byte
}

// NewStreamReader creates a reader starting at cursor bit 0.
func NewStreamReader(r io.Reader, order binary.ByteOrder) *StreamReader {
	return NewStreamReaderAt(r, order, Cursor{})
}

// NewStreamReaderAt resumes a reader at a previously-suspended cursor,
// over a new byte view. The incremental decoder uses this to keep
// alignment accounting continuous across buffered boundaries: the
// cursor carried from the prior stage is instantiated over the next
// chunk of bytes, not reset to zero.
func NewStreamReaderAt(r io.Reader, order binary.ByteOrder, cursor Cursor) *StreamReader {
	return &StreamReader{r: r, order: order, cursor: cursor}
}

// Cursor returns the reader's current bit cursor.
func (r *StreamReader) Cursor() Cursor { return r.cursor }

// CursorBits returns the reader's current bit position.
func (r *StreamReader) CursorBits() uint64 { return r.cursor.Bits() }

func (r *StreamReader) readFull(n int) ([]byte, error) {
	buf := r.scratch[:n]
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// AlignTo advances the cursor to the next multiple of align bits and
// consumes and discards the matching padding bytes from the source, one
// at a time (none when the cursor is already aligned). align must be a
// byte multiple.
func (r *StreamReader) AlignTo(align Size) error {
	padding := r.cursor.AlignTo(align)
	for i := uint64(0); i < padding/8; i++ {
		if _, err := r.readFull(1); err != nil {
			return err
		}
	}

	return nil
}

func (r *StreamReader) U8(align Size) (uint8, error) {
	if err := r.AlignTo(align); err != nil {
		return 0, err
	}
	b, err := r.readFull(1)
	if err != nil {
		return 0, err
	}
	r.cursor.Increment(Bits8)

	return b[0], nil
}

func (r *StreamReader) I8(align Size) (int8, error) {
	v, err := r.U8(align)

	return int8(v), err
}

func (r *StreamReader) U16(align Size) (uint16, error) {
	if err := r.AlignTo(align); err != nil {
		return 0, err
	}
	b, err := r.readFull(2)
	if err != nil {
		return 0, err
	}
	r.cursor.Increment(Bits16)

	return r.order.Uint16(b), nil
}

func (r *StreamReader) I16(align Size) (int16, error) {
	v, err := r.U16(align)

	return int16(v), err
}

func (r *StreamReader) U32(align Size) (uint32, error) {
	if err := r.AlignTo(align); err != nil {
		return 0, err
	}
	b, err := r.readFull(4)
	if err != nil {
		return 0, err
	}
	r.cursor.Increment(Bits32)

	return r.order.Uint32(b), nil
}

func (r *StreamReader) I32(align Size) (int32, error) {
	v, err := r.U32(align)

	return int32(v), err
}

func (r *StreamReader) U64(align Size) (uint64, error) {
	if err := r.AlignTo(align); err != nil {
		return 0, err
	}
	b, err := r.readFull(8)
	if err != nil {
		return 0, err
	}
	r.cursor.Increment(Bits64)

	return r.order.Uint64(b), nil
}

func (r *StreamReader) I64(align Size) (int64, error) {
	v, err := r.U64(align)

	return int64(v), err
}

func (r *StreamReader) F32(align Size) (float32, error) {
	v, err := r.U32(align)
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(v), nil
}

func (r *StreamReader) F64(align Size) (float64, error) {
	v, err := r.U64(align)
	if err != nil {
		return 0, err
	}

	return math.Float64frombits(v), nil
}

// ReadUUIDBytes aligns to 8 bits then reads 16 raw bytes verbatim, with
// no byte-order reinterpretation: a trace UUID is a fixed byte sequence,
// not a multi-byte integer.
func (r *StreamReader) ReadUUIDBytes() ([16]byte, error) {
	var out [16]byte
	if err := r.AlignTo(Bits8); err != nil {
		return out, err
	}
	for i := range out {
		b, err := r.readFull(1)
		if err != nil {
			return out, err
		}
		r.cursor.Increment(Bits8)
		out[i] = b[0]
	}

	return out, nil
}

// ReadString aligns to 8 bits then reads bytes until a NUL terminator,
// returning a UTF-8-lossy decoding; no other string encoding exists in
// this wire format. The accumulation buffer is borrowed from the
// shared scratch pool rather than allocated per call.
func (r *StreamReader) ReadString() (string, error) {
	if err := r.AlignTo(Bits8); err != nil {
		return "", err
	}

	bb := pool.GetStringScratch()
	defer pool.PutStringScratch(bb)

	for {
		b, err := r.readFull(1)
		if err != nil {
			return "", err
		}
		r.cursor.Increment(Bits8)
		if b[0] == 0 {
			break
		}
		bb.AppendByte(b[0])
	}

	return strictUTF8OrReplace(bb.Bytes()), nil
}

// strictUTF8OrReplace returns b decoded as UTF-8, substituting
// utf8.RuneError for any invalid byte sequence.
func strictUTF8OrReplace(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var out []rune
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}

	return string(out)
}
