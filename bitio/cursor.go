// Package bitio provides the alignment-tracking bit cursor and stream
// reader the layout planner and decoders share. The cursor never seeks:
// a CTF byte source is forward-only, so alignment padding is consumed by
// reading and discarding bytes, while the cursor independently tracks
// logical bit position so the planner's precomputed wire-size hints
// remain a trustworthy oracle.
package bitio

import "fmt"

// Size is a field width or alignment restricted to the wire format's
// supported set. barectf never emits bit-packed fields, so every Size
// is a byte multiple.
type Size int

const (
	Bits8  Size = 8
	Bits16 Size = 16
	Bits32 Size = 32
	Bits64 Size = 64
)

// SizeFromBits validates n against the supported set and returns the
// matching Size. ok is false for any other width, including non-byte
// multiples.
func SizeFromBits(n int) (s Size, ok bool) {
	switch n {
	case 8, 16, 32, 64:
		return Size(n), true
	default:
		return 0, false
	}
}

func (s Size) Bytes() int { return int(s) / 8 }

// FieldDesc is a field's (size, alignment) pair, the unit the cursor and
// every primitive parser operate on.
type FieldDesc struct {
	Size      Size
	Alignment Size
}

// Cursor is a monotonically advancing bit index. It never reads or
// writes bytes itself; StreamReader pairs one with a byte source.
type Cursor struct {
	bitIndex uint64
}

// Bits returns the cursor's current bit position.
func (c Cursor) Bits() uint64 { return c.bitIndex }

// Bytes returns Bits()/8; valid because every stage boundary this
// decoder stops at is byte-aligned (alignments are always byte
// multiples).
func (c Cursor) Bytes() uint64 { return c.bitIndex >> 3 }

// AlignTo advances the cursor to the next multiple of align bits and
// returns the padding in bits, which is always a multiple of 8. align
// must itself be a multiple of 8; the planner and config.Validate
// enforce that upstream, so this panics rather than returning an error
// on a caller bug.
func (c *Cursor) AlignTo(align Size) uint64 {
	a := uint64(align)
	if a%8 != 0 {
		panic(fmt.Sprintf("bitio: alignment %d is not a byte multiple", a))
	}

	next := (c.bitIndex + a - 1) &^ (a - 1)
	padding := next - c.bitIndex
	c.bitIndex = next

	return padding
}

// Increment advances the cursor by size bits without touching a byte
// source; used by AlignedIncrement to build wire-size hints offline.
func (c *Cursor) Increment(size Size) {
	c.bitIndex += uint64(size)
}

// AlignedIncrement aligns to desc.Alignment then increments by
// desc.Size, mirroring what a StreamReader read of that field does to
// the cursor without touching any bytes. The layout planner uses this
// to precompute the wire-size hints the incremental decoder checks
// against its buffered byte count.
func (c *Cursor) AlignedIncrement(desc FieldDesc) {
	c.AlignTo(desc.Alignment)
	c.Increment(desc.Size)
}
