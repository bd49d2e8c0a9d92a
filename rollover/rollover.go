// Package rollover provides an auxiliary helper for tracking timestamp
// rollovers on narrow (non-64-bit) timestamp fields. It is not part of
// the decode path; a caller who wants monotonic 64-bit timestamps from
// a narrower on-the-wire counter can feed each decoded Event.Timestamp
// through one of these per stream.
package rollover

import (
	"fmt"

	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/errs"
)

// lowerWidth is the closed set of widths a TrackingInstant's lower word
// can have. width64 is a pass-through: 64-bit timestamps are not
// tracked for rollover.
type lowerWidth uint8

const (
	width8 lowerWidth = iota
	width16
	width32
	width64
)

// TrackingInstant reconstructs a monotonically increasing cycle count
// from a narrower timestamp field by watching for the counter going
// backwards (a rollover) and incrementing an upper word each time that
// happens. At 64-bit width no rollover tracking occurs; the field is
// assumed wide enough that rollover is not a practical concern.
type TrackingInstant struct {
	width lowerWidth
	lower uint64
	upper uint32
}

// NewTrackingInstant builds a tracker sized to fieldType's width, which
// must be one of {8,16,32,64} bits (the decoder's broader supported
// set); anything else is errs.ErrUnsupportedTimestampFieldType.
func NewTrackingInstant(fieldType *config.UnsignedIntegerFieldType) (*TrackingInstant, error) {
	var w lowerWidth
	switch fieldType.Size {
	case 8:
		w = width8
	case 16:
		w = width16
	case 32:
		w = width32
	case 64:
		w = width64
	default:
		return nil, fmt.Errorf("rollover: timestamp field size %d: %w", fieldType.Size, errs.ErrUnsupportedTimestampFieldType)
	}

	return &TrackingInstant{width: w}, nil
}

func (t *TrackingInstant) widthBits() uint {
	switch t.width {
	case width8:
		return 8
	case width16:
		return 16
	case width32:
		return 32
	default:
		return 64
	}
}

func (t *TrackingInstant) mask() uint64 {
	if t.width == width64 {
		return ^uint64(0)
	}

	return (uint64(1) << t.widthBits()) - 1
}

// Reset zeroes both the lower and upper words.
func (t *TrackingInstant) Reset() {
	t.lower = 0
	t.upper = 0
}

// ResetTo seeds the tracker at a known (cycles, upper) pair, e.g. when
// resuming tracking mid-stream from a packet context's own counters.
func (t *TrackingInstant) ResetTo(cycles uint64, upper uint32) {
	t.lower = cycles & t.mask()
	t.upper = upper
}

// Elapsed feeds the next raw on-the-wire cycle count through the
// tracker and returns the reconstructed 64-bit timestamp. At widths
// below 64 bits, a cycles value smaller than the previously observed
// one is treated as a rollover and increments the upper word by
// exactly 1.
func (t *TrackingInstant) Elapsed(cycles uint64) uint64 {
	cycles &= t.mask()

	if t.width == width64 {
		t.lower = cycles

		return t.AsTimestamp()
	}

	if cycles < t.lower {
		t.upper++
	}
	t.lower = cycles

	return t.AsTimestamp()
}

// AsTimestamp returns the tracker's current reconstructed value without
// advancing it.
func (t *TrackingInstant) AsTimestamp() uint64 {
	if t.width == width64 {
		return t.lower
	}

	return (uint64(t.upper) << t.widthBits()) | t.lower
}
