package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/barectf-tools/ctfdecode/bitio"
	"github.com/barectf-tools/ctfdecode/endian"
	"github.com/barectf-tools/ctfdecode/plan"
	"github.com/barectf-tools/ctfdecode/value"
)

type incrementalStage uint8

const (
	stageHeader incrementalStage = iota
	stageContext
	stageBody
)

// Incremental is a frame-oriented, byte-fed packet decoder. A caller
// appends newly-arrived bytes with Push and calls Next to pull out
// whatever whole packets that makes available. It shares parseHeader,
// PacketContextPlan.ReadContext, and parseEvents with Parser; the
// incremental state machine's three stages are exactly those stage
// boundaries, and the bit cursor suspended between Next calls is what
// keeps alignment accounting continuous across buffered chunk
// boundaries.
type Incremental struct {
	p     *plan.Plan
	opts  options
	order binary.ByteOrder

	buf    []byte
	cursor bitio.Cursor
	stage  incrementalStage

	header value.Header
	stream *plan.StreamPlan
	ctx    value.Context
}

// NewIncremental builds an Incremental decoder from a compiled Plan.
func NewIncremental(p *plan.Plan, opts ...Option) *Incremental {
	return &Incremental{
		p:     p,
		opts:  newOptions(opts),
		order: endian.EngineFor(p.ByteOrder),
	}
}

// Push appends newly-received bytes to the decoder's internal buffer.
// It never blocks and never parses; call Next afterward to attempt
// progress.
func (d *Incremental) Push(data []byte) {
	d.buf = append(d.buf, data...)
}

// Next attempts to decode as much of the buffered data as possible and
// returns the next complete packet, if one is available. A false
// second return with a nil error means there isn't enough buffered
// data yet for the current stage; call Push then Next again. A short
// read in the context stage is reported that way too. Every returned
// error is fatal (an undefined stream/event id, a malformed size, or a
// short read in the header stage or inside a fully buffered packet
// body); the decoder is not safe to keep using afterward.
func (d *Incremental) Next() (*value.PacketRecord, bool, error) {
	for {
		switch d.stage {
		case stageHeader:
			ok, err := d.tryHeader()
			if err != nil || !ok {
				return nil, false, err
			}
		case stageContext:
			ok, err := d.tryContext()
			if err != nil || !ok {
				return nil, false, err
			}
		case stageBody:
			rec, ok, err := d.tryBody()
			if err != nil || !ok {
				return nil, false, err
			}

			return rec, true, nil
		}
	}
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (d *Incremental) reader() (*bytes.Reader, *bitio.StreamReader) {
	src := bytes.NewReader(d.buf[d.cursor.Bytes():])

	return src, bitio.NewStreamReaderAt(src, d.order, d.cursor)
}

// tryHeader parses a packet header once the planner's header wire-size
// hint says enough bytes are buffered. The hint is exact for the header
// stage (no variable-size fields can appear there), so a short read past
// the check would mean the hint itself is wrong and is reported as fatal.
func (d *Incremental) tryHeader() (bool, error) {
	if uint64(len(d.buf)) < d.p.Header.WireSizeHint.Bytes() {
		return false, nil
	}

	_, sr := d.reader()

	header, stream, err := parseHeader(d.p, sr, d.opts.log)
	if err != nil {
		return false, err
	}

	d.header, d.stream = header, stream
	d.cursor = sr.Cursor()
	d.stage = stageContext

	return true, nil
}

// tryContext parses a packet context. The context wire-size hint is a
// lower bound (extra members may contain strings or dynamic arrays
// whose wire size isn't static), so a short read after the hint check
// still means "need more data" rather than a malformed stream.
func (d *Incremental) tryContext() (bool, error) {
	if uint64(len(d.buf)) < d.stream.PacketContext.WireSizeHint.Bytes() {
		return false, nil
	}

	_, sr := d.reader()

	ctx, err := d.stream.PacketContext.ReadContext(sr)
	if err != nil {
		if isShortRead(err) {
			return false, nil
		}

		return false, err
	}

	d.ctx = ctx
	d.cursor = sr.Cursor()
	d.stage = stageBody

	return true, nil
}

// tryBody waits for the packet's full declared size to be buffered,
// then parses every event record and drops the trailing padding in one
// step. With the whole packet present, a short read inside the event
// loop can only mean the stream is malformed, so it propagates as
// fatal instead of being treated as "need more data".
func (d *Incremental) tryBody() (*value.PacketRecord, bool, error) {
	if d.ctx.PacketSizeBits < d.ctx.ContentSizeBits {
		return nil, false, fmt.Errorf("decode: packet size %d bits is smaller than content size %d bits",
			d.ctx.PacketSizeBits, d.ctx.ContentSizeBits)
	}
	paddingBits := d.ctx.PacketSizeBits - d.ctx.ContentSizeBits
	if paddingBits%8 != 0 {
		return nil, false, fmt.Errorf("decode: packet padding %d bits is not byte-aligned", paddingBits)
	}

	packetBytes := d.ctx.PacketSizeBits / 8
	if uint64(len(d.buf)) < packetBytes {
		return nil, false, nil
	}

	_, sr := d.reader()

	events, err := parseEvents(d.stream, d.ctx, sr)
	if err != nil {
		if isShortRead(err) {
			err = io.ErrUnexpectedEOF
		}

		return nil, false, err
	}

	rec := &value.PacketRecord{Header: d.header, Context: d.ctx, Events: events}

	d.buf = append([]byte(nil), d.buf[packetBytes:]...)
	d.cursor = bitio.Cursor{}
	d.stage = stageHeader
	d.header = value.Header{}
	d.stream = nil
	d.ctx = value.Context{}

	return rec, true, nil
}
