package plan

import (
	"fmt"

	"github.com/barectf-tools/ctfdecode/bitio"
	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/errs"
	"github.com/barectf-tools/ctfdecode/intern"
	"github.com/barectf-tools/ctfdecode/value"
)

// PacketHeaderPlan is the compiled packet-header layout shared by every
// stream in a trace: an optional magic number, an optional trace UUID,
// and the stream-id selector that dispatches to a StreamPlan.
// WireSizeHint is the bit cursor's value right after a header has been
// fully read, precomputed once so the incremental decoder can ask "do I
// have enough bytes buffered yet?" without re-walking the layout.
type PacketHeaderPlan struct {
	Magic        *PrimitiveParser
	UUIDPresent  bool
	StreamID     PrimitiveParser
	Alignment    bitio.Size
	WireSizeHint bitio.Cursor
}

func buildPacketHeaderPlan(t *config.TraceType) (PacketHeaderPlan, error) {
	align, ok := bitio.SizeFromBits(traceTypeFeaturesAlignment(t.Features))
	if !ok {
		return PacketHeaderPlan{}, fmt.Errorf("trace.type.$features: %w", errs.ErrUnsupportedAlignment)
	}

	var magic *PrimitiveParser
	if t.Features.MagicFieldType != nil {
		if t.Features.MagicFieldType.Size != 32 {
			return PacketHeaderPlan{}, fmt.Errorf(
				"trace.type.$features.magic-field-type: size %d must be 32: %w",
				t.Features.MagicFieldType.Size, errs.ErrUnsupportedFieldType)
		}
		p, err := buildPrimitiveParser(t.Features.MagicFieldType)
		if err != nil {
			return PacketHeaderPlan{}, fmt.Errorf("trace.type.$features.magic-field-type: %w", err)
		}
		magic = &p
	}

	streamID, err := requireUInt(t.Features.DataStreamTypeIDFieldType, "trace.type.$features.data-stream-type-id-field-type")
	if err != nil {
		return PacketHeaderPlan{}, err
	}

	var cursor bitio.Cursor
	cursor.AlignTo(align)
	if magic != nil {
		cursor.AlignedIncrement(magic.Desc)
	}
	if t.Features.UUIDFieldPresent {
		cursor.AlignTo(bitio.Bits8)
		cursor.Increment(bitio.Bits64)
		cursor.Increment(bitio.Bits64)
	}
	cursor.AlignedIncrement(streamID.Desc)

	return PacketHeaderPlan{
		Magic:        magic,
		UUIDPresent:  t.Features.UUIDFieldPresent,
		StreamID:     streamID,
		Alignment:    align,
		WireSizeHint: cursor,
	}, nil
}

// traceTypeFeaturesAlignment computes a TraceTypeFeatures' structure alignment: the max
// alignment among its present feature fields, or 8 when none are
// present (the UUID's own alignment is always 8 since it's 16 raw
// bytes).
func traceTypeFeaturesAlignment(f config.TraceTypeFeatures) int {
	align := 8
	if f.MagicFieldType != nil && f.MagicFieldType.Alignment > align {
		align = f.MagicFieldType.Alignment
	}
	if f.DataStreamTypeIDFieldType != nil && f.DataStreamTypeIDFieldType.Alignment > align {
		align = f.DataStreamTypeIDFieldType.Alignment
	}

	return align
}

// PacketContextPlan is one stream's compiled packet-context layout.
type PacketContextPlan struct {
	TotalSize          PrimitiveParser
	ContentSize        PrimitiveParser
	BeginningTimestamp *PrimitiveParser
	EndTimestamp       *PrimitiveParser
	EventsDiscarded    *PrimitiveParser
	SequenceNumber     *PrimitiveParser
	ExtraMembers       []MemberPlan
	Alignment          bitio.Size
	WireSizeHint       bitio.Cursor
}

// ReadContext reads the packet-context fields in their fixed canonical
// order: total size, content size, then beginning timestamp / end
// timestamp / discarded counter / sequence number (whichever are
// present), then each extra member in plan order.
func (p *PacketContextPlan) ReadContext(r *bitio.StreamReader) (value.Context, error) {
	if err := r.AlignTo(p.Alignment); err != nil {
		return value.Context{}, err
	}

	var ctx value.Context

	total, err := p.TotalSize.Parse(r)
	if err != nil {
		return value.Context{}, err
	}
	ctx.PacketSizeBits = total.UInt

	content, err := p.ContentSize.Parse(r)
	if err != nil {
		return value.Context{}, err
	}
	ctx.ContentSizeBits = content.UInt

	if p.BeginningTimestamp != nil {
		v, err := p.BeginningTimestamp.Parse(r)
		if err != nil {
			return value.Context{}, err
		}
		ctx.BeginningTimestamp, ctx.HasBeginningTimestamp = v.UInt, true
	}
	if p.EndTimestamp != nil {
		v, err := p.EndTimestamp.Parse(r)
		if err != nil {
			return value.Context{}, err
		}
		ctx.EndTimestamp, ctx.HasEndTimestamp = v.UInt, true
	}
	if p.EventsDiscarded != nil {
		v, err := p.EventsDiscarded.Parse(r)
		if err != nil {
			return value.Context{}, err
		}
		ctx.EventsDiscarded, ctx.HasEventsDiscarded = v.UInt, true
	}
	if p.SequenceNumber != nil {
		v, err := p.SequenceNumber.Parse(r)
		if err != nil {
			return value.Context{}, err
		}
		ctx.SequenceNumber, ctx.HasSequenceNumber = v.UInt, true
	}

	for _, m := range p.ExtraMembers {
		nv, err := m.Parse(r)
		if err != nil {
			return value.Context{}, err
		}
		ctx.ExtraMembers = append(ctx.ExtraMembers, nv)
	}

	return ctx, nil
}

// EventHeaderPlan is one stream's compiled event-record header layout.
type EventHeaderPlan struct {
	EventID   PrimitiveParser
	Timestamp PrimitiveParser
	Alignment bitio.Size
}

// EventPlan is one compiled event record type.
type EventPlan struct {
	Name            intern.Handle
	LogLevel        value.LogLevel
	HasLogLevel     bool
	SpecificContext *StructurePlan
	Payload         *StructurePlan
}

// StreamPlan is one compiled data stream type: its packet-context and
// event-header layouts, optional common context, and its named event
// types keyed by their assigned event id.
type StreamPlan struct {
	Name          intern.Handle
	PacketContext PacketContextPlan
	EventHeader   EventHeaderPlan
	CommonContext *StructurePlan
	Events        map[uint64]*EventPlan

	ClockName    intern.Handle
	HasClockName bool
	ClockType    *config.ClockType
}
