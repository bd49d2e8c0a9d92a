// Package decode implements the blocking and incremental packet
// decoders. Both share the same stage functions (parseHeader,
// plan.PacketContextPlan.ReadContext, parseEvents) parameterized by a
// bitio.StreamReader, so there is one parsing implementation rather
// than two. The incremental decoder's state boundaries are exactly
// these stage boundaries.
package decode

import (
	"fmt"
	"log/slog"

	"github.com/barectf-tools/ctfdecode/bitio"
	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/errs"
	"github.com/barectf-tools/ctfdecode/plan"
	"github.com/barectf-tools/ctfdecode/value"
)

// ctfMagicNumber is the fixed 32-bit magic every barectf packet header
// carries when the schema configures a magic field.
const ctfMagicNumber uint32 = 0xC1FC1FC1

// parseHeader reads one packet header and resolves the stream it names.
// Magic and trace-UUID mismatches are non-fatal: decoding proceeds and
// the mismatch is logged as a warning.
func parseHeader(p *plan.Plan, sr *bitio.StreamReader, log *slog.Logger) (value.Header, *plan.StreamPlan, error) {
	if err := sr.AlignTo(p.Header.Alignment); err != nil {
		return value.Header{}, nil, err
	}

	var header value.Header

	if p.Header.Magic != nil {
		v, err := p.Header.Magic.Parse(sr)
		if err != nil {
			return value.Header{}, nil, err
		}
		header.MagicNumber = uint32(v.UInt)
		header.HasMagic = true
		if header.MagicNumber != ctfMagicNumber {
			log.Warn("packet header magic mismatch",
				"got", fmt.Sprintf("0x%X", header.MagicNumber),
				"want", fmt.Sprintf("0x%X", ctfMagicNumber))
		}
	}

	if p.Header.UUIDPresent {
		raw, err := sr.ReadUUIDBytes()
		if err != nil {
			return value.Header{}, nil, err
		}
		header.TraceUUID = config.UUID(raw)
		header.HasTraceUUID = true
		if p.TraceUUID != nil && header.TraceUUID != *p.TraceUUID {
			log.Warn("packet trace UUID mismatch",
				"got", header.TraceUUID.String(),
				"want", p.TraceUUID.String())
		}
	}

	streamIDVal, err := p.Header.StreamID.Parse(sr)
	if err != nil {
		return value.Header{}, nil, err
	}
	header.StreamID = streamIDVal.UInt

	stream, ok := p.Streams[header.StreamID]
	if !ok {
		return value.Header{}, nil, fmt.Errorf("stream id %d: %w", header.StreamID, errs.ErrUndefinedStreamID)
	}

	header.StreamName = stream.Name
	if stream.HasClockName {
		header.ClockName = stream.ClockName
		header.HasClockName = true
		header.ClockType = stream.ClockType
	}

	return header, stream, nil
}

// parseEvents reads event records until the bit cursor reaches
// ctx.ContentSizeBits, then returns. It never discards the trailing
// packet padding; the caller does that once it knows
// ctx.PacketSizeBits.
func parseEvents(stream *plan.StreamPlan, ctx value.Context, sr *bitio.StreamReader) ([]value.Event, error) {
	var events []value.Event

	for {
		if sr.CursorBits() > ctx.ContentSizeBits {
			return nil, fmt.Errorf("decode: cursor %d bits exceeded packet content size %d bits",
				sr.CursorBits(), ctx.ContentSizeBits)
		}
		if sr.CursorBits() == ctx.ContentSizeBits {
			return events, nil
		}

		if err := sr.AlignTo(stream.EventHeader.Alignment); err != nil {
			return nil, err
		}

		idVal, err := stream.EventHeader.EventID.Parse(sr)
		if err != nil {
			return nil, err
		}
		tsVal, err := stream.EventHeader.Timestamp.Parse(sr)
		if err != nil {
			return nil, err
		}

		commonContext, err := stream.CommonContext.ReadMembers(sr)
		if err != nil {
			return nil, err
		}

		ep, ok := stream.Events[idVal.UInt]
		if !ok {
			return nil, fmt.Errorf("event id %d: %w", idVal.UInt, errs.ErrUndefinedEventID)
		}

		specificContext, err := ep.SpecificContext.ReadMembers(sr)
		if err != nil {
			return nil, err
		}

		payload, err := ep.Payload.ReadMembers(sr)
		if err != nil {
			return nil, err
		}

		ev := value.Event{
			ID:              idVal.UInt,
			Name:            ep.Name,
			Timestamp:       tsVal.UInt,
			CommonContext:   commonContext,
			SpecificContext: specificContext,
			Payload:         payload,
		}
		if ep.HasLogLevel {
			ev.LogLevel = ep.LogLevel
			ev.HasLogLevel = true
		}
		events = append(events, ev)
	}
}
