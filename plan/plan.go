package plan

import (
	"fmt"
	"sort"

	"github.com/barectf-tools/ctfdecode/bitio"
	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/errs"
	"github.com/barectf-tools/ctfdecode/intern"
	"github.com/barectf-tools/ctfdecode/value"
)

// Plan is the compiled, immutable output of Compile. A Plan is safe to
// share by reference across concurrently-running decoder instances:
// nothing in it is ever mutated after Compile returns.
type Plan struct {
	ByteOrder config.NativeByteOrder
	TraceUUID *config.UUID
	Header    PacketHeaderPlan
	Streams   map[uint64]*StreamPlan
	Pool      *intern.Pool
}

// Compile validates t and builds an immutable Plan from it. Stream ids
// and event ids are assigned by sorting names lexicographically and
// numbering from 0, matching barectf's own code-generation order.
func Compile(t *config.TraceType) (*Plan, error) {
	pool := intern.NewPool()

	header, err := buildPacketHeaderPlan(t)
	if err != nil {
		return nil, err
	}

	streamNames := make([]string, 0, len(t.DataStreamTypes))
	for name := range t.DataStreamTypes {
		streamNames = append(streamNames, name)
	}
	sort.Strings(streamNames)

	streams := make(map[uint64]*StreamPlan, len(streamNames))
	for i, name := range streamNames {
		sp, err := buildStreamPlan(pool, t, name, t.DataStreamTypes[name], header.WireSizeHint)
		if err != nil {
			return nil, err
		}
		streams[uint64(i)] = sp
	}

	return &Plan{
		ByteOrder: t.NativeByteOrder,
		TraceUUID: t.UUID,
		Header:    header,
		Streams:   streams,
		Pool:      pool,
	}, nil
}

func buildStreamPlan(pool *intern.Pool, t *config.TraceType, name string, s *config.DataStreamType, headerHint bitio.Cursor) (*StreamPlan, error) {
	nameHandle, err := pool.Intern(name)
	if err != nil {
		return nil, fmt.Errorf("stream.%s: %w", name, err)
	}

	pc, err := buildPacketContextPlan(pool, name, s, headerHint)
	if err != nil {
		return nil, err
	}

	eh, err := buildEventHeaderPlan(name, s)
	if err != nil {
		return nil, err
	}

	cc, err := buildStructurePlan(pool, fmt.Sprintf("stream.%s.event-record-common-context-field-type", name), s.CommonContextType)
	if err != nil {
		return nil, err
	}

	eventNames := make([]string, 0, len(s.EventRecordTypes))
	for n := range s.EventRecordTypes {
		eventNames = append(eventNames, n)
	}
	sort.Strings(eventNames)

	events := make(map[uint64]*EventPlan, len(eventNames))
	for i, eventName := range eventNames {
		ep, err := buildEventPlan(pool, name, eventName, s.EventRecordTypes[eventName])
		if err != nil {
			return nil, err
		}
		events[uint64(i)] = ep
	}

	sp := &StreamPlan{
		Name:          nameHandle,
		PacketContext: pc,
		EventHeader:   eh,
		CommonContext: cc,
		Events:        events,
	}

	if s.Features.Packet.ClockName != "" {
		clockHandle, err := pool.Intern(s.Features.Packet.ClockName)
		if err != nil {
			return nil, fmt.Errorf("stream.%s: %w", name, err)
		}
		sp.ClockName = clockHandle
		sp.HasClockName = true
		if ct, ok := t.ClockTypes[s.Features.Packet.ClockName]; ok {
			sp.ClockType = ct
		}
	}

	return sp, nil
}

func buildPacketContextPlan(pool *intern.Pool, streamName string, s *config.DataStreamType, headerHint bitio.Cursor) (PacketContextPlan, error) {
	path := fmt.Sprintf("stream.%s.$features.packet", streamName)

	totalSize, err := requireUInt(s.Features.Packet.TotalSizeFieldType, path+".total-size-field-type")
	if err != nil {
		return PacketContextPlan{}, err
	}
	contentSize, err := requireUInt(s.Features.Packet.ContentSizeFieldType, path+".content-size-field-type")
	if err != nil {
		return PacketContextPlan{}, err
	}

	var beginning, end, discarded, sequence *PrimitiveParser
	if s.Features.Packet.BeginningTimestampFieldType != nil {
		p, err := buildPrimitiveParser(s.Features.Packet.BeginningTimestampFieldType)
		if err != nil {
			return PacketContextPlan{}, fmt.Errorf("%s.beginning-timestamp-field-type: %w", path, err)
		}
		beginning = &p
	}
	if s.Features.Packet.EndTimestampFieldType != nil {
		p, err := buildPrimitiveParser(s.Features.Packet.EndTimestampFieldType)
		if err != nil {
			return PacketContextPlan{}, fmt.Errorf("%s.end-timestamp-field-type: %w", path, err)
		}
		end = &p
	}
	if s.Features.Packet.EventsDiscardedFieldType != nil {
		p, err := buildPrimitiveParser(s.Features.Packet.EventsDiscardedFieldType)
		if err != nil {
			return PacketContextPlan{}, fmt.Errorf("%s.discarded-event-records-counter-snapshot-field-type: %w", path, err)
		}
		discarded = &p
	}
	if s.Features.Packet.SequenceNumberFieldType != nil {
		p, err := buildPrimitiveParser(s.Features.Packet.SequenceNumberFieldType)
		if err != nil {
			return PacketContextPlan{}, fmt.Errorf("%s.sequence-number-field-type: %w", path, err)
		}
		sequence = &p
	}

	extraPath := fmt.Sprintf("stream.%s.packet-context-field-type-extra-members", streamName)
	extraMembers := make([]MemberPlan, 0, len(s.PacketContextExtraMembers))
	extraAlign := 8
	for _, m := range s.PacketContextExtraMembers {
		mp, err := buildMemberPlan(pool, extraPath, m)
		if err != nil {
			return PacketContextPlan{}, err
		}
		extraMembers = append(extraMembers, mp)
		if a := m.Type.AlignBits(); a > extraAlign {
			extraAlign = a
		}
	}

	featureAlign := dataStreamTypePacketFeaturesAlignment(s.Features.Packet)
	if extraAlign > featureAlign {
		featureAlign = extraAlign
	}
	align, ok := bitio.SizeFromBits(featureAlign)
	if !ok {
		return PacketContextPlan{}, fmt.Errorf("%s: alignment %d: %w", path, featureAlign, errs.ErrUnsupportedAlignment)
	}

	cursor := headerHint
	cursor.AlignTo(align)
	cursor.AlignedIncrement(totalSize.Desc)
	cursor.AlignedIncrement(contentSize.Desc)
	if beginning != nil {
		cursor.AlignedIncrement(beginning.Desc)
	}
	if end != nil {
		cursor.AlignedIncrement(end.Desc)
	}
	if discarded != nil {
		cursor.AlignedIncrement(discarded.Desc)
	}
	if sequence != nil {
		cursor.AlignedIncrement(sequence.Desc)
	}
	for _, m := range extraMembers {
		switch m.Field.Kind {
		case FieldStaticArray:
			cursor.AlignTo(m.Field.Element.Desc.Alignment)
			for i := 0; i < m.Field.Length; i++ {
				cursor.AlignedIncrement(m.Field.Element.Desc)
			}
		case FieldDynamicArray:
			// Minimum footprint: the u32 length prefix and zero elements.
			cursor.AlignedIncrement(bitio.FieldDesc{Size: bitio.Bits32, Alignment: bitio.Bits8})
			cursor.AlignTo(m.Field.Element.Desc.Alignment)
		default:
			cursor.AlignedIncrement(m.Field.Desc())
		}
	}

	return PacketContextPlan{
		TotalSize:          totalSize,
		ContentSize:        contentSize,
		BeginningTimestamp: beginning,
		EndTimestamp:       end,
		EventsDiscarded:    discarded,
		SequenceNumber:     sequence,
		ExtraMembers:       extraMembers,
		Alignment:          align,
		WireSizeHint:       cursor,
	}, nil
}

func buildEventHeaderPlan(streamName string, s *config.DataStreamType) (EventHeaderPlan, error) {
	path := fmt.Sprintf("stream.%s.$features.event-record", streamName)

	eventID, err := requireUInt(s.Features.EventRecord.TypeIDFieldType, path+".type-id-field-type")
	if err != nil {
		return EventHeaderPlan{}, err
	}
	timestamp, err := requireUInt(s.Features.EventRecord.TimestampFieldType, path+".timestamp-field-type")
	if err != nil {
		return EventHeaderPlan{}, err
	}

	align := 8
	if s.Features.EventRecord.TypeIDFieldType.Alignment > align {
		align = s.Features.EventRecord.TypeIDFieldType.Alignment
	}
	if s.Features.EventRecord.TimestampFieldType.Alignment > align {
		align = s.Features.EventRecord.TimestampFieldType.Alignment
	}
	a, ok := bitio.SizeFromBits(align)
	if !ok {
		return EventHeaderPlan{}, fmt.Errorf("%s: alignment %d: %w", path, align, errs.ErrUnsupportedAlignment)
	}

	return EventHeaderPlan{EventID: eventID, Timestamp: timestamp, Alignment: a}, nil
}

func buildEventPlan(pool *intern.Pool, streamName, eventName string, e *config.EventRecordType) (*EventPlan, error) {
	nameHandle, err := pool.Intern(eventName)
	if err != nil {
		return nil, fmt.Errorf("stream.%s.event-record-types.%s: %w", streamName, eventName, err)
	}

	sc, err := buildStructurePlan(pool,
		fmt.Sprintf("stream.%s.event-record-types.%s.specific-context-field-type", streamName, eventName),
		e.SpecificContextType)
	if err != nil {
		return nil, err
	}

	pl, err := buildStructurePlan(pool,
		fmt.Sprintf("stream.%s.event-record-types.%s.payload-field-type", streamName, eventName),
		e.PayloadType)
	if err != nil {
		return nil, err
	}

	ep := &EventPlan{Name: nameHandle, SpecificContext: sc, Payload: pl}
	if e.LogLevel != nil {
		ep.LogLevel = value.LogLevel(*e.LogLevel)
		ep.HasLogLevel = true
	}

	return ep, nil
}

func dataStreamTypePacketFeaturesAlignment(f config.DataStreamTypePacketFeatures) int {
	align := 8
	maxOf := func(ft *config.UnsignedIntegerFieldType) {
		if ft != nil && ft.Alignment > align {
			align = ft.Alignment
		}
	}
	maxOf(f.TotalSizeFieldType)
	maxOf(f.ContentSizeFieldType)
	maxOf(f.BeginningTimestampFieldType)
	maxOf(f.EndTimestampFieldType)
	maxOf(f.EventsDiscardedFieldType)
	maxOf(f.SequenceNumberFieldType)

	return align
}
