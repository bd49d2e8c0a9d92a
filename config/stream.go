package config

// DataStreamTypePacketFeatures selects which optional members appear
// in every packet context for this data stream type. TotalSizeFieldType
// and ContentSizeFieldType are always present; the planner requires
// both, unconditionally.
type DataStreamTypePacketFeatures struct {
	TotalSizeFieldType   *UnsignedIntegerFieldType
	ContentSizeFieldType *UnsignedIntegerFieldType

	BeginningTimestampFieldType *UnsignedIntegerFieldType
	EndTimestampFieldType       *UnsignedIntegerFieldType
	EventsDiscardedFieldType    *UnsignedIntegerFieldType
	SequenceNumberFieldType     *UnsignedIntegerFieldType

	// ClockName names the ClockType in the owning TraceType that the
	// timestamp/sequence fields above are measured against, when any
	// of them are present.
	ClockName string
}

// DataStreamTypeEventRecordFeatures describes every event record
// header's fixed layout for this data stream type. Both fields are
// always concretely populated by barectf's effective configuration,
// even when the stream declares only one event record type or no
// clock; unlike the packet-context's optional timestamp/sequence
// features, these are never omitted.
type DataStreamTypeEventRecordFeatures struct {
	TypeIDFieldType    *UnsignedIntegerFieldType
	TimestampFieldType *UnsignedIntegerFieldType
}

// DataStreamTypeFeatures bundles the packet-level and event-record-level
// feature descriptors for one data stream type.
type DataStreamTypeFeatures struct {
	Packet      DataStreamTypePacketFeatures
	EventRecord DataStreamTypeEventRecordFeatures
}

// DataStreamType is one named stream: its packet-context and
// event-header feature selection, optional shared per-event common
// context, optional user-appended packet-context extra members, and
// its named event record types.
type DataStreamType struct {
	Features DataStreamTypeFeatures

	// CommonContextType, if non-nil, is read once per event
	// immediately after the event header, before the event's own
	// specific context.
	CommonContextType *StructureFieldType

	// PacketContextExtraMembers are appended, in declared order,
	// after the packet context's fixed feature fields.
	PacketContextExtraMembers []StructureMember

	EventRecordTypes map[string]*EventRecordType
}

// EventRecordType is one named event: its optional numeric log level
// and optional specific-context and payload structures.
type EventRecordType struct {
	// LogLevel, when non-nil, is a fixed numeric severity carried by
	// every instance of this event type; it is not read from the
	// wire, so it has no associated FieldType.
	LogLevel *int64

	SpecificContextType *StructureFieldType
	PayloadType         *StructureFieldType
}
