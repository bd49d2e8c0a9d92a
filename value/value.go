// Package value holds the runtime output of a decode: field values,
// event records, and the packet record they assemble into. Every
// integer is widened to its 64-bit carrier and every name is an
// interned handle.
package value

import (
	"strconv"

	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/intern"
)

// Kind discriminates a Primitive's payload without a type switch on an
// empty interface. A tagged struct is cheaper here than one interface
// per primitive kind since FieldValue.Array needs a homogeneous,
// allocation-light slice.
type Kind uint8

const (
	KindUInt Kind = iota
	KindSInt
	KindString
	KindF32
	KindF64
	KindEnum
)

// Primitive is one decoded scalar value. Only the field matching Kind
// is meaningful; the rest are zero.
type Primitive struct {
	Kind Kind

	UInt uint64
	SInt int64 // also holds Enumeration's signed numeric value
	Str  string
	F32  float32
	F64  float64

	// DisplayBase is meaningful for KindUInt, KindSInt, and KindEnum;
	// it is a rendering hint only and never affects the decoded value.
	DisplayBase config.PreferredDisplayBase
	// EnumLabel is set only for KindEnum when a mapping matched; the
	// first mapping in declared order wins.
	EnumLabel   string
	EnumHasName bool
}

func UIntValue(v uint64, base config.PreferredDisplayBase) Primitive {
	return Primitive{Kind: KindUInt, UInt: v, DisplayBase: base}
}

func SIntValue(v int64, base config.PreferredDisplayBase) Primitive {
	return Primitive{Kind: KindSInt, SInt: v, DisplayBase: base}
}

func StringValue(v string) Primitive { return Primitive{Kind: KindString, Str: v} }

func F32Value(v float32) Primitive { return Primitive{Kind: KindF32, F32: v} }

func F64Value(v float64) Primitive { return Primitive{Kind: KindF64, F64: v} }

func EnumValue(v int64, base config.PreferredDisplayBase, label string, hasLabel bool) Primitive {
	return Primitive{Kind: KindEnum, SInt: v, DisplayBase: base, EnumLabel: label, EnumHasName: hasLabel}
}

// FieldValue is a decoded structure member's value: either a single
// Primitive or an array of them. Nested structures and arrays of
// structures don't exist in this wire format, so Array always holds
// Primitive elements, never further FieldValues.
type FieldValue struct {
	IsArray bool
	Scalar  Primitive
	Array   []Primitive
}

func ScalarField(p Primitive) FieldValue { return FieldValue{Scalar: p} }

func ArrayField(items []Primitive) FieldValue { return FieldValue{IsArray: true, Array: items} }

// NamedValue pairs an interned member-name handle with its decoded
// value, preserving declaration order the way a map could not.
type NamedValue struct {
	Name  intern.Handle
	Value FieldValue
}

// Header is a decoded packet header.
type Header struct {
	MagicNumber  uint32
	HasMagic     bool
	TraceUUID    config.UUID
	HasTraceUUID bool
	StreamID     uint64
	StreamName   intern.Handle
	ClockName    intern.Handle
	HasClockName bool
	ClockType    *config.ClockType
}

// Context is a decoded packet context.
type Context struct {
	PacketSizeBits        uint64
	ContentSizeBits       uint64
	BeginningTimestamp    uint64
	HasBeginningTimestamp bool
	EndTimestamp          uint64
	HasEndTimestamp       bool
	EventsDiscarded       uint64
	HasEventsDiscarded    bool
	SequenceNumber        uint64
	HasSequenceNumber     bool
	ExtraMembers          []NamedValue
}

// LogLevel mirrors barectf's fixed numeric severity levels; values
// outside the named set are preserved verbatim.
type LogLevel int32

const (
	LogLevelEmergency     LogLevel = 0
	LogLevelAlert         LogLevel = 1
	LogLevelCritical      LogLevel = 2
	LogLevelError         LogLevel = 3
	LogLevelWarning       LogLevel = 4
	LogLevelNotice        LogLevel = 5
	LogLevelInfo          LogLevel = 6
	LogLevelDebugSystem   LogLevel = 7
	LogLevelDebugProgram  LogLevel = 8
	LogLevelDebugProcess  LogLevel = 9
	LogLevelDebugModule   LogLevel = 10
	LogLevelDebugUnit     LogLevel = 11
	LogLevelDebugFunction LogLevel = 12
	LogLevelDebugLine     LogLevel = 13
	LogLevelDebug         LogLevel = 14
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelEmergency:
		return "EMERG"
	case LogLevelAlert:
		return "ALERT"
	case LogLevelCritical:
		return "CRIT"
	case LogLevelError:
		return "ERR"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelNotice:
		return "NOTICE"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebugSystem:
		return "DEBUG_SYSTEM"
	case LogLevelDebugProgram:
		return "DEBUG_PROGRAM"
	case LogLevelDebugProcess:
		return "DEBUG_PROCESS"
	case LogLevelDebugModule:
		return "DEBUG_MODULE"
	case LogLevelDebugUnit:
		return "DEBUG_UNIT"
	case LogLevelDebugFunction:
		return "DEBUG_FUNCTION"
	case LogLevelDebugLine:
		return "DEBUG_LINE"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return strconv.FormatInt(int64(l), 10)
	}
}

// Event is one decoded event record.
type Event struct {
	ID              uint64
	Name            intern.Handle
	Timestamp       uint64
	LogLevel        LogLevel
	HasLogLevel     bool
	CommonContext   []NamedValue
	SpecificContext []NamedValue
	Payload         []NamedValue
}

// PacketRecord is one fully decoded CTF packet.
type PacketRecord struct {
	Header  Header
	Context Context
	Events  []Event
}
