package decode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/intern"
	"github.com/barectf-tools/ctfdecode/plan"
)

// wireWriter builds packet bytes the same way the stream reader consumes
// them: every write first pads to the requested bit alignment with zero
// bytes, then appends the value in the trace's byte order. It mirrors
// what a barectf-generated tracer emits, which is what makes the decode
// tests round-trip rather than golden-blob comparisons.
type wireWriter struct {
	order binary.ByteOrder
	buf   []byte
	bits  uint64
}

func newWireWriter(order binary.ByteOrder) *wireWriter {
	return &wireWriter{order: order}
}

func (w *wireWriter) align(bits uint64) {
	for w.bits%bits != 0 {
		w.buf = append(w.buf, 0)
		w.bits += 8
	}
}

func (w *wireWriter) u8(align uint64, v uint8) {
	w.align(align)
	w.buf = append(w.buf, v)
	w.bits += 8
}

func (w *wireWriter) u16(align uint64, v uint16) {
	w.align(align)
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	w.bits += 16
}

func (w *wireWriter) u32(align uint64, v uint32) {
	w.align(align)
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	w.bits += 32
}

func (w *wireWriter) u64(align uint64, v uint64) {
	w.align(align)
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	w.bits += 64
}

func (w *wireWriter) i8(align uint64, v int8)   { w.u8(align, uint8(v)) }
func (w *wireWriter) i16(align uint64, v int16) { w.u16(align, uint16(v)) }
func (w *wireWriter) i32(align uint64, v int32) { w.u32(align, uint32(v)) }

func (w *wireWriter) f32(align uint64, v float32) { w.u32(align, math.Float32bits(v)) }
func (w *wireWriter) f64(align uint64, v float64) { w.u64(align, math.Float64bits(v)) }

func (w *wireWriter) str(s string) {
	w.align(8)
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	w.bits += 8 * uint64(len(s)+1)
}

func (w *wireWriter) uuid(u config.UUID) {
	w.align(8)
	w.buf = append(w.buf, u[:]...)
	w.bits += 128
}

// reserveU16 writes a 16-bit placeholder and returns its byte offset so
// the caller can patch the real value in once it's known; the packet
// content size isn't known until the events have been written.
func (w *wireWriter) reserveU16(align uint64) int {
	w.align(align)
	idx := len(w.buf)
	w.buf = append(w.buf, 0, 0)
	w.bits += 16

	return idx
}

func (w *wireWriter) patchU16(idx int, v uint16) {
	w.order.PutUint16(w.buf[idx:], v)
}

func (w *wireWriter) reserveU32(align uint64) int {
	w.align(align)
	idx := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	w.bits += 32

	return idx
}

func (w *wireWriter) patchU32(idx int, v uint32) {
	w.order.PutUint32(w.buf[idx:], v)
}

// padToBytes appends zero bytes until the packet occupies total bytes.
func (w *wireWriter) padToBytes(total int) {
	for len(w.buf) < total {
		w.buf = append(w.buf, 0)
		w.bits += 8
	}
}

func uintFT(size, align int) *config.UnsignedIntegerFieldType {
	return &config.UnsignedIntegerFieldType{Size: size, Alignment: align}
}

// simpleTrace is a single-stream schema with no magic, no UUID and no
// optional context features: the smallest layout a barectf trace can
// have.
func simpleTrace(t *testing.T) *plan.Plan {
	t.Helper()

	tr := &config.TraceType{
		NativeByteOrder: config.LittleEndian,
		Features: config.TraceTypeFeatures{
			DataStreamTypeIDFieldType: uintFT(8, 8),
		},
		ClockTypes: map[string]*config.ClockType{
			"timer": {Name: "timer", Frequency: 1_000_000_000},
		},
		DataStreamTypes: map[string]*config.DataStreamType{
			"stream_a": {
				Features: config.DataStreamTypeFeatures{
					Packet: config.DataStreamTypePacketFeatures{
						TotalSizeFieldType:   uintFT(32, 32),
						ContentSizeFieldType: uintFT(32, 32),
						ClockName:            "timer",
					},
					EventRecord: config.DataStreamTypeEventRecordFeatures{
						TypeIDFieldType:    uintFT(8, 8),
						TimestampFieldType: uintFT(32, 32),
					},
				},
				EventRecordTypes: map[string]*config.EventRecordType{
					"init":     {},
					"shutdown": {},
				},
			},
		},
	}

	p, err := plan.Compile(tr)
	require.NoError(t, err)

	return p
}

// simpleStreamBytes is one canonical packet for simpleTrace: events
// init (id 0, ts 0) and shutdown (id 1, ts 1), 64 packet bytes total.
func simpleStreamBytes(t *testing.T) []byte {
	t.Helper()

	w := newWireWriter(binary.LittleEndian)

	w.u8(8, 0) // stream id
	totalIdx := w.reserveU32(32)
	contentIdx := w.reserveU32(32)

	w.u8(8, 0)  // init
	w.u32(32, 0)
	w.u8(8, 1)  // shutdown
	w.u32(32, 1)

	w.patchU32(contentIdx, uint32(w.bits))
	w.patchU32(totalIdx, 512)
	w.padToBytes(64)
	require.Len(t, w.buf, 64)

	return w.buf
}

const fullTraceUUIDText = "79e49040-21b5-42d4-a83b-646f78666b62"

// fullTraceConfig is the all-features schema: magic + UUID + stream id
// header, every optional context feature, a common context, extra
// packet-context members, and event payloads covering strings, floats,
// enumerations and both array flavors.
func fullTraceConfig(t *testing.T) *config.TraceType {
	t.Helper()

	u, err := config.ParseUUID(fullTraceUUIDText)
	require.NoError(t, err)

	return &config.TraceType{
		NativeByteOrder: config.LittleEndian,
		UUID:            &u,
		Features: config.TraceTypeFeatures{
			MagicFieldType:            uintFT(32, 32),
			UUIDFieldPresent:          true,
			DataStreamTypeIDFieldType: uintFT(8, 8),
		},
		ClockTypes: map[string]*config.ClockType{
			"default": {Name: "default", Frequency: 1_000_000_000},
		},
		DataStreamTypes: map[string]*config.DataStreamType{
			"default": {
				Features: config.DataStreamTypeFeatures{
					Packet: config.DataStreamTypePacketFeatures{
						TotalSizeFieldType:          uintFT(16, 16),
						ContentSizeFieldType:        uintFT(16, 16),
						BeginningTimestampFieldType: uintFT(64, 64),
						EndTimestampFieldType:       uintFT(64, 64),
						EventsDiscardedFieldType:    uintFT(32, 32),
						SequenceNumberFieldType:     uintFT(32, 32),
						ClockName:                   "default",
					},
					EventRecord: config.DataStreamTypeEventRecordFeatures{
						TypeIDFieldType:    uintFT(8, 8),
						TimestampFieldType: uintFT(64, 64),
					},
				},
				CommonContextType: &config.StructureFieldType{Members: []config.StructureMember{
					{Name: "ercc", Type: uintFT(32, 32)},
				}},
				PacketContextExtraMembers: []config.StructureMember{
					{Name: "pc", Type: uintFT(32, 32)},
				},
				EventRecordTypes: map[string]*config.EventRecordType{
					// Sorted lexicographically these get ids 0..5.
					"alpha": {PayloadType: &config.StructureFieldType{Members: []config.StructureMember{
						{Name: "arr", Type: &config.StaticArrayFieldType{Length: 4, Element: uintFT(32, 32)}},
						{Name: "names", Type: &config.DynamicArrayFieldType{Element: &config.StringFieldType{}}},
					}}},
					"bravo": {PayloadType: &config.StructureFieldType{Members: []config.StructureMember{
						{Name: "f", Type: &config.RealFieldType{Size: 32, Alignment: 32}},
						{Name: "d", Type: &config.RealFieldType{Size: 64, Alignment: 64}},
					}}},
					"charlie": {PayloadType: &config.StructureFieldType{Members: []config.StructureMember{
						{Name: "ea", Type: &config.UnsignedEnumerationFieldType{Size: 8, Alignment: 8, Mappings: config.EnumMapping{
							{Label: "A", Lo: 0, Hi: 0}, {Label: "B", Lo: 1, Hi: 1},
						}}},
						{Name: "ec", Type: &config.UnsignedEnumerationFieldType{Size: 16, Alignment: 16, Mappings: config.EnumMapping{
							{Label: "A", Lo: 0, Hi: 0}, {Label: "B", Lo: 1, Hi: 1}, {Label: "C", Lo: 2, Hi: 5},
						}}},
						{Name: "state", Type: &config.SignedEnumerationFieldType{Size: 32, Alignment: 32, Mappings: config.EnumMapping{
							{Label: "STOPPED", Lo: 0, Hi: 0}, {Label: "RUNNING", Lo: 1, Hi: 10},
						}}},
						{Name: "toggle", Type: &config.SignedEnumerationFieldType{Size: 8, Alignment: 8, Mappings: config.EnumMapping{
							{Label: "on/off", Lo: -1, Hi: 1},
						}}},
						{Name: "unk", Type: &config.UnsignedEnumerationFieldType{Size: 8, Alignment: 8, Mappings: config.EnumMapping{
							{Label: "X", Lo: 5, Hi: 5},
						}}},
					}}},
					"delta": {
						LogLevel: int64Ptr(6),
						SpecificContextType: &config.StructureFieldType{Members: []config.StructureMember{
							{Name: "sctx", Type: uintFT(8, 8)},
						}},
						PayloadType: &config.StructureFieldType{Members: []config.StructureMember{
							{Name: "u", Type: &config.UnsignedIntegerFieldType{Size: 64, Alignment: 64, PreferredBase: config.Hexadecimal}},
							{Name: "s", Type: &config.SignedIntegerFieldType{Size: 16, Alignment: 16}},
						}},
					},
					"echo": {PayloadType: &config.StructureFieldType{Members: []config.StructureMember{
						{Name: "version", Type: &config.StringFieldType{}},
					}}},
					"shutdown": {},
				},
			},
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func fullTrace(t *testing.T) *plan.Plan {
	t.Helper()

	p, err := plan.Compile(fullTraceConfig(t))
	require.NoError(t, err)

	return p
}

// fullPacketHeader writes the magic/UUID/stream-id header plus the
// packet context for the full schema, returning the patch offsets for
// the two size fields.
func fullPacketHeader(t *testing.T, w *wireWriter, begin, end, discarded uint64, seq uint32) (totalIdx, contentIdx int) {
	t.Helper()

	u, err := config.ParseUUID(fullTraceUUIDText)
	require.NoError(t, err)

	w.u32(32, 0xC1FC1FC1)
	w.uuid(u)
	w.u8(8, 0) // stream id

	w.align(64) // packet-context alignment
	totalIdx = w.reserveU16(16)
	contentIdx = w.reserveU16(16)
	w.u64(64, begin)
	w.u64(64, end)
	w.u32(32, uint64ToU32(t, discarded))
	w.u32(32, seq)
	w.u32(32, 22) // pc extra member

	return totalIdx, contentIdx
}

func uint64ToU32(t *testing.T, v uint64) uint32 {
	t.Helper()
	require.LessOrEqual(t, v, uint64(0xFFFFFFFF))

	return uint32(v)
}

// fullStreamBytes is the canonical two-packet stream for fullTrace.
//
// Packet 0 carries five events in id order {4,3,2,1,0} with timestamps
// 0..4; packet 1 carries a single shutdown event (id 5, ts 5).
func fullStreamBytes(t *testing.T) (packet0, packet1 []byte) {
	t.Helper()

	w := newWireWriter(binary.LittleEndian)
	totalIdx, contentIdx := fullPacketHeader(t, w, 0, 4, 0, 0)

	// echo, id 4, ts 0
	w.align(64)
	w.u8(8, 4)
	w.u64(64, 0)
	w.u32(32, 100) // ercc
	w.str("1.0.0")

	// delta, id 3, ts 1
	w.align(64)
	w.u8(8, 3)
	w.u64(64, 1)
	w.u32(32, 101)
	w.u8(8, 7) // sctx
	w.u64(64, 0xDEAD)
	w.i16(16, -5)

	// charlie, id 2, ts 2
	w.align(64)
	w.u8(8, 2)
	w.u64(64, 2)
	w.u32(32, 102)
	w.align(32) // payload structure alignment
	w.u8(8, 0)      // ea -> "A"
	w.u16(16, 3)    // ec -> "C"
	w.i32(32, 1)    // state -> "RUNNING"
	w.i8(8, -1)     // toggle -> "on/off"
	w.u8(8, 9)      // unk -> unmapped

	// bravo, id 1, ts 3
	w.align(64)
	w.u8(8, 1)
	w.u64(64, 3)
	w.u32(32, 103)
	w.align(64) // payload structure alignment
	w.f32(32, 1.1)
	w.f64(64, 2.2)

	// alpha, id 0, ts 4
	w.align(64)
	w.u8(8, 0)
	w.u64(64, 4)
	w.u32(32, 104)
	w.align(32) // payload structure alignment
	for _, v := range []uint32{1, 2, 3, 4} {
		w.u32(32, v) // arr
	}
	w.u32(8, 3) // names length prefix
	w.str("b0")
	w.str("b1")
	w.str("b2")

	content := w.bits
	const packetBytes = 272
	w.patchU16(contentIdx, uint16(content))
	w.patchU16(totalIdx, packetBytes*8)
	w.padToBytes(packetBytes)
	require.Len(t, w.buf, packetBytes)
	packet0 = w.buf

	w = newWireWriter(binary.LittleEndian)
	totalIdx, contentIdx = fullPacketHeader(t, w, 5, 5, 0, 1)

	// shutdown, id 5, ts 5
	w.align(64)
	w.u8(8, 5)
	w.u64(64, 5)
	w.u32(32, 105) // ercc

	const packet1Bytes = 96
	w.patchU16(contentIdx, uint16(w.bits))
	w.patchU16(totalIdx, packet1Bytes*8)
	w.padToBytes(packet1Bytes)
	require.Len(t, w.buf, packet1Bytes)
	packet1 = w.buf

	return packet0, packet1
}

// nameOf resolves an interned handle through the plan's pool.
func nameOf(t *testing.T, pool *intern.Pool, h intern.Handle) string {
	t.Helper()

	name, ok := pool.String(h)
	require.True(t, ok)

	return name
}
