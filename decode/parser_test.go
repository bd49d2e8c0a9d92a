package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/errs"
	"github.com/barectf-tools/ctfdecode/plan"
	"github.com/barectf-tools/ctfdecode/value"
)

// countingReader tracks how many bytes a Parse call actually consumed,
// so tests can assert the cursor-continuity invariant: one packet
// consumes exactly total-size/8 source bytes.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n

	return n, err
}

func TestParser_SimpleStream(t *testing.T) {
	p := simpleTrace(t)
	stream := simpleStreamBytes(t)

	cr := &countingReader{r: bytes.NewReader(stream)}
	parser := NewParser(p)

	rec, err := parser.Parse(cr)
	require.NoError(t, err)

	// Header: no magic, no UUID, stream 0 with its clock resolved.
	assert.False(t, rec.Header.HasMagic)
	assert.False(t, rec.Header.HasTraceUUID)
	assert.Equal(t, uint64(0), rec.Header.StreamID)
	assert.Equal(t, "stream_a", nameOf(t, p.Pool, rec.Header.StreamName))
	require.True(t, rec.Header.HasClockName)
	assert.Equal(t, "timer", nameOf(t, p.Pool, rec.Header.ClockName))
	require.NotNil(t, rec.Header.ClockType)
	assert.Equal(t, uint64(1_000_000_000), rec.Header.ClockType.Frequency)

	// Context: sizes only, no optional features, no extra members.
	assert.Equal(t, uint64(512), rec.Context.PacketSizeBits)
	assert.Equal(t, uint64(224), rec.Context.ContentSizeBits)
	assert.False(t, rec.Context.HasBeginningTimestamp)
	assert.False(t, rec.Context.HasEndTimestamp)
	assert.False(t, rec.Context.HasEventsDiscarded)
	assert.False(t, rec.Context.HasSequenceNumber)
	assert.Empty(t, rec.Context.ExtraMembers)

	require.Len(t, rec.Events, 2)
	assert.Equal(t, uint64(0), rec.Events[0].ID)
	assert.Equal(t, "init", nameOf(t, p.Pool, rec.Events[0].Name))
	assert.Equal(t, uint64(0), rec.Events[0].Timestamp)
	assert.Equal(t, uint64(1), rec.Events[1].ID)
	assert.Equal(t, "shutdown", nameOf(t, p.Pool, rec.Events[1].Name))
	assert.Equal(t, uint64(1), rec.Events[1].Timestamp)

	// Cursor continuity: the packet consumed exactly its declared size.
	assert.Equal(t, 64, cr.n)

	// A second decode call is the end-of-stream sentinel.
	_, err = parser.Parse(cr)
	assert.ErrorIs(t, err, io.EOF)
}

// scalarByName finds a named member and requires it to be a scalar.
func scalarByName(t *testing.T, p *plan.Plan, members []value.NamedValue, name string) value.Primitive {
	t.Helper()

	for _, m := range members {
		if nameOf(t, p.Pool, m.Name) == name {
			require.False(t, m.Value.IsArray, "member %q is an array", name)

			return m.Value.Scalar
		}
	}

	t.Fatalf("member %q not found", name)

	return value.Primitive{}
}

func arrayByName(t *testing.T, p *plan.Plan, members []value.NamedValue, name string) []value.Primitive {
	t.Helper()

	for _, m := range members {
		if nameOf(t, p.Pool, m.Name) == name {
			require.True(t, m.Value.IsArray, "member %q is a scalar", name)

			return m.Value.Array
		}
	}

	t.Fatalf("member %q not found", name)

	return nil
}

func TestParser_FullStream(t *testing.T) {
	p := fullTrace(t)
	packet0, packet1 := fullStreamBytes(t)

	cr := &countingReader{r: bytes.NewReader(append(append([]byte{}, packet0...), packet1...))}
	parser := NewParser(p)

	rec, err := parser.Parse(cr)
	require.NoError(t, err)

	// Header.
	require.True(t, rec.Header.HasMagic)
	assert.Equal(t, uint32(0xC1FC1FC1), rec.Header.MagicNumber)
	require.True(t, rec.Header.HasTraceUUID)
	assert.Equal(t, fullTraceUUIDText, rec.Header.TraceUUID.String())
	assert.Equal(t, uint64(0), rec.Header.StreamID)
	assert.Equal(t, "default", nameOf(t, p.Pool, rec.Header.StreamName))
	require.True(t, rec.Header.HasClockName)
	assert.Equal(t, "default", nameOf(t, p.Pool, rec.Header.ClockName))
	require.NotNil(t, rec.Header.ClockType)
	assert.Equal(t, uint64(1_000_000_000), rec.Header.ClockType.Frequency)

	// Context.
	ctx := rec.Context
	assert.Equal(t, uint64(272*8), ctx.PacketSizeBits)
	require.True(t, ctx.HasBeginningTimestamp)
	assert.Equal(t, uint64(0), ctx.BeginningTimestamp)
	require.True(t, ctx.HasEndTimestamp)
	assert.Equal(t, uint64(4), ctx.EndTimestamp)
	require.True(t, ctx.HasEventsDiscarded)
	assert.Equal(t, uint64(0), ctx.EventsDiscarded)
	require.True(t, ctx.HasSequenceNumber)
	assert.Equal(t, uint64(0), ctx.SequenceNumber)
	require.Len(t, ctx.ExtraMembers, 1)
	assert.Equal(t, "pc", nameOf(t, p.Pool, ctx.ExtraMembers[0].Name))
	assert.Equal(t, uint64(22), ctx.ExtraMembers[0].Value.Scalar.UInt)

	// Events arrive in id order {4,3,2,1,0} with timestamps 0..4 and a
	// running common-context counter.
	require.Len(t, rec.Events, 5)
	wantIDs := []uint64{4, 3, 2, 1, 0}
	wantNames := []string{"echo", "delta", "charlie", "bravo", "alpha"}
	for i, ev := range rec.Events {
		assert.Equal(t, wantIDs[i], ev.ID, "event %d", i)
		assert.Equal(t, wantNames[i], nameOf(t, p.Pool, ev.Name), "event %d", i)
		assert.Equal(t, uint64(i), ev.Timestamp, "event %d", i)

		ercc := scalarByName(t, p, ev.CommonContext, "ercc")
		assert.Equal(t, uint64(100+i), ercc.UInt, "event %d", i)
	}

	// echo: string payload.
	version := scalarByName(t, p, rec.Events[0].Payload, "version")
	assert.Equal(t, value.KindString, version.Kind)
	assert.Equal(t, "1.0.0", version.Str)

	// delta: log level, specific context, display base.
	delta := rec.Events[1]
	require.True(t, delta.HasLogLevel)
	assert.Equal(t, value.LogLevelInfo, delta.LogLevel)
	sctx := scalarByName(t, p, delta.SpecificContext, "sctx")
	assert.Equal(t, uint64(7), sctx.UInt)
	du := scalarByName(t, p, delta.Payload, "u")
	assert.Equal(t, uint64(0xDEAD), du.UInt)
	assert.Equal(t, config.Hexadecimal, du.DisplayBase)
	ds := scalarByName(t, p, delta.Payload, "s")
	assert.Equal(t, value.KindSInt, ds.Kind)
	assert.Equal(t, int64(-5), ds.SInt)

	// charlie: enumeration label resolution.
	charlie := rec.Events[2]
	for _, tt := range []struct {
		member string
		v      int64
		label  string
		hasLbl bool
	}{
		{"ea", 0, "A", true},
		{"ec", 3, "C", true},
		{"state", 1, "RUNNING", true},
		{"toggle", -1, "on/off", true},
		{"unk", 9, "", false},
	} {
		got := scalarByName(t, p, charlie.Payload, tt.member)
		assert.Equal(t, value.KindEnum, got.Kind, tt.member)
		assert.Equal(t, tt.v, got.SInt, tt.member)
		assert.Equal(t, tt.hasLbl, got.EnumHasName, tt.member)
		assert.Equal(t, tt.label, got.EnumLabel, tt.member)
	}

	// bravo: floats.
	bravo := rec.Events[3]
	bf := scalarByName(t, p, bravo.Payload, "f")
	assert.Equal(t, value.KindF32, bf.Kind)
	assert.Equal(t, float32(1.1), bf.F32)
	bd := scalarByName(t, p, bravo.Payload, "d")
	assert.Equal(t, value.KindF64, bd.Kind)
	assert.Equal(t, 2.2, bd.F64)

	// alpha: static and dynamic arrays.
	alpha := rec.Events[4]
	arr := arrayByName(t, p, alpha.Payload, "arr")
	require.Len(t, arr, 4)
	for i, want := range []uint64{1, 2, 3, 4} {
		assert.Equal(t, want, arr[i].UInt)
	}
	names := arrayByName(t, p, alpha.Payload, "names")
	require.Len(t, names, 3)
	for i, want := range []string{"b0", "b1", "b2"} {
		assert.Equal(t, value.KindString, names[i].Kind)
		assert.Equal(t, want, names[i].Str)
	}

	// Cursor continuity across the packet boundary.
	assert.Equal(t, len(packet0), cr.n)

	// Packet 1.
	rec, err = parser.Parse(cr)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), rec.Context.BeginningTimestamp)
	assert.Equal(t, uint64(5), rec.Context.EndTimestamp)
	assert.Equal(t, uint64(1), rec.Context.SequenceNumber)
	assert.Equal(t, uint64(672), rec.Context.ContentSizeBits)
	require.Len(t, rec.Events, 1)
	assert.Equal(t, uint64(5), rec.Events[0].ID)
	assert.Equal(t, "shutdown", nameOf(t, p.Pool, rec.Events[0].Name))
	assert.Equal(t, uint64(5), rec.Events[0].Timestamp)

	assert.Equal(t, len(packet0)+len(packet1), cr.n)

	// End of stream.
	_, err = parser.Parse(cr)
	assert.ErrorIs(t, err, io.EOF)
}

func TestParser_MagicMismatchWarnsAndContinues(t *testing.T) {
	tr := fullTraceConfig(t)
	p, err := plan.Compile(tr)
	require.NoError(t, err)

	packet0, _ := fullStreamBytes(t)
	// Overwrite the magic with a wrong value.
	copy(packet0[0:4], []byte{0xEF, 0xBE, 0xAD, 0xDE})

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	parser := NewParser(p, WithLogger(logger))
	rec, err := parser.Parse(bytes.NewReader(packet0))
	require.NoError(t, err)

	require.True(t, rec.Header.HasMagic)
	assert.Equal(t, uint32(0xDEADBEEF), rec.Header.MagicNumber)
	assert.Len(t, rec.Events, 5)

	assert.Equal(t, 1, strings.Count(logBuf.String(), "packet header magic mismatch"))
	assert.NotContains(t, logBuf.String(), "UUID mismatch")
}

func TestParser_TraceUUIDMismatchWarnsAndContinues(t *testing.T) {
	p := fullTrace(t)
	packet0, _ := fullStreamBytes(t)
	// Corrupt one UUID byte (bytes 4..20 are the UUID).
	packet0[4] ^= 0xFF

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	parser := NewParser(p, WithLogger(logger))
	rec, err := parser.Parse(bytes.NewReader(packet0))
	require.NoError(t, err)

	require.True(t, rec.Header.HasTraceUUID)
	assert.NotEqual(t, fullTraceUUIDText, rec.Header.TraceUUID.String())
	assert.Equal(t, 1, strings.Count(logBuf.String(), "packet trace UUID mismatch"))
}

func TestParser_UndefinedStreamID(t *testing.T) {
	p := simpleTrace(t)
	stream := simpleStreamBytes(t)
	stream[0] = 9 // no such stream

	_, err := NewParser(p).Parse(bytes.NewReader(stream))
	assert.ErrorIs(t, err, errs.ErrUndefinedStreamID)
}

func TestParser_UndefinedEventID(t *testing.T) {
	p := simpleTrace(t)
	stream := simpleStreamBytes(t)
	// First event id lives at byte offset 12 (after sid, padding and
	// the two context size fields).
	stream[12] = 42

	_, err := NewParser(p).Parse(bytes.NewReader(stream))
	assert.ErrorIs(t, err, errs.ErrUndefinedEventID)
}

func TestParser_TruncatedMidPacketIsFatal(t *testing.T) {
	p := simpleTrace(t)
	stream := simpleStreamBytes(t)

	_, err := NewParser(p).Parse(bytes.NewReader(stream[:10]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParser_ZeroEventPacket(t *testing.T) {
	p := simpleTrace(t)

	// A packet whose content ends right after the context: no events.
	w := newWireWriter(binary.LittleEndian)
	w.u8(8, 0)
	totalIdx := w.reserveU32(32)
	contentIdx := w.reserveU32(32)
	w.patchU32(contentIdx, uint32(w.bits))
	w.patchU32(totalIdx, 128)
	w.padToBytes(16)

	rec, err := NewParser(p).Parse(bytes.NewReader(w.buf))
	require.NoError(t, err)
	assert.Empty(t, rec.Events)
	assert.Equal(t, uint64(96), rec.Context.ContentSizeBits)
}
