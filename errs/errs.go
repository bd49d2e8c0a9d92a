// Package errs defines the sentinel errors shared across the decoder
// packages. Callers use errors.Is against these sentinels; the concrete
// errors returned usually wrap one of them with contextual detail
// (offending schema path, stream/event id, field width).
package errs

import "errors"

// Construction-time errors. These can only be produced while building a
// Plan from a config.TraceType; they never occur on the decode hot path.
var (
	// ErrUnsupportedFieldType is returned when a field's size isn't one
	// of {8,16,32,64} bits, a required feature field type is missing, or
	// a field type isn't allowed where it appears (a nested structure).
	ErrUnsupportedFieldType = errors.New("unsupported field type")
	// ErrUnsupportedAlignment is returned when a field's alignment, or a
	// structure's computed alignment, isn't one of {8,16,32,64} bits.
	ErrUnsupportedAlignment = errors.New("unsupported alignment")
	// ErrInvalidFloatSize is returned when a real field type's size is
	// neither 32 nor 64 bits.
	ErrInvalidFloatSize = errors.New("invalid float size")
	// ErrUnsupportedTimestampFieldType is returned by rollover.NewTrackingInstant
	// when the timestamp field width isn't one of {8,16,32,64} bits.
	ErrUnsupportedTimestampFieldType = errors.New("unsupported timestamp field type")
	// ErrNameHashCollision is returned by intern.Pool.Intern when two
	// distinct strings hash to the same handle. Names interned by this
	// module come from the schema, a closed and small set fixed at
	// plan-construction time, so this should never fire in practice.
	ErrNameHashCollision = errors.New("interned name hash collision")
)

// Decode-time errors. UndefinedStreamId/UndefinedEventId are fatal to the
// packet being decoded; I/O errors (including io.EOF/io.ErrUnexpectedEOF)
// propagate from the underlying reader unwrapped.
var (
	// ErrUndefinedStreamID is returned when a packet header names a stream
	// id with no corresponding entry in the Plan.
	ErrUndefinedStreamID = errors.New("undefined stream id")
	// ErrUndefinedEventID is returned when an event header names an event
	// id with no corresponding entry in the stream's Plan.
	ErrUndefinedEventID = errors.New("undefined event id")
)

// Capture-container errors.
var (
	// ErrUnknownCaptureCodec is returned by capture.Open when a tagged
	// container's compression type has no built-in codec, and by
	// capture.Pack for such a compression type. Input whose prefix
	// matches no known magic is passed through, not rejected.
	ErrUnknownCaptureCodec = errors.New("unrecognized capture container codec")
)
