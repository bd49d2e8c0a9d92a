// Package endian adapts Go's standard encoding/binary byte orders to
// the trace-native byte order named in a schema's configuration.
package endian

import (
	"encoding/binary"

	"github.com/barectf-tools/ctfdecode/config"
)

// Engine is the read side of encoding/binary.ByteOrder; CTF decoding
// never appends, only reads, so the stream reader needs nothing more.
type Engine = binary.ByteOrder

// EngineFor returns the fixed binary.ByteOrder a stream reader should
// use for an entire trace, per its native-byte-order schema field.
// Every multi-byte field in that trace (integers, reals, the magic
// number, the dynamic-array length prefix) is read with this one
// order; CTF has no per-field endianness.
func EngineFor(order config.NativeByteOrder) Engine {
	if order == config.BigEndian {
		return binary.BigEndian
	}

	return binary.LittleEndian
}
