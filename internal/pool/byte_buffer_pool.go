// Package pool provides a reusable growable byte buffer for the
// stream reader's string-scratch allocations, so decoding many
// packets in a loop does not allocate a fresh buffer per
// null-terminated string field.
package pool

import "sync"

// StringScratchDefaultSize is the initial capacity handed out for a
// string-read scratch buffer; most barectf identifier/version strings
// are well under this.
const StringScratchDefaultSize = 64

// ByteBuffer is a growable, reusable byte slice.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the given initial
// capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, defaultSize)}
}

// Bytes returns the buffer's current contents.
func (bb *ByteBuffer) Bytes() []byte { return bb.B }

// Reset empties the buffer while retaining its backing array.
func (bb *ByteBuffer) Reset() { bb.B = bb.B[:0] }

// Len returns the number of bytes currently held.
func (bb *ByteBuffer) Len() int { return len(bb.B) }

// AppendByte appends one byte, growing the backing array if needed.
func (bb *ByteBuffer) AppendByte(c byte) {
	bb.B = append(bb.B, c)
}

// ByteBufferPool is a sync.Pool of ByteBuffers.
type ByteBufferPool struct {
	pool sync.Pool
}

// NewByteBufferPool creates a pool whose buffers start at defaultSize.
func NewByteBufferPool(defaultSize int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any { return NewByteBuffer(defaultSize) },
		},
	}
}

// Get retrieves a ByteBuffer from the pool, already reset.
func (p *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := p.pool.Get().(*ByteBuffer)

	return bb
}

// Put returns a ByteBuffer to the pool for reuse.
func (p *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	bb.Reset()
	p.pool.Put(bb)
}

var stringScratchPool = NewByteBufferPool(StringScratchDefaultSize)

// GetStringScratch retrieves a reset ByteBuffer from the default
// string-scratch pool.
func GetStringScratch() *ByteBuffer { return stringScratchPool.Get() }

// PutStringScratch returns a ByteBuffer to the default string-scratch
// pool.
func PutStringScratch(bb *ByteBuffer) { stringScratchPool.Put(bb) }
