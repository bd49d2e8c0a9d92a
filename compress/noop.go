package compress

// NoOpCompressor is the Codec for format.CompressionNone: a capture
// container tagged None carries its trace payload uncompressed.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a pass-through codec.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns data as-is. The result shares the input's backing
// array, so callers must not mutate the input while using it.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data as-is; see Compress for aliasing.
func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
