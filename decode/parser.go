package decode

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/barectf-tools/ctfdecode/bitio"
	"github.com/barectf-tools/ctfdecode/endian"
	"github.com/barectf-tools/ctfdecode/plan"
	"github.com/barectf-tools/ctfdecode/value"
)

// Option configures a Parser or Incremental decoder.
type Option func(*options)

type options struct {
	log *slog.Logger
}

// WithLogger overrides the slog.Logger used for non-fatal warnings
// (magic/trace-UUID mismatches). The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(opts []Option) options {
	o := options{log: slog.Default()}
	for _, f := range opts {
		f(&o)
	}

	return o
}

// Parser is a blocking, one-packet-at-a-time decoder built from a
// compiled Plan. It is stateless between calls to Parse, so one Parser
// can be shared across goroutines decoding independent readers.
type Parser struct {
	plan *plan.Plan
	opts options
}

// NewParser builds a Parser from a compiled Plan.
func NewParser(p *plan.Plan, opts ...Option) *Parser {
	return &Parser{plan: p, opts: newOptions(opts)}
}

// Parse reads exactly one packet from r: header, packet context, then
// event records up to the packet context's declared content size,
// followed by discarding the packet's trailing padding. An io.EOF
// returned with zero bytes consumed of the header signals a clean end
// of stream; any other error, including io.ErrUnexpectedEOF
// mid-packet, is fatal.
func (p *Parser) Parse(r io.Reader) (*value.PacketRecord, error) {
	order := endian.EngineFor(p.plan.ByteOrder)
	sr := bitio.NewStreamReader(r, order)

	header, stream, err := parseHeader(p.plan, sr, p.opts.log)
	if err != nil {
		return nil, err
	}

	ctx, err := stream.PacketContext.ReadContext(sr)
	if err != nil {
		return nil, err
	}

	events, err := parseEvents(stream, ctx, sr)
	if err != nil {
		return nil, err
	}

	if err := discardPadding(r, ctx); err != nil {
		return nil, err
	}

	return &value.PacketRecord{Header: header, Context: ctx, Events: events}, nil
}

// discardPadding consumes the packet's trailing padding bytes directly
// from r: (packet size - content size)/8 bytes. It reads from r rather
// than through a StreamReader since the bytes are about to be dropped
// and don't need cursor accounting.
func discardPadding(r io.Reader, ctx value.Context) error {
	if ctx.PacketSizeBits < ctx.ContentSizeBits {
		return fmt.Errorf("decode: packet size %d bits is smaller than content size %d bits",
			ctx.PacketSizeBits, ctx.ContentSizeBits)
	}

	paddingBits := ctx.PacketSizeBits - ctx.ContentSizeBits
	if paddingBits%8 != 0 {
		return fmt.Errorf("decode: packet padding %d bits is not byte-aligned", paddingBits)
	}

	paddingBytes := int64(paddingBits / 8)
	if paddingBytes == 0 {
		return nil
	}

	if _, err := io.CopyN(io.Discard, r, paddingBytes); err != nil {
		return err
	}

	return nil
}
