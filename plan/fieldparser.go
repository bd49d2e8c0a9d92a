// Package plan compiles a validated config.TraceType into an immutable
// Plan: per-stream packet-context and event layouts, with precomputed
// wire-size cursors the incremental decoder consults before it commits
// to a stage. Every field parser in a Plan is a closed, allocation-free
// variant rather than an interface value; the shape is entirely fixed
// once a Plan is built, so there is nothing left to dispatch
// dynamically at decode time.
package plan

import (
	"fmt"

	"github.com/barectf-tools/ctfdecode/bitio"
	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/errs"
	"github.com/barectf-tools/ctfdecode/value"
)

// PrimitiveKind is the closed set of scalar wire representations a
// MemberPlan's field ultimately bottoms out at. Enumerations decode
// identically to their backing integer kind; the enum/display-base
// post-processing happens once at the MemberPlan level (see
// MemberPlan.Parse), not here, keeping "read the bits" separate from
// "attach a label".
type PrimitiveKind uint8

const (
	PrimUInt PrimitiveKind = iota
	PrimSInt
	PrimString
	PrimReal
)

// PrimitiveParser reads one scalar value at a fixed (size, alignment).
type PrimitiveParser struct {
	Kind PrimitiveKind
	Desc bitio.FieldDesc
}

// Parse aligns to Desc.Alignment and reads exactly Desc.Size bits,
// widening integers to their 64-bit carrier.
func (p PrimitiveParser) Parse(r *bitio.StreamReader) (value.Primitive, error) {
	switch p.Kind {
	case PrimUInt:
		v, err := readUnsigned(r, p.Desc)
		if err != nil {
			return value.Primitive{}, err
		}

		return value.UIntValue(v, config.Decimal), nil
	case PrimSInt:
		v, err := readSigned(r, p.Desc)
		if err != nil {
			return value.Primitive{}, err
		}

		return value.SIntValue(v, config.Decimal), nil
	case PrimString:
		s, err := r.ReadString()
		if err != nil {
			return value.Primitive{}, err
		}

		return value.StringValue(s), nil
	case PrimReal:
		switch p.Desc.Size {
		case bitio.Bits32:
			f, err := r.F32(p.Desc.Alignment)
			if err != nil {
				return value.Primitive{}, err
			}

			return value.F32Value(f), nil
		case bitio.Bits64:
			f, err := r.F64(p.Desc.Alignment)
			if err != nil {
				return value.Primitive{}, err
			}

			return value.F64Value(f), nil
		default:
			return value.Primitive{}, fmt.Errorf("plan: real field size %d: %w", p.Desc.Size, errs.ErrInvalidFloatSize)
		}
	default:
		return value.Primitive{}, fmt.Errorf("plan: unhandled primitive kind %d", p.Kind)
	}
}

func readUnsigned(r *bitio.StreamReader, d bitio.FieldDesc) (uint64, error) {
	switch d.Size {
	case bitio.Bits8:
		v, err := r.U8(d.Alignment)

		return uint64(v), err
	case bitio.Bits16:
		v, err := r.U16(d.Alignment)

		return uint64(v), err
	case bitio.Bits32:
		v, err := r.U32(d.Alignment)

		return uint64(v), err
	case bitio.Bits64:
		return r.U64(d.Alignment)
	default:
		return 0, fmt.Errorf("plan: unsigned field size %d: %w", d.Size, errs.ErrUnsupportedFieldType)
	}
}

func readSigned(r *bitio.StreamReader, d bitio.FieldDesc) (int64, error) {
	switch d.Size {
	case bitio.Bits8:
		v, err := r.I8(d.Alignment)

		return int64(v), err
	case bitio.Bits16:
		v, err := r.I16(d.Alignment)

		return int64(v), err
	case bitio.Bits32:
		v, err := r.I32(d.Alignment)

		return int64(v), err
	case bitio.Bits64:
		return r.I64(d.Alignment)
	default:
		return 0, fmt.Errorf("plan: signed field size %d: %w", d.Size, errs.ErrUnsupportedFieldType)
	}
}

// FieldParserKind is the closed set of structure-member shapes: a bare
// scalar, a fixed-length array, or a length-prefixed array. Nested
// structures and arrays-of-structures never appear in this wire format
// and are rejected at Compile time before a FieldParser is ever built
// for them.
type FieldParserKind uint8

const (
	FieldPrimitive FieldParserKind = iota
	FieldStaticArray
	FieldDynamicArray
)

// FieldParser is one structure member's decode shape.
type FieldParser struct {
	Kind    FieldParserKind
	Element PrimitiveParser
	Length  int // meaningful only for FieldStaticArray
}

// Desc reports the (size, alignment) pair that governs alignment for
// this member: for an array this is its element's, since the array's
// own size isn't statically fixed (dynamic) or isn't byte-addressable
// as a single read (static, length * element size).
func (f FieldParser) Desc() bitio.FieldDesc { return f.Element.Desc }

// Parse reads one structure member, returning a scalar or array
// FieldValue depending on Kind.
func (f FieldParser) Parse(r *bitio.StreamReader) (value.FieldValue, error) {
	switch f.Kind {
	case FieldPrimitive:
		v, err := f.Element.Parse(r)
		if err != nil {
			return value.FieldValue{}, err
		}

		return value.ScalarField(v), nil
	case FieldStaticArray:
		if err := r.AlignTo(f.Element.Desc.Alignment); err != nil {
			return value.FieldValue{}, err
		}
		arr := make([]value.Primitive, f.Length)
		for i := range arr {
			v, err := f.Element.Parse(r)
			if err != nil {
				return value.FieldValue{}, err
			}
			arr[i] = v
		}

		return value.ArrayField(arr), nil
	case FieldDynamicArray:
		// The length prefix is always a byte-aligned u32, independent
		// of the element's own alignment.
		length, err := r.U32(bitio.Bits8)
		if err != nil {
			return value.FieldValue{}, err
		}
		if err := r.AlignTo(f.Element.Desc.Alignment); err != nil {
			return value.FieldValue{}, err
		}
		arr := make([]value.Primitive, length)
		for i := range arr {
			v, err := f.Element.Parse(r)
			if err != nil {
				return value.FieldValue{}, err
			}
			arr[i] = v
		}

		return value.ArrayField(arr), nil
	default:
		return value.FieldValue{}, fmt.Errorf("plan: unhandled field parser kind %d", f.Kind)
	}
}

// descOf validates ft and resolves its (size, alignment) into a
// bitio.FieldDesc. It must only be called with a primitive field type:
// array field types report a Bits() that isn't one of {8,16,32,64}
// (e.g. length * element size), and structures report 0, neither of
// which describes a single read.
func descOf(ft config.FieldType) (bitio.FieldDesc, error) {
	if err := config.Validate(ft); err != nil {
		return bitio.FieldDesc{}, err
	}

	size, ok := bitio.SizeFromBits(ft.Bits())
	if !ok {
		return bitio.FieldDesc{}, errs.ErrUnsupportedFieldType
	}
	align, ok := bitio.SizeFromBits(ft.AlignBits())
	if !ok {
		return bitio.FieldDesc{}, errs.ErrUnsupportedAlignment
	}

	return bitio.FieldDesc{Size: size, Alignment: align}, nil
}

// buildPrimitiveParser compiles a config.PrimitiveFieldType into a
// PrimitiveParser. Enumeration field types decode exactly like their
// backing integer kind; the caller (buildMemberPlan) is responsible for
// attaching the enumeration mapping separately.
func buildPrimitiveParser(ft config.PrimitiveFieldType) (PrimitiveParser, error) {
	switch t := ft.(type) {
	case *config.UnsignedIntegerFieldType:
		d, err := descOf(t)

		return PrimitiveParser{Kind: PrimUInt, Desc: d}, err
	case *config.SignedIntegerFieldType:
		d, err := descOf(t)

		return PrimitiveParser{Kind: PrimSInt, Desc: d}, err
	case *config.RealFieldType:
		d, err := descOf(t)

		return PrimitiveParser{Kind: PrimReal, Desc: d}, err
	case *config.StringFieldType:
		d, err := descOf(t)

		return PrimitiveParser{Kind: PrimString, Desc: d}, err
	case *config.UnsignedEnumerationFieldType:
		d, err := descOf(t)

		return PrimitiveParser{Kind: PrimUInt, Desc: d}, err
	case *config.SignedEnumerationFieldType:
		d, err := descOf(t)

		return PrimitiveParser{Kind: PrimSInt, Desc: d}, err
	default:
		return PrimitiveParser{}, fmt.Errorf("plan: %T: %w", ft, errs.ErrUnsupportedFieldType)
	}
}

// requireUInt compiles a required unsigned-integer feature field
// (stream id, event type id, event timestamp, packet total/content
// size; barectf's effective configuration always concretely populates
// these), reporting a nil pointer as a construction error rather than
// panicking.
func requireUInt(ft *config.UnsignedIntegerFieldType, path string) (PrimitiveParser, error) {
	if ft == nil {
		return PrimitiveParser{}, fmt.Errorf("%s: missing required field type: %w", path, errs.ErrUnsupportedFieldType)
	}

	p, err := buildPrimitiveParser(ft)
	if err != nil {
		return PrimitiveParser{}, fmt.Errorf("%s: %w", path, err)
	}

	return p, nil
}

// buildFieldParser compiles any structure-member FieldType, including
// static/dynamic arrays, into a FieldParser.
func buildFieldParser(ft config.FieldType) (FieldParser, error) {
	switch t := ft.(type) {
	case *config.StaticArrayFieldType:
		elem, err := buildPrimitiveParser(t.Element)
		if err != nil {
			return FieldParser{}, err
		}

		return FieldParser{Kind: FieldStaticArray, Element: elem, Length: t.Length}, nil
	case *config.DynamicArrayFieldType:
		elem, err := buildPrimitiveParser(t.Element)
		if err != nil {
			return FieldParser{}, err
		}

		return FieldParser{Kind: FieldDynamicArray, Element: elem}, nil
	case *config.StructureFieldType:
		return FieldParser{}, fmt.Errorf("plan: nested structure fields are unsupported: %w", errs.ErrUnsupportedFieldType)
	case config.PrimitiveFieldType:
		elem, err := buildPrimitiveParser(t)
		if err != nil {
			return FieldParser{}, err
		}

		return FieldParser{Kind: FieldPrimitive, Element: elem}, nil
	default:
		return FieldParser{}, fmt.Errorf("plan: %T: %w", ft, errs.ErrUnsupportedFieldType)
	}
}
