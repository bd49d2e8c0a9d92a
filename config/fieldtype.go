package config

import (
	"fmt"

	"github.com/barectf-tools/ctfdecode/errs"
)

// FieldType is the closed set of field types a structure member, packet
// header member, or packet context member can have. Every variant below
// implements it, and no caller outside this package can add a new one,
// because the interface carries an unexported method.
//
// Bits and AlignBits are both restricted to {8,16,32,64}; anything else
// is rejected when the plan package compiles a TraceType. barectf's
// generated tracers never emit bit-packed or sub-byte-aligned fields.
type FieldType interface {
	// Bits reports the field's size in bits.
	Bits() int
	// AlignBits reports the field's required alignment in bits.
	AlignBits() int

	fieldType()
}

// PrimitiveFieldType is the subset of FieldType that may legally appear
// as an array element. Structures and arrays deliberately do not
// implement it, which makes "array of array" and "array of structure"
// unrepresentable rather than merely unvalidated.
type PrimitiveFieldType interface {
	FieldType

	primitiveFieldType()
}

// UnsignedIntegerFieldType is an unsigned integer field, optionally
// carrying a display-base rendering hint.
type UnsignedIntegerFieldType struct {
	Size          int
	Alignment     int
	PreferredBase PreferredDisplayBase
}

func (t *UnsignedIntegerFieldType) Bits() int { return t.Size }
func (t *UnsignedIntegerFieldType) AlignBits() int { return t.Alignment }
func (*UnsignedIntegerFieldType) fieldType() {}
func (*UnsignedIntegerFieldType) primitiveFieldType() {}

// SignedIntegerFieldType is a two's-complement signed integer field.
type SignedIntegerFieldType struct {
	Size          int
	Alignment     int
	PreferredBase PreferredDisplayBase
}

func (t *SignedIntegerFieldType) Bits() int { return t.Size }
func (t *SignedIntegerFieldType) AlignBits() int { return t.Alignment }
func (*SignedIntegerFieldType) fieldType() {}
func (*SignedIntegerFieldType) primitiveFieldType() {}

// RealFieldType is an IEEE-754 binary32 or binary64 floating point
// field. Size must be 32 or 64; anything else is
// errs.ErrInvalidFloatSize at plan-compile time.
type RealFieldType struct {
	Size      int
	Alignment int
}

func (t *RealFieldType) Bits() int { return t.Size }
func (t *RealFieldType) AlignBits() int { return t.Alignment }
func (*RealFieldType) fieldType() {}
func (*RealFieldType) primitiveFieldType() {}

// StringFieldType is a null-terminated, byte-aligned UTF-8 string field.
// Its actual length isn't known until decode time (it's read byte-by-byte
// until a NUL is found), but it still occupies a nominal 8-bit size and
// 8-bit alignment for wire-layout-accounting purposes, e.g. when the
// planner computes a packet-context's structure alignment across its
// members.
type StringFieldType struct{}

func (*StringFieldType) Bits() int { return 8 }
func (*StringFieldType) AlignBits() int { return 8 }
func (*StringFieldType) fieldType() {}
func (*StringFieldType) primitiveFieldType() {}

// EnumValueSpec names one label for either a single value or an
// inclusive range of values, always widened to a signed 64-bit range
// regardless of the enclosing enumeration's signedness.
type EnumValueSpec struct {
	Label string
	Lo    int64
	Hi    int64 // Hi == Lo for a point value.
}

// EnumMapping is an ordered list of value specs. It is a slice, not a
// map, because label lookup is first-match-in-declared-order; a map
// would discard that order and silently change which label a
// straddling range resolves to.
type EnumMapping []EnumValueSpec

// Resolve returns the label for the first value spec whose [Lo,Hi]
// range contains v, in declared order. ok is false when no mapping
// matches.
func (m EnumMapping) Resolve(v int64) (label string, ok bool) {
	for _, spec := range m {
		if v >= spec.Lo && v <= spec.Hi {
			return spec.Label, true
		}
	}

	return "", false
}

// UnsignedEnumerationFieldType is an enumeration backed by an unsigned
// integer on the wire, whose value is widened to int64 for label
// resolution.
type UnsignedEnumerationFieldType struct {
	Size          int
	Alignment     int
	PreferredBase PreferredDisplayBase
	Mappings      EnumMapping
}

func (t *UnsignedEnumerationFieldType) Bits() int { return t.Size }
func (t *UnsignedEnumerationFieldType) AlignBits() int { return t.Alignment }
func (*UnsignedEnumerationFieldType) fieldType() {}
func (*UnsignedEnumerationFieldType) primitiveFieldType() {}

// SignedEnumerationFieldType is an enumeration backed by a signed
// integer on the wire.
type SignedEnumerationFieldType struct {
	Size          int
	Alignment     int
	PreferredBase PreferredDisplayBase
	Mappings      EnumMapping
}

func (t *SignedEnumerationFieldType) Bits() int { return t.Size }
func (t *SignedEnumerationFieldType) AlignBits() int { return t.Alignment }
func (*SignedEnumerationFieldType) fieldType() {}
func (*SignedEnumerationFieldType) primitiveFieldType() {}

// StaticArrayFieldType is a fixed-length array of a primitive element
// type. Its own alignment is its element's alignment; its bit size is
// Length * Element.Bits(), which for a StringFieldType element is only
// the nominal 8-bit-per-element footprint, since string lengths aren't
// static.
type StaticArrayFieldType struct {
	Length  int
	Element PrimitiveFieldType
}

func (t *StaticArrayFieldType) Bits() int { return t.Length * t.Element.Bits() }
func (t *StaticArrayFieldType) AlignBits() int { return t.Element.AlignBits() }
func (*StaticArrayFieldType) fieldType() {}

// DynamicArrayFieldType is a length-prefixed array of a primitive
// element type. The length prefix is always a byte-aligned u32 read
// before the cursor aligns to the element type's own alignment;
// DynamicArrayFieldType itself reports the element's alignment, since
// that's what governs the array body.
//
// It deliberately does not implement primitiveFieldType: an array of
// arrays is not a representable FieldType.
type DynamicArrayFieldType struct {
	Element PrimitiveFieldType
}

func (t *DynamicArrayFieldType) Bits() int { return 0 }
func (t *DynamicArrayFieldType) AlignBits() int { return t.Element.AlignBits() }
func (*DynamicArrayFieldType) fieldType() {}

// PreferredDisplayBaseOf returns the display-base hint carried by ft,
// for field types that carry one. ok is false for field types with no
// such hint (real, string, array).
func PreferredDisplayBaseOf(ft FieldType) (base PreferredDisplayBase, ok bool) {
	switch t := ft.(type) {
	case *UnsignedIntegerFieldType:
		return t.PreferredBase, true
	case *SignedIntegerFieldType:
		return t.PreferredBase, true
	case *UnsignedEnumerationFieldType:
		return t.PreferredBase, true
	case *SignedEnumerationFieldType:
		return t.PreferredBase, true
	default:
		return 0, false
	}
}

// validSizeAlign reports whether size/align are both members of the
// wire format's supported set {8,16,32,64}.
func validSizeAlign(n int) bool {
	switch n {
	case 8, 16, 32, 64:
		return true
	default:
		return false
	}
}

// Validate checks that ft's size and alignment fall within the
// supported set. For a static or dynamic array it validates the
// element type instead.
func Validate(ft FieldType) error {
	switch t := ft.(type) {
	case *StringFieldType:
		return nil
	case *RealFieldType:
		if t.Size != 32 && t.Size != 64 {
			return fmt.Errorf("config: real field size %d: %w", t.Size, errs.ErrInvalidFloatSize)
		}
		if !validSizeAlign(t.Alignment) {
			return fmt.Errorf("config: real field alignment %d: %w", t.Alignment, errs.ErrUnsupportedAlignment)
		}
	case *StaticArrayFieldType:
		return Validate(t.Element)
	case *DynamicArrayFieldType:
		return Validate(t.Element)
	default:
		if !validSizeAlign(ft.Bits()) {
			return fmt.Errorf("config: field size %d: %w", ft.Bits(), errs.ErrUnsupportedFieldType)
		}
		if !validSizeAlign(ft.AlignBits()) {
			return fmt.Errorf("config: field alignment %d: %w", ft.AlignBits(), errs.ErrUnsupportedAlignment)
		}
	}

	return nil
}
