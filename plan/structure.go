package plan

import (
	"fmt"

	"github.com/barectf-tools/ctfdecode/bitio"
	"github.com/barectf-tools/ctfdecode/config"
	"github.com/barectf-tools/ctfdecode/errs"
	"github.com/barectf-tools/ctfdecode/intern"
	"github.com/barectf-tools/ctfdecode/value"
)

// MemberPlan is one compiled structure member: its interned name, its
// decode shape, and the post-processing (display base, enumeration
// label lookup) applied to a scalar result. Arrays are read but never
// post-processed; see Parse.
type MemberPlan struct {
	Name           intern.Handle
	Field          FieldParser
	DisplayBase    config.PreferredDisplayBase
	HasDisplayBase bool
	EnumMapping    config.EnumMapping
}

// Parse reads the member's value and returns it paired with its
// interned name.
func (m MemberPlan) Parse(r *bitio.StreamReader) (value.NamedValue, error) {
	v, err := m.Field.Parse(r)
	if err != nil {
		return value.NamedValue{}, err
	}

	if !v.IsArray {
		v.Scalar = m.postProcessScalar(v.Scalar)
	}

	return value.NamedValue{Name: m.Name, Value: v}, nil
}

func (m MemberPlan) postProcessScalar(p value.Primitive) value.Primitive {
	switch p.Kind {
	case value.KindUInt:
		if m.HasDisplayBase {
			p.DisplayBase = m.DisplayBase
		}
	case value.KindSInt:
		if m.HasDisplayBase {
			p.DisplayBase = m.DisplayBase
		}
	default:
		return p
	}

	if m.EnumMapping == nil {
		return p
	}

	// Enumeration values are always carried as signed int64 regardless
	// of source signedness: an unsigned value becomes a straight
	// bit-pattern reinterpretation.
	var signed int64
	if p.Kind == value.KindUInt {
		signed = int64(p.UInt)
	} else {
		signed = p.SInt
	}

	label, ok := m.EnumMapping.Resolve(signed)

	return value.EnumValue(signed, p.DisplayBase, label, ok)
}

// StructurePlan is a compiled structure: its alignment (max of its
// members', or 8 if empty) and its members in declaration order.
type StructurePlan struct {
	Alignment bitio.Size
	Members   []MemberPlan
}

// ReadMembers aligns to the structure's alignment, then reads each
// member in order.
func (s *StructurePlan) ReadMembers(r *bitio.StreamReader) ([]value.NamedValue, error) {
	if s == nil {
		return nil, nil
	}

	if err := r.AlignTo(s.Alignment); err != nil {
		return nil, err
	}

	out := make([]value.NamedValue, 0, len(s.Members))
	for _, m := range s.Members {
		nv, err := m.Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, nv)
	}

	return out, nil
}

// buildMemberPlan compiles one config.StructureMember into a MemberPlan,
// wrapping any field-type error with the member's dotted schema path.
func buildMemberPlan(pool *intern.Pool, path string, m config.StructureMember) (MemberPlan, error) {
	field, err := buildFieldParser(m.Type)
	if err != nil {
		return MemberPlan{}, fmt.Errorf("%s.%s: %w", path, m.Name, err)
	}

	name, err := pool.Intern(m.Name)
	if err != nil {
		return MemberPlan{}, fmt.Errorf("%s.%s: %w", path, m.Name, err)
	}

	mp := MemberPlan{Name: name, Field: field}
	if base, ok := config.PreferredDisplayBaseOf(m.Type); ok {
		mp.DisplayBase = base
		mp.HasDisplayBase = true
	}

	switch t := m.Type.(type) {
	case *config.UnsignedEnumerationFieldType:
		mp.EnumMapping = t.Mappings
	case *config.SignedEnumerationFieldType:
		mp.EnumMapping = t.Mappings
	}

	return mp, nil
}

// buildStructurePlan compiles an optional config.StructureFieldType.
// It returns (nil, nil) for a nil input, matching the schema's
// "Option<Structure>" idiom for optional common-context, specific-
// context, and payload structures.
func buildStructurePlan(pool *intern.Pool, path string, s *config.StructureFieldType) (*StructurePlan, error) {
	if s == nil {
		return nil, nil
	}

	align, ok := bitio.SizeFromBits(s.AlignBits())
	if !ok {
		return nil, fmt.Errorf("%s: alignment %d: %w", path, s.AlignBits(), errs.ErrUnsupportedAlignment)
	}

	members := make([]MemberPlan, 0, len(s.Members))
	for _, m := range s.Members {
		mp, err := buildMemberPlan(pool, path, m)
		if err != nil {
			return nil, err
		}
		members = append(members, mp)
	}

	return &StructurePlan{Alignment: align, Members: members}, nil
}
