package config

// StructureMember is one named field within a structure (packet header,
// packet context, or event record payload). Members decode in
// declaration order; order is the only thing that determines their
// byte offsets, since earlier variable-size members (dynamic arrays,
// strings) make fixed offsets impossible to precompute.
type StructureMember struct {
	Name string
	Type FieldType
}

// StructureFieldType is an ordered sequence of named members. In
// practice every member's Type is a PrimitiveFieldType or an array,
// but the type system doesn't need to enforce that here: the plan
// package's compiler rejects a structure member whose Type is itself
// a *StructureFieldType.
type StructureFieldType struct {
	Members []StructureMember
}

func (*StructureFieldType) fieldType() {}

// Bits reports 0: a structure's total size depends on member
// alignment padding and isn't knowable without walking members in
// order, which is the layout planner's job, not the schema's.
func (t *StructureFieldType) Bits() int { return 0 }

// AlignBits reports a structure's alignment as the maximum alignment
// of its members, or 8 if it has none. This mirrors CTF's structure
// alignment rule: a structure never has a stricter alignment
// requirement than the strictest field it contains.
func (t *StructureFieldType) AlignBits() int {
	align := 8
	for _, m := range t.Members {
		if a := m.Type.AlignBits(); a > align {
			align = a
		}
	}

	return align
}
