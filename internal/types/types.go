// Package types provides the interned type representation shared by HIR,
// SSA and the backend. TypeIDs are stable within one compilation unit.
package types

// TypeID identifies an interned type.
type TypeID uint32

// NoTypeID is the invalid sentinel.
const NoTypeID TypeID = 0

// Kind enumerates type constructors.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindUnit is the empty result type.
	KindUnit
	KindBool
	// KindInt is a signed integer of Width bits.
	KindInt
	// KindUint is an unsigned integer of Width bits.
	KindUint
	// KindAddress is a 32-byte account/contract address.
	KindAddress
	KindString
	KindBytes
	KindStruct
	KindTuple
	// KindRef is a capability-tagged reference (shared or exclusive).
	// Never written by surface programs; produced by the ownership pass.
	KindRef
)

// Width enumerates integer bit widths.
type Width uint8

const (
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// RefCap distinguishes reference capabilities.
type RefCap uint8

const (
	// CapShared permits reads; many may coexist.
	CapShared RefCap = iota
	// CapExclusive permits writes; at most one may be live.
	CapExclusive
)

// Type is a structural type descriptor. Aggregate members live in side
// tables on the Interner, keyed by Extra.
type Type struct {
	Kind  Kind
	Width Width  // KindInt/KindUint only
	Cap   RefCap // KindRef only
	Elem  TypeID // KindRef referent
	Extra uint32 // StructInfo / TupleInfo index
}

// StructField is one named struct member.
type StructField struct {
	Name string
	Type TypeID
}

// StructInfo stores the members of an interned struct type.
type StructInfo struct {
	Name   string
	Fields []StructField
}

// TupleInfo stores the element types of an interned tuple type.
type TupleInfo struct {
	Elems []TypeID
}

// MakeInt returns a signed integer descriptor.
func MakeInt(w Width) Type {
	return Type{Kind: KindInt, Width: w}
}

// MakeUint returns an unsigned integer descriptor.
func MakeUint(w Width) Type {
	return Type{Kind: KindUint, Width: w}
}

// MakeRef returns a reference descriptor with the given capability.
func MakeRef(cap RefCap, elem TypeID) Type {
	return Type{Kind: KindRef, Cap: cap, Elem: elem}
}
