package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Unit    TypeID
	Bool    TypeID
	I32     TypeID
	I64     TypeID
	I128    TypeID
	U8      TypeID
	U32     TypeID
	U64     TypeID
	U128    TypeID
	Address TypeID
	String  TypeID
	Bytes   TypeID
}

type typeKey struct {
	kind  Kind
	width Width
	cap   RefCap
	elem  TypeID
	extra uint32
}

// Interner provides stable TypeIDs by hashing structural descriptors.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins
	structs  []StructInfo
	tuples   []TupleInfo
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[typeKey]TypeID, 64),
	}
	in.structs = append(in.structs, StructInfo{}) // reserve 0 as invalid sentinel
	in.tuples = append(in.tuples, TupleInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.I32 = in.Intern(MakeInt(Width32))
	in.builtins.I64 = in.Intern(MakeInt(Width64))
	in.builtins.I128 = in.Intern(MakeInt(Width128))
	in.builtins.U8 = in.Intern(MakeUint(Width8))
	in.builtins.U32 = in.Intern(MakeUint(Width32))
	in.builtins.U64 = in.Intern(MakeUint(Width64))
	in.builtins.U128 = in.Intern(MakeUint(Width128))
	in.builtins.Address = in.Intern(Type{Kind: KindAddress})
	in.builtins.String = in.Intern(Type{Kind: KindString})
	in.builtins.Bytes = in.Intern(Type{Kind: KindBytes})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey{t.Kind, t.Width, t.Cap, t.Elem, t.Extra}
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[typeKey{t.Kind, t.Width, t.Cap, t.Elem, t.Extra}] = id
	return id
}

// InternStruct registers a struct descriptor and returns its TypeID.
func (in *Interner) InternStruct(info StructInfo) TypeID {
	extra, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("len(structs) overflow: %w", err))
	}
	in.structs = append(in.structs, info)
	return in.internRaw(Type{Kind: KindStruct, Extra: extra})
}

// InternTuple registers a tuple descriptor and returns its TypeID.
func (in *Interner) InternTuple(elems ...TypeID) TypeID {
	extra, err := safecast.Conv[uint32](len(in.tuples))
	if err != nil {
		panic(fmt.Errorf("len(tuples) overflow: %w", err))
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: elems})
	return in.internRaw(Type{Kind: KindTuple, Extra: extra})
}

// Get returns the descriptor for id. Invalid IDs return a KindInvalid type.
func (in *Interner) Get(id TypeID) Type {
	if int(id) >= len(in.types) {
		return Type{Kind: KindInvalid}
	}
	return in.types[id]
}

// Struct returns the StructInfo for a KindStruct type.
func (in *Interner) Struct(id TypeID) (StructInfo, bool) {
	t := in.Get(id)
	if t.Kind != KindStruct || int(t.Extra) >= len(in.structs) {
		return StructInfo{}, false
	}
	return in.structs[t.Extra], true
}

// Tuple returns the TupleInfo for a KindTuple type.
func (in *Interner) Tuple(id TypeID) (TupleInfo, bool) {
	t := in.Get(id)
	if t.Kind != KindTuple || int(t.Extra) >= len(in.tuples) {
		return TupleInfo{}, false
	}
	return in.tuples[t.Extra], true
}

// String renders a type for diagnostics and IR dumps.
func (in *Interner) String(id TypeID) string {
	t := in.Get(id)
	switch t.Kind {
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindInt:
		return fmt.Sprintf("i%d", t.Width)
	case KindUint:
		return fmt.Sprintf("u%d", t.Width)
	case KindAddress:
		return "address"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindStruct:
		if info, ok := in.Struct(id); ok {
			return info.Name
		}
		return "struct?"
	case KindTuple:
		if info, ok := in.Tuple(id); ok {
			s := "("
			for i, e := range info.Elems {
				if i > 0 {
					s += ", "
				}
				s += in.String(e)
			}
			return s + ")"
		}
		return "tuple?"
	case KindRef:
		if t.Cap == CapExclusive {
			return "&mut " + in.String(t.Elem)
		}
		return "&" + in.String(t.Elem)
	default:
		return "invalid"
	}
}
