package types

// IsCopy reports whether values of the type have copy semantics.
// Machine scalars, addresses and references copy freely; strings, byte
// buffers and any aggregate containing a move type move on use.
func (in *Interner) IsCopy(id TypeID) bool {
	t := in.Get(id)
	switch t.Kind {
	case KindUnit, KindBool, KindInt, KindUint, KindAddress, KindRef:
		return true
	case KindString, KindBytes:
		return false
	case KindStruct:
		info, ok := in.Struct(id)
		if !ok {
			return false
		}
		for _, f := range info.Fields {
			if !in.IsCopy(f.Type) {
				return false
			}
		}
		return true
	case KindTuple:
		info, ok := in.Tuple(id)
		if !ok {
			return false
		}
		for _, e := range info.Elems {
			if !in.IsCopy(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FitsInWord reports whether the type fits in one 64-bit machine word on the
// target. Wider values live in linear memory and are addressed by offset.
func (in *Interner) FitsInWord(id TypeID) bool {
	t := in.Get(id)
	switch t.Kind {
	case KindUnit, KindBool, KindRef:
		return true
	case KindInt, KindUint:
		return t.Width <= Width64
	default:
		return false
	}
}

// ByteSize returns the size of the value's linear-memory representation.
// Word-sized values report 8 for uniformity; dynamically sized values
// (string, bytes) report their header size.
func (in *Interner) ByteSize(id TypeID) uint32 {
	t := in.Get(id)
	switch t.Kind {
	case KindUnit:
		return 0
	case KindBool:
		return 1
	case KindInt, KindUint:
		return uint32(t.Width) / 8
	case KindAddress:
		return 32
	case KindString, KindBytes:
		return 8 // offset+len header
	case KindRef:
		return 8
	case KindStruct:
		info, _ := in.Struct(id)
		var sz uint32
		for _, f := range info.Fields {
			sz += in.ByteSize(f.Type)
		}
		return sz
	case KindTuple:
		info, _ := in.Tuple(id)
		var sz uint32
		for _, e := range info.Elems {
			sz += in.ByteSize(e)
		}
		return sz
	default:
		return 0
	}
}

// IsSigned reports whether the type is a signed integer.
func (in *Interner) IsSigned(id TypeID) bool {
	return in.Get(id).Kind == KindInt
}

// IsInteger reports whether the type is any integer.
func (in *Interner) IsInteger(id TypeID) bool {
	k := in.Get(id).Kind
	return k == KindInt || k == KindUint
}
