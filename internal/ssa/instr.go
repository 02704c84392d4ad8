package ssa

import (
	"sable/internal/hir"
	"sable/internal/source"
	"sable/internal/types"
)

// Op enumerates binary operators at the SSA level.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op Op) String() string {
	names := [...]string{
		"add", "sub", "mul", "div", "mod", "and", "or", "xor", "shl", "shr",
		"eq", "ne", "lt", "le", "gt", "ge",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// IsArith reports whether the operator participates in overflow checking.
func (op Op) IsArith() bool { return op <= OpMod }

// IsComparison reports whether the operator yields bool.
func (op Op) IsComparison() bool { return op >= OpEq }

// ArithMode selects overflow behavior. ModeDefault lowers with an injected
// overflow check that aborts; the explicit modes carry no implicit check and
// compute their defined fallback inline.
type ArithMode = hir.ArithMode

const (
	ModeDefault    = hir.ModeDefault
	ModeWrapping   = hir.ModeWrapping
	ModeSaturating = hir.ModeSaturating
	ModeChecked    = hir.ModeChecked
)

// InstrKind enumerates SSA instruction kinds.
type InstrKind uint8

const (
	InstrInvalid InstrKind = iota
	// InstrConst materializes a literal.
	InstrConst
	// InstrBin applies Op with ArithMode semantics.
	InstrBin
	// InstrNeg / InstrNot are the unary operators.
	InstrNeg
	InstrNot
	// InstrCall invokes another function in the unit.
	InstrCall
	// InstrAggregate packs operands into a struct or tuple value.
	InstrAggregate
	// InstrExtract reads member Index out of an aggregate operand.
	InstrExtract
	// InstrInsert produces a copy of an aggregate with member Index
	// replaced.
	InstrInsert
	// InstrStateRead loads from persistent state.
	InstrStateRead
	// InstrStateWrite stores to persistent state.
	InstrStateWrite
	// InstrStateExists checks a persistent key.
	InstrStateExists
	// InstrStateDelete removes a persistent key.
	InstrStateDelete
	// InstrCtx queries the transaction environment.
	InstrCtx
	// InstrHash computes a cryptographic digest via the host.
	InstrHash
	// InstrEmit appends a structured log record via the host.
	InstrEmit
)

// Const is a literal payload. Wide integers keep their decimal text.
type Const struct {
	Kind     types.Kind
	IntValue uint64
	IntNeg   bool
	IntWide  bool
	IntText  string
	Bool     bool
	Str      string // string literal, or 0x-hex for address
}

// Instr is one SSA instruction. Result is NoValueID for pure-effect
// instructions. Exactly the payload fields implied by Kind are set.
type Instr struct {
	Kind   InstrKind
	Result ValueID
	Type   types.TypeID
	Span   source.Span

	Const Const

	Op   Op
	Mode ArithMode
	X    ValueID
	Y    ValueID

	Callee hir.FuncID
	Args   []ValueID

	Index uint32 // InstrExtract / InstrInsert

	// State access. Key is NoValueID for singleton namespaces.
	Namespace string
	Key       ValueID

	CtxQuery string
	Event    string
}

// Uses appends every value operand of the instruction to dst.
func (in *Instr) Uses(dst []ValueID) []ValueID {
	appendIf := func(v ValueID) {
		if v.IsValid() {
			dst = append(dst, v)
		}
	}
	appendIf(in.X)
	appendIf(in.Y)
	appendIf(in.Key)
	for _, a := range in.Args {
		appendIf(a)
	}
	return dst
}

// HasEffect reports whether the instruction must survive dead-code
// elimination even when its result is unused.
func (in *Instr) HasEffect() bool {
	switch in.Kind {
	case InstrCall, InstrStateWrite, InstrStateDelete, InstrEmit:
		return true
	case InstrStateRead, InstrStateExists, InstrCtx, InstrHash:
		// Host reads are deterministic and revert-free; safe to drop.
		return false
	case InstrBin:
		// Div/mod abort on zero in every mode, and a default-mode
		// add/sub/mul aborts on overflow; those aborts are observable, so
		// the instructions survive even with dead results. The folder
		// rewrites the provably in-range ones first.
		if in.Op == OpDiv || in.Op == OpMod {
			return true
		}
		return in.Mode == ModeDefault &&
			(in.Op == OpAdd || in.Op == OpSub || in.Op == OpMul)
	default:
		return false
	}
}
