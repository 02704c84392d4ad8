package hir

import (
	"sable/internal/ast"
	"sable/internal/source"
	"sable/internal/types"
)

// ExprKind enumerates HIR expression kinds.
type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprIntLit
	ExprBoolLit
	ExprStringLit
	ExprAddressLit
	ExprLocal
	ExprUnary
	ExprBinary
	ExprCall
	ExprField
	ExprTupleIndex
	ExprTuple
	ExprStruct
	ExprStateRead
	ExprStateExists
	ExprCtx
	ExprHash
)

// UnOp enumerates unary operators.
type UnOp uint8

const (
	UnNeg UnOp = iota
	UnNot
)

// BinOp enumerates binary operators. Comparison and logic operators carry no
// arithmetic mode.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinLogicAnd
	BinLogicOr
)

// IsComparison reports whether the operator yields bool.
func (op BinOp) IsComparison() bool {
	return op >= BinEq && op <= BinGe
}

// IsArith reports whether the operator participates in overflow checking.
func (op BinOp) IsArith() bool {
	return op <= BinMod
}

// ArithMode selects overflow behavior; ModeDefault lowers to a checked
// operation that aborts on overflow.
type ArithMode uint8

const (
	ModeDefault ArithMode = iota
	ModeWrapping
	ModeSaturating
	ModeChecked
)

// FieldRef resolves a struct field access.
type FieldRef struct {
	Name  string
	Index uint32
	Type  types.TypeID
}

// Expr is an HIR expression. Exactly the fields implied by Kind are set.
type Expr struct {
	Kind ExprKind
	Type types.TypeID
	Span source.Span

	// Literals. Wide 128-bit constants keep their decimal text and are
	// materialized in linear memory by the backend.
	IntValue  uint64 // magnitude
	IntNeg    bool
	IntWide   bool
	IntText   string
	BoolValue bool
	StrValue  string // ExprStringLit; ExprAddressLit stores 0x-hex here

	// ExprLocal. Use is written by the ownership checker.
	Local LocalID
	Use   UseKind

	// Operators.
	Un   UnOp
	Bin  BinOp
	Mode ArithMode
	X    *Expr
	Y    *Expr

	// ExprCall.
	Callee   FuncID
	SelfMode ast.SelfMode
	Recv     *Expr
	Args     []Expr

	// ExprField / ExprTupleIndex.
	Field FieldRef

	// ExprStruct.
	StructFields []Expr // ordered by declaration

	// ExprTuple.
	Elems []Expr

	// State access / context query.
	Namespace string
	Key       *Expr
	CtxQuery  string
}
