package ast

import (
	"sable/internal/source"
)

// ExprKind discriminates expression nodes. String values keep the JSON
// interchange form readable and stable.
type ExprKind string

const (
	ExprInt     ExprKind = "int"
	ExprBool    ExprKind = "bool"
	ExprString  ExprKind = "string"
	ExprAddress ExprKind = "address"
	// ExprLocal references a binding by name.
	ExprLocal ExprKind = "local"
	ExprUnary  ExprKind = "unary"
	ExprBinary ExprKind = "binary"
	// ExprCall covers free functions and methods; SelfMode/Recv are set for
	// methods.
	ExprCall ExprKind = "call"
	ExprField      ExprKind = "field"
	ExprTupleIndex ExprKind = "tuple_index"
	ExprTuple      ExprKind = "tuple"
	ExprStruct     ExprKind = "struct"
	// ExprStateRead loads a value from persistent state.
	ExprStateRead ExprKind = "state_read"
	// ExprStateExists checks presence of a persistent key.
	ExprStateExists ExprKind = "state_exists"
	// ExprCtx queries the transaction environment (sender, value, gas_left).
	ExprCtx ExprKind = "ctx"
	// ExprHash computes a cryptographic digest of its operand.
	ExprHash ExprKind = "hash"
)

// UnOp enumerates unary operators.
type UnOp string

const (
	UnNeg UnOp = "neg"
	UnNot UnOp = "not"
)

// BinOp enumerates binary operators.
type BinOp string

const (
	BinAdd BinOp = "add"
	BinSub BinOp = "sub"
	BinMul BinOp = "mul"
	BinDiv BinOp = "div"
	BinMod BinOp = "mod"
	BinAnd BinOp = "and"
	BinOr  BinOp = "or"
	BinXor BinOp = "xor"
	BinShl BinOp = "shl"
	BinShr BinOp = "shr"
	BinEq  BinOp = "eq"
	BinNe  BinOp = "ne"
	BinLt  BinOp = "lt"
	BinLe  BinOp = "le"
	BinGt  BinOp = "gt"
	BinGe  BinOp = "ge"
	// BinLogicAnd / BinLogicOr short-circuit.
	BinLogicAnd BinOp = "land"
	BinLogicOr  BinOp = "lor"
)

// ArithMode selects overflow behavior for arithmetic. The default mode is
// checked-and-abort; the explicit modes compute their fallback inline.
type ArithMode string

const (
	ModeDefault    ArithMode = ""
	ModeWrapping   ArithMode = "wrapping"
	ModeSaturating ArithMode = "saturating"
	// ModeChecked yields an option-shaped result instead of aborting.
	ModeChecked ArithMode = "checked"
)

// StructLitField is one field initializer in a struct literal.
type StructLitField struct {
	Name  string `json:"name"`
	Value *Expr  `json:"value"`
}

// Expr is a typed expression node. Exactly the fields implied by Kind are
// populated; the rest stay zero.
type Expr struct {
	Kind ExprKind    `json:"kind"`
	Type TypeRef     `json:"type"`
	Span source.Span `json:"span"`

	// Literals. IntValue is decimal text so 128-bit constants survive JSON.
	IntValue    string `json:"int_value,omitempty"`
	BoolValue   bool   `json:"bool_value,omitempty"`
	StringValue string `json:"string_value,omitempty"`
	// AddressValue is 0x-prefixed hex.
	AddressValue string `json:"address_value,omitempty"`

	// ExprLocal / ExprField / ExprCtx.
	Name string `json:"name,omitempty"`

	// Operators.
	Op   string    `json:"op,omitempty"`
	Mode ArithMode `json:"mode,omitempty"`
	X    *Expr     `json:"x,omitempty"`
	Y    *Expr     `json:"y,omitempty"`

	// ExprCall.
	Callee   string   `json:"callee,omitempty"`
	SelfMode SelfMode `json:"self_mode,omitempty"`
	Recv     *Expr    `json:"recv,omitempty"`
	Args     []Expr   `json:"args,omitempty"`

	// ExprStruct.
	StructName string           `json:"struct_name,omitempty"`
	Fields     []StructLitField `json:"fields,omitempty"`

	// ExprTupleIndex.
	Index uint32 `json:"index,omitempty"`

	// State access. Namespace is the static namespace segment; Key is the
	// key expression, nil for singleton namespaces.
	Namespace string `json:"namespace,omitempty"`
	Key       *Expr  `json:"key,omitempty"`
}
