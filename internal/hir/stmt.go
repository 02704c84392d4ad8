package hir

import (
	"sable/internal/source"
)

// StmtKind enumerates HIR statement kinds.
type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	// StmtLet declares a binding; always initialized.
	StmtLet
	// StmtAssign stores to a mutable local or a field place.
	StmtAssign
	StmtExpr
	// StmtReturn is always explicit in HIR; lowering appends one to unit
	// functions that fall off the end.
	StmtReturn
	StmtIf
	StmtWhile
	StmtStateWrite
	StmtStateDelete
	StmtEmit
	// StmtRequire reverts with a message when its condition is false.
	StmtRequire
	StmtRevert
)

// Stmt is an HIR statement. Exactly the fields implied by Kind are set.
type Stmt struct {
	Kind StmtKind
	Span source.Span

	// StmtLet.
	Local LocalID
	Init  *Expr

	// StmtAssign: Target is an ExprLocal or ExprField place.
	Target *Expr
	Value  *Expr

	// StmtExpr / StmtReturn operand, nil for bare return.
	X *Expr

	// StmtIf / StmtWhile / StmtRequire.
	Cond *Expr
	Then []Stmt
	Else []Stmt
	Body []Stmt

	// StmtStateWrite / StmtStateDelete.
	Namespace string
	Key       *Expr

	// StmtEmit.
	Event string
	Args  []Expr

	// StmtRequire / StmtRevert.
	Msg string
}
