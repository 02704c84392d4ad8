package ast

import (
	"sable/internal/source"
)

// StmtKind discriminates statement nodes.
type StmtKind string

const (
	StmtLet    StmtKind = "let"
	StmtAssign StmtKind = "assign"
	StmtExpr   StmtKind = "expr"
	StmtIf     StmtKind = "if"
	StmtWhile  StmtKind = "while"
	StmtReturn StmtKind = "return"
	// StmtStateWrite stores a value into persistent state.
	StmtStateWrite StmtKind = "state_write"
	// StmtStateDelete removes a persistent key.
	StmtStateDelete StmtKind = "state_delete"
	// StmtEmit appends a structured log record.
	StmtEmit StmtKind = "emit"
	// StmtRequire reverts with a message when the condition is false.
	StmtRequire StmtKind = "require"
	// StmtRevert unconditionally reverts with a message.
	StmtRevert StmtKind = "revert"
)

// Stmt is a statement node. Exactly the fields implied by Kind are
// populated.
type Stmt struct {
	Kind StmtKind    `json:"kind"`
	Span source.Span `json:"span"`

	// StmtLet.
	Name string `json:"name,omitempty"`
	Mut  bool   `json:"mut,omitempty"`
	Init *Expr  `json:"init,omitempty"`

	// StmtAssign: Target is an ExprLocal or ExprField place.
	Target *Expr `json:"target,omitempty"`
	Value  *Expr `json:"value,omitempty"`

	// StmtExpr / StmtIf / StmtWhile / StmtRequire condition.
	Cond *Expr  `json:"cond,omitempty"`
	X    *Expr  `json:"x,omitempty"`
	Then []Stmt `json:"then,omitempty"`
	Else []Stmt `json:"else,omitempty"`
	Body []Stmt `json:"body,omitempty"`

	// StmtStateWrite / StmtStateDelete.
	Namespace string `json:"namespace,omitempty"`
	Key       *Expr  `json:"key,omitempty"`

	// StmtEmit.
	Event string `json:"event,omitempty"`
	Args  []Expr `json:"args,omitempty"`

	// StmtRequire / StmtRevert message.
	Msg string `json:"msg,omitempty"`
}
