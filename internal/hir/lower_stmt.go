package hir

import (
	"sable/internal/ast"
)

func (lw *lowerer) lowerStmts(stmts []ast.Stmt) []Stmt {
	out := make([]Stmt, 0, len(stmts))
	for i := range stmts {
		if s, ok := lw.lowerStmt(&stmts[i]); ok {
			out = append(out, s)
		}
	}
	return out
}

func (lw *lowerer) lowerStmt(s *ast.Stmt) (Stmt, bool) {
	switch s.Kind {
	case ast.StmtLet:
		init := lw.lowerExpr(s.Init)
		if init == nil {
			lw.errorf(s.Span, "let %q without initializer", s.Name)
			return Stmt{}, false
		}
		id := lw.declareLocal(s.Name, init.Type, s.Mut, s.Span)
		return Stmt{Kind: StmtLet, Span: s.Span, Local: id, Init: init}, true

	case ast.StmtAssign:
		target := lw.lowerExpr(s.Target)
		value := lw.lowerExpr(s.Value)
		if target == nil || value == nil {
			return Stmt{}, false
		}
		if target.Kind != ExprLocal && target.Kind != ExprField {
			lw.errorf(s.Span, "assignment target must be a local or field place")
			return Stmt{}, false
		}
		return Stmt{Kind: StmtAssign, Span: s.Span, Target: target, Value: value}, true

	case ast.StmtExpr:
		x := lw.lowerExpr(s.X)
		if x == nil {
			return Stmt{}, false
		}
		return Stmt{Kind: StmtExpr, Span: s.Span, X: x}, true

	case ast.StmtReturn:
		var x *Expr
		if s.X != nil {
			x = lw.lowerExpr(s.X)
		}
		return Stmt{Kind: StmtReturn, Span: s.Span, X: x}, true

	case ast.StmtIf:
		cond := lw.lowerExpr(s.Cond)
		if cond == nil {
			return Stmt{}, false
		}
		lw.pushScope()
		then := lw.lowerStmts(s.Then)
		lw.popScope()
		lw.pushScope()
		els := lw.lowerStmts(s.Else)
		lw.popScope()
		return Stmt{Kind: StmtIf, Span: s.Span, Cond: cond, Then: then, Else: els}, true

	case ast.StmtWhile:
		cond := lw.lowerExpr(s.Cond)
		if cond == nil {
			return Stmt{}, false
		}
		lw.pushScope()
		body := lw.lowerStmts(s.Body)
		lw.popScope()
		return Stmt{Kind: StmtWhile, Span: s.Span, Cond: cond, Body: body}, true

	case ast.StmtStateWrite:
		value := lw.lowerExpr(s.Value)
		if value == nil {
			return Stmt{}, false
		}
		var key *Expr
		if s.Key != nil {
			key = lw.lowerExpr(s.Key)
		}
		return Stmt{Kind: StmtStateWrite, Span: s.Span, Namespace: s.Namespace, Key: key, Value: value}, true

	case ast.StmtStateDelete:
		var key *Expr
		if s.Key != nil {
			key = lw.lowerExpr(s.Key)
		}
		return Stmt{Kind: StmtStateDelete, Span: s.Span, Namespace: s.Namespace, Key: key}, true

	case ast.StmtEmit:
		args := make([]Expr, 0, len(s.Args))
		for i := range s.Args {
			if a := lw.lowerExpr(&s.Args[i]); a != nil {
				args = append(args, *a)
			}
		}
		return Stmt{Kind: StmtEmit, Span: s.Span, Event: s.Event, Args: args}, true

	case ast.StmtRequire:
		cond := lw.lowerExpr(s.Cond)
		if cond == nil {
			return Stmt{}, false
		}
		return Stmt{Kind: StmtRequire, Span: s.Span, Cond: cond, Msg: s.Msg}, true

	case ast.StmtRevert:
		return Stmt{Kind: StmtRevert, Span: s.Span, Msg: s.Msg}, true

	default:
		lw.errorf(s.Span, "unknown statement kind %q", s.Kind)
		return Stmt{}, false
	}
}
