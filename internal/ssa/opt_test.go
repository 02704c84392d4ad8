package ssa_test

import (
	"testing"

	"sable/internal/ast"
	"sable/internal/ssa"
)

func u8() ast.TypeRef { return ast.TypeRef{Name: "u8"} }

func u8lit(v string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprInt, Type: u8(), IntValue: v}
}

func countBins(f *ssa.Func) int {
	n := 0
	for i := range f.Blocks {
		for _, in := range f.Blocks[i].Instrs {
			if in.Kind == ssa.InstrBin {
				n++
			}
		}
	}
	return n
}

func TestFold_RespectsOperandWidth(t *testing.T) {
	// 200+100 overflows u8: the add must survive folding so its runtime
	// abort survives with it. 100+100 is in range and folds away.
	mod := buildSSA(t, []ast.Func{
		{
			Name: "boom", Result: u8(),
			Body: []ast.Stmt{{Kind: ast.StmtReturn, X: &ast.Expr{
				Kind: ast.ExprBinary, Op: "add", Type: u8(),
				X: u8lit("200"), Y: u8lit("100"),
			}}},
		},
		{
			Name: "fine", Result: u8(),
			Body: []ast.Stmt{{Kind: ast.StmtReturn, X: &ast.Expr{
				Kind: ast.ExprBinary, Op: "add", Type: u8(),
				X: u8lit("100"), Y: u8lit("100"),
			}}},
		},
	})
	ssa.Optimize(mod)

	f, _ := mod.Lookup("boom")
	if countBins(f) != 1 {
		t.Fatalf("out-of-range u8 add folded away:\n%s", ssa.Print(mod, f))
	}
	f, _ = mod.Lookup("fine")
	if countBins(f) != 0 {
		t.Fatalf("in-range u8 add not folded:\n%s", ssa.Print(mod, f))
	}
}

func TestDCE_KeepsAbortCapableArith(t *testing.T) {
	// An unused default-mode add can still abort on overflow; only the
	// wrapping one is safe to discard.
	mod := buildSSA(t, []ast.Func{{
		Name:   "side",
		Params: []ast.Param{{Name: "a", Type: u64()}},
		Result: u64(),
		Body: []ast.Stmt{
			{Kind: ast.StmtExpr, X: &ast.Expr{
				Kind: ast.ExprBinary, Op: "add", Mode: ast.ModeDefault, Type: u64(),
				X: ref("a"), Y: ref("a"),
			}},
			{Kind: ast.StmtExpr, X: &ast.Expr{
				Kind: ast.ExprBinary, Op: "add", Mode: ast.ModeWrapping, Type: u64(),
				X: ref("a"), Y: ref("a"),
			}},
			{Kind: ast.StmtReturn, X: ref("a")},
		},
	}})
	f, _ := mod.Lookup("side")
	ssa.EliminateDeadCode(f)
	if countBins(f) != 1 {
		t.Fatalf("dead-code pass kept %d adds, want the default-mode one:\n%s",
			countBins(f), ssa.Print(mod, f))
	}
	for i := range f.Blocks {
		for _, in := range f.Blocks[i].Instrs {
			if in.Kind == ssa.InstrBin && in.Mode != ssa.ModeDefault {
				t.Fatalf("wrapping add survived:\n%s", ssa.Print(mod, f))
			}
		}
	}
}
