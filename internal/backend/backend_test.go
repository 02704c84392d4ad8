package backend_test

import (
	"testing"

	"sable/internal/ast"
	"sable/internal/backend"
	"sable/internal/bytecode"
	"sable/internal/diag"
	"sable/internal/hir"
	"sable/internal/ssa"
)

func u64T() ast.TypeRef  { return ast.TypeRef{Name: "u64"} }
func unitT() ast.TypeRef { return ast.TypeRef{Name: "unit"} }

func lit(v string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprInt, Type: u64T(), IntValue: v}
}

func local(name string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLocal, Name: name}
}

func bin(op string, mode ast.ArithMode, x, y *ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprBinary, Op: op, Mode: mode, Type: u64T(), X: x, Y: y}
}

func compile(t *testing.T, cfg backend.Config, funcs []ast.Func) (*bytecode.Module, *diag.Bag, bool) {
	t.Helper()
	unit := &ast.Unit{UnitID: "t", Funcs: funcs}
	bag := diag.NewBag(64)
	rep := diag.BagReporter{Bag: bag}
	hmod := hir.Lower(unit, rep)
	if bag.HasErrors() {
		t.Fatalf("lowering failed: %+v", bag.Items())
	}
	if !hir.Check(hmod, rep) {
		t.Fatalf("ownership check failed: %+v", bag.Items())
	}
	smod := ssa.Build(hmod)
	if err := ssa.Validate(smod); err != nil {
		t.Fatalf("invalid SSA: %v", err)
	}
	art, ok := backend.Lower(smod, cfg, rep)
	return art, bag, ok
}

// mustCompile additionally round-trips the container, which re-validates
// every reference in the artifact.
func mustCompile(t *testing.T, funcs []ast.Func) *bytecode.Module {
	t.Helper()
	art, bag, ok := compile(t, backend.Config{}, funcs)
	if !ok {
		t.Fatalf("lowering failed: %+v", bag.Items())
	}
	data, err := bytecode.Encode(art)
	if err != nil {
		t.Fatal(err)
	}
	back, err := bytecode.Decode(data)
	if err != nil {
		t.Fatalf("artifact does not validate: %v", err)
	}
	return back
}

func decodeFunc(t *testing.T, m *bytecode.Module, mangled string) []bytecode.Instr {
	t.Helper()
	fn, ok := m.Lookup(mangled)
	if !ok {
		t.Fatalf("export %s missing", mangled)
	}
	code, err := bytecode.DecodeCode(fn.Code)
	if err != nil {
		t.Fatal(err)
	}
	return code
}

func countHostCalls(m *bytecode.Module, code []bytecode.Instr, symbol string) int {
	n := 0
	for _, in := range code {
		if in.Op == bytecode.OpHostCall && m.Imports[in.A].Symbol() == symbol {
			n++
		}
	}
	return n
}

func TestLower_DefaultAddInjectsOverflowCheck(t *testing.T) {
	m := mustCompile(t, []ast.Func{{
		Name:   "sum",
		Public: true,
		Params: []ast.Param{{Name: "a", Type: u64T()}, {Name: "b", Type: u64T()}},
		Result: u64T(),
		Body: []ast.Stmt{
			{Kind: ast.StmtReturn, X: bin("add", ast.ModeDefault, local("a"), local("b"))},
		},
	}})
	code := decodeFunc(t, m, "t::sum")
	if countHostCalls(m, code, "sys/1.abort") != 1 {
		t.Fatalf("default add carries no abort path:\n%v", code)
	}
}

func TestLower_WrappingAddHasNoCheck(t *testing.T) {
	m := mustCompile(t, []ast.Func{{
		Name:   "wsum",
		Public: true,
		Params: []ast.Param{{Name: "a", Type: u64T()}, {Name: "b", Type: u64T()}},
		Result: u64T(),
		Body: []ast.Stmt{
			{Kind: ast.StmtReturn, X: bin("add", ast.ModeWrapping, local("a"), local("b"))},
		},
	}})
	code := decodeFunc(t, m, "t::wsum")
	if countHostCalls(m, code, "sys/1.abort") != 0 {
		t.Fatalf("wrapping add aborts:\n%v", code)
	}
	if len(code) > 5 {
		t.Fatalf("wrapping 64-bit add should be a handful of instructions:\n%v", code)
	}
}

func TestLower_StateWriteMarshalsHostCall(t *testing.T) {
	m := mustCompile(t, []ast.Func{{
		Name:   "store",
		Public: true,
		Params: []ast.Param{{Name: "v", Type: u64T()}},
		Result: unitT(),
		Body: []ast.Stmt{
			{Kind: ast.StmtStateWrite, Namespace: "supply", Value: local("v")},
			{Kind: ast.StmtReturn},
		},
	}})
	code := decodeFunc(t, m, "t::store")
	if countHostCalls(m, code, "state/1.write") != 1 {
		t.Fatalf("state write not marshalled:\n%v", code)
	}
	// The namespace must land in the constant pool.
	found := false
	for _, c := range m.Consts {
		if c.Kind == bytecode.ConstBytes && string(c.Bytes) == "supply" {
			found = true
		}
	}
	if !found {
		t.Fatal("namespace constant missing from the pool")
	}
}

func TestLower_OnlyPublicFunctionsExported(t *testing.T) {
	m := mustCompile(t, []ast.Func{
		{
			Name: "helper", Result: u64T(),
			Body: []ast.Stmt{{Kind: ast.StmtReturn, X: lit("7")}},
		},
		{
			Name: "api", Public: true, Result: u64T(),
			Body: []ast.Stmt{{Kind: ast.StmtReturn,
				X: &ast.Expr{Kind: ast.ExprCall, Callee: "helper", Type: u64T()}}},
		},
	})
	if len(m.Exports) != 1 || m.Exports[0].Name != "t::api" {
		t.Fatalf("exports = %+v", m.Exports)
	}
	if len(m.Funcs) != 2 {
		t.Fatalf("private function bodies must still be compiled, got %d", len(m.Funcs))
	}
}

func TestLower_GasEstimatePositive(t *testing.T) {
	m := mustCompile(t, []ast.Func{{
		Name: "f", Public: true, Result: u64T(),
		Body: []ast.Stmt{{Kind: ast.StmtReturn, X: bin("mul", ast.ModeDefault, lit("3"), lit("4"))}},
	}})
	fn, _ := m.Lookup("t::f")
	if fn.Gas == 0 {
		t.Fatal("static gas estimate is zero")
	}
}

func TestLower_LocalBudgetEnforced(t *testing.T) {
	// Sixteen live locals against a budget of four.
	body := make([]ast.Stmt, 0, 18)
	sum := lit("0")
	for i := 0; i < 16; i++ {
		name := string(rune('a' + i))
		body = append(body, ast.Stmt{Kind: ast.StmtLet, Name: name, Init: lit("1")})
	}
	for i := 0; i < 16; i++ {
		name := string(rune('a' + i))
		sum = bin("add", ast.ModeWrapping, sum, local(name))
	}
	body = append(body, ast.Stmt{Kind: ast.StmtReturn, X: sum})

	_, bag, ok := compile(t, backend.Config{MaxLocals: 4}, []ast.Func{{
		Name: "wide", Public: true, Result: u64T(), Body: body,
	}})
	if ok {
		t.Fatal("over-budget function lowered")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.LowerTooManyLocals {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a local-budget diagnostic: %+v", bag.Items())
	}
}

func TestLower_StateReadChecksStatus(t *testing.T) {
	m := mustCompile(t, []ast.Func{{
		Name:   "load",
		Public: true,
		Result: u64T(),
		Body: []ast.Stmt{
			{Kind: ast.StmtReturn, X: &ast.Expr{
				Kind: ast.ExprStateRead, Namespace: "supply", Type: u64T(),
			}},
		},
	}})
	code := decodeFunc(t, m, "t::load")
	if countHostCalls(m, code, "state/1.read") != 1 {
		t.Fatalf("state read not marshalled:\n%v", code)
	}
	// A non-success status escalates instead of being dropped.
	if countHostCalls(m, code, "sys/1.abort") != 1 {
		t.Fatalf("read status is not checked:\n%v", code)
	}
	for _, in := range code {
		if in.Op == bytecode.OpDrop {
			t.Fatalf("status word dropped:\n%v", code)
		}
	}
}
