package domains_test

import (
	"testing"

	"sable/internal/ast"
	"sable/internal/diag"
	"sable/internal/domains"
	"sable/internal/hir"
	"sable/internal/ssa"
)

func u64T() ast.TypeRef    { return ast.TypeRef{Name: "u64"} }
func boolT() ast.TypeRef   { return ast.TypeRef{Name: "bool"} }
func stringT() ast.TypeRef { return ast.TypeRef{Name: "string"} }
func unitT() ast.TypeRef   { return ast.TypeRef{Name: "unit"} }

func strLit(v string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprString, Type: stringT(), StringValue: v}
}

func intLit(v string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprInt, Type: u64T(), IntValue: v}
}

func local(name string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLocal, Name: name}
}

func writeState(ns string, key *ast.Expr, v *ast.Expr) ast.Stmt {
	return ast.Stmt{Kind: ast.StmtStateWrite, Namespace: ns, Key: key, Value: v}
}

func readState(ns string, key *ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprStateRead, Type: u64T(), Namespace: ns, Key: key}
}

// analyze runs the full pipeline over funcs and returns the result plus the
// collected diagnostics.
func analyze(t *testing.T, cfg domains.Config, funcs []ast.Func) (*ssa.Module, *domains.Result, *diag.Bag) {
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
	res := domains.Analyze(smod, hmod, cfg, rep)
	return smod, res, bag
}

func canons(s *domains.Set) []string {
	var out []string
	for _, k := range s.Sorted() {
		out = append(out, k.Canon())
	}
	return out
}

func wantCanons(t *testing.T, label string, s *domains.Set, want ...string) {
	t.Helper()
	got := canons(s)
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", label, got, want)
		}
	}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestAnalyze_ConstantKeys(t *testing.T) {
	smod, res, bag := analyze(t, domains.Config{}, []ast.Func{{
		Name:   "pay",
		Result: unitT(),
		Body: []ast.Stmt{
			{Kind: ast.StmtLet, Name: "s", Init: readState("supply", nil)},
			writeState("acct", strLit("alice"), local("s")),
			{Kind: ast.StmtReturn},
		},
	}})
	if bag.HasWarnings() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	d := res.Domains(smod.FuncByName["pay"])
	wantCanons(t, "reads", d.Reads, "t.supply")
	wantCanons(t, "writes", d.Writes, "t.acct:alice")

	fn, _ := smod.Lookup("pay")
	if !fn.Domains.Sealed || len(fn.Domains.Writes) != 1 {
		t.Fatalf("sealed sets not written: %+v", fn.Domains)
	}
	want := domains.Key{Unit: "t", Namespace: "acct", Entry: "alice"}.Hash()
	if fn.Domains.Writes[0] != ssa.DomainHash(want) {
		t.Fatal("sealed write hash does not match the canonical key hash")
	}
}

func TestAnalyze_PhiEnumeratesVariants(t *testing.T) {
	// let mut k = "alice"; if c { k = "bob" }; state write under k.
	smod, res, bag := analyze(t, domains.Config{}, []ast.Func{{
		Name:   "route",
		Params: []ast.Param{{Name: "c", Type: boolT()}},
		Result: unitT(),
		Body: []ast.Stmt{
			{Kind: ast.StmtLet, Name: "k", Mut: true, Init: strLit("alice")},
			{Kind: ast.StmtIf, Cond: local("c"), Then: []ast.Stmt{
				{Kind: ast.StmtAssign, Target: local("k"), Value: strLit("bob")},
			}},
			writeState("acct", local("k"), intLit("1")),
			{Kind: ast.StmtReturn},
		},
	}})
	if bag.HasWarnings() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	d := res.Domains(smod.FuncByName["route"])
	wantCanons(t, "writes", d.Writes, "t.acct:alice", "t.acct:bob")
}

func TestAnalyze_DynamicKeyCoarsens(t *testing.T) {
	fns := []ast.Func{{
		Name:   "touch",
		Params: []ast.Param{{Name: "who", Type: stringT()}},
		Result: unitT(),
		Body: []ast.Stmt{
			writeState("acct", local("who"), intLit("1")),
			{Kind: ast.StmtReturn},
		},
	}}

	smod, res, bag := analyze(t, domains.Config{}, fns)
	if !hasCode(bag, diag.DomWildcardFallback) {
		t.Fatalf("coarsening did not warn: %+v", bag.Items())
	}
	d := res.Domains(smod.FuncByName["touch"])
	wantCanons(t, "writes", d.Writes, "t.acct:*")

	_, _, bag = analyze(t, domains.Config{Wildcard: domains.PolicyReject}, fns)
	if !hasCode(bag, diag.DomDynamicRejected) || !bag.HasErrors() {
		t.Fatalf("reject policy did not error: %+v", bag.Items())
	}
}

func TestAnalyze_CallAggregation(t *testing.T) {
	smod, res, bag := analyze(t, domains.Config{}, []ast.Func{
		{
			Name:   "credit",
			Result: unitT(),
			Body: []ast.Stmt{
				writeState("acct", strLit("alice"), intLit("1")),
				{Kind: ast.StmtReturn},
			},
		},
		{
			Name:   "settle",
			Result: unitT(),
			Body: []ast.Stmt{
				{Kind: ast.StmtExpr, X: &ast.Expr{Kind: ast.ExprCall, Callee: "credit", Type: unitT()}},
				writeState("acct", strLit("bob"), intLit("2")),
				{Kind: ast.StmtReturn},
			},
		},
	})
	if bag.HasWarnings() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	d := res.Domains(smod.FuncByName["settle"])
	wantCanons(t, "writes", d.Writes, "t.acct:alice", "t.acct:bob")
}

func TestAnalyze_RecursionConverges(t *testing.T) {
	// Mutually recursive pair; the fixed point must terminate with both
	// functions carrying the union of their local sets.
	smod, res, _ := analyze(t, domains.Config{}, []ast.Func{
		{
			Name:   "ping",
			Params: []ast.Param{{Name: "n", Type: u64T()}},
			Result: unitT(),
			Body: []ast.Stmt{
				writeState("ledger", strLit("a"), intLit("1")),
				{Kind: ast.StmtIf,
					Cond: &ast.Expr{Kind: ast.ExprBinary, Op: "gt", Type: boolT(),
						X: local("n"), Y: intLit("0")},
					Then: []ast.Stmt{
						{Kind: ast.StmtExpr, X: &ast.Expr{Kind: ast.ExprCall,
							Callee: "pong", Type: unitT(), Args: []ast.Expr{*local("n")}}},
					}},
				{Kind: ast.StmtReturn},
			},
		},
		{
			Name:   "pong",
			Params: []ast.Param{{Name: "n", Type: u64T()}},
			Result: unitT(),
			Body: []ast.Stmt{
				writeState("ledger", strLit("b"), intLit("1")),
				{Kind: ast.StmtExpr, X: &ast.Expr{Kind: ast.ExprCall,
					Callee: "ping", Type: unitT(), Args: []ast.Expr{*local("n")}}},
				{Kind: ast.StmtReturn},
			},
		},
	})
	want := []string{"t.ledger:a", "t.ledger:b"}
	for _, name := range []string{"ping", "pong"} {
		d := res.Domains(smod.FuncByName[name])
		wantCanons(t, name+" writes", d.Writes, want...)
	}
	if !res.Graph.InCycle(smod.FuncByName["ping"]) {
		t.Fatal("mutual recursion not detected as a cycle")
	}
}

func TestAnalyze_DeclaredOverrideAuthoritative(t *testing.T) {
	smod, res, bag := analyze(t, domains.Config{}, []ast.Func{{
		Name:        "transfer",
		Annotations: []ast.Annotation{{Name: "writes", Args: []string{"acct:alice"}}},
		Result:      unitT(),
		Body: []ast.Stmt{
			writeState("acct", strLit("alice"), intLit("1")),
			writeState("acct", strLit("bob"), intLit("2")),
			{Kind: ast.StmtReturn},
		},
	}})
	if !hasCode(bag, diag.DomUnderDeclared) {
		t.Fatalf("undeclared write did not warn: %+v", bag.Items())
	}
	if bag.HasErrors() {
		t.Fatalf("under-declaration must stay a warning: %+v", bag.Items())
	}
	d := res.Domains(smod.FuncByName["transfer"])
	if !d.Declared {
		t.Fatal("override not marked declared")
	}
	wantCanons(t, "writes", d.Writes, "t.acct:alice")

	fn, _ := smod.Lookup("transfer")
	if !fn.Domains.Declared || len(fn.Domains.Writes) != 1 {
		t.Fatalf("sealed sets ignore the override: %+v", fn.Domains)
	}
}

func TestAnalyze_OverrideFlowsToCallers(t *testing.T) {
	// The caller aggregates the callee's declared wildcard, not its
	// resolved entries.
	smod, res, _ := analyze(t, domains.Config{}, []ast.Func{
		{
			Name:        "poke",
			Annotations: []ast.Annotation{{Name: "writes", Args: []string{"acct:*"}}},
			Result:      unitT(),
			Body: []ast.Stmt{
				writeState("acct", strLit("alice"), intLit("1")),
				{Kind: ast.StmtReturn},
			},
		},
		{
			Name:   "outer",
			Result: unitT(),
			Body: []ast.Stmt{
				{Kind: ast.StmtExpr, X: &ast.Expr{Kind: ast.ExprCall, Callee: "poke", Type: unitT()}},
				{Kind: ast.StmtReturn},
			},
		},
	})
	d := res.Domains(smod.FuncByName["outer"])
	wantCanons(t, "writes", d.Writes, "t.acct:*")
}

func TestAnalyze_OverDeclaredInfo(t *testing.T) {
	_, _, bag := analyze(t, domains.Config{}, []ast.Func{{
		Name:        "quiet",
		Annotations: []ast.Annotation{{Name: "reads", Args: []string{"supply"}}},
		Result:      unitT(),
		Body:        []ast.Stmt{{Kind: ast.StmtReturn}},
	}})
	if !hasCode(bag, diag.DomOverDeclared) {
		t.Fatalf("unused declared domain not reported: %+v", bag.Items())
	}
	if bag.HasWarnings() {
		t.Fatalf("over-declaration must stay informational: %+v", bag.Items())
	}
}

func TestAnalyze_BadOverride(t *testing.T) {
	_, _, bag := analyze(t, domains.Config{}, []ast.Func{{
		Name:        "oops",
		Annotations: []ast.Annotation{{Name: "writes", Args: []string{"acct.alice"}}},
		Result:      unitT(),
		Body:        []ast.Stmt{{Kind: ast.StmtReturn}},
	}})
	if !hasCode(bag, diag.DomBadOverride) || !bag.HasErrors() {
		t.Fatalf("malformed override not rejected: %+v", bag.Items())
	}
}

func TestAnalyze_PureSkipped(t *testing.T) {
	smod, res, bag := analyze(t, domains.Config{}, []ast.Func{{
		Name:        "pure_math",
		Annotations: []ast.Annotation{{Name: "pure"}},
		Params:      []ast.Param{{Name: "x", Type: u64T()}},
		Result:      u64T(),
		Body: []ast.Stmt{
			{Kind: ast.StmtReturn, X: &ast.Expr{Kind: ast.ExprBinary, Op: "add",
				Type: u64T(), X: local("x"), Y: intLit("1")}},
		},
	}})
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	d := res.Domains(smod.FuncByName["pure_math"])
	if d.Reads.Len() != 0 || d.Writes.Len() != 0 {
		t.Fatal("pure function carries domain sets")
	}
}
