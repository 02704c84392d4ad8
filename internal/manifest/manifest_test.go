package manifest_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"sable/internal/ast"
	"sable/internal/backend"
	"sable/internal/diag"
	"sable/internal/domains"
	"sable/internal/hir"
	"sable/internal/manifest"
	"sable/internal/ssa"
)

func u64T() ast.TypeRef { return ast.TypeRef{Name: "u64"} }

func lit(v string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprInt, Type: u64T(), IntValue: v}
}

func str(v string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprString, Type: ast.TypeRef{Name: "string"}, StringValue: v}
}

func build(t *testing.T, funcs []ast.Func) (*ssa.Module, *manifest.Manifest) {
	t.Helper()
	unit := &ast.Unit{UnitID: "bank", Funcs: funcs}
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
	if domains.Analyze(smod, hmod, domains.Config{}, rep) == nil || bag.HasErrors() {
		t.Fatalf("domain analysis failed: %+v", bag.Items())
	}
	art, ok := backend.Lower(smod, backend.Config{}, rep)
	if !ok {
		t.Fatalf("backend failed: %+v", bag.Items())
	}
	return smod, manifest.Build(smod, art)
}

func hashOf(unit, ns, entry string, wildcard bool) string {
	k := domains.Key{Unit: unit, Namespace: ns, Entry: entry, Wildcard: wildcard}
	h := k.Hash()
	return hex.EncodeToString(h[:])
}

func TestManifest_RecordsComputedDomains(t *testing.T) {
	_, m := build(t, []ast.Func{{
		Name:   "bump",
		Public: true,
		Result: ast.TypeRef{Name: "unit"},
		Body: []ast.Stmt{
			{Kind: ast.StmtStateWrite, Namespace: "supply", Value: lit("1")},
			{Kind: ast.StmtReturn},
		},
	}})
	e, ok := m.Functions["bank::bump"]
	if !ok {
		t.Fatalf("functions = %v", m.Functions)
	}
	if !e.Public || e.Declared {
		t.Fatalf("entry = %+v", e)
	}
	if len(e.Writes) != 1 || e.Writes[0] != hashOf("bank", "supply", "", false) {
		t.Fatalf("writes = %v", e.Writes)
	}
	if len(e.Reads) != 0 {
		t.Fatalf("reads = %v", e.Reads)
	}
	if e.Gas == 0 {
		t.Fatal("gas estimate missing")
	}
}

func TestManifest_DeclaredOverrideIsAuthoritative(t *testing.T) {
	// The body writes acct:bob, but the author declared acct:alice. The
	// analyzer warns; the manifest must carry only the declared set.
	_, m := build(t, []ast.Func{{
		Name:        "skewed",
		Public:      true,
		Annotations: []ast.Annotation{{Name: "writes", Args: []string{"acct:alice"}}},
		Result:      ast.TypeRef{Name: "unit"},
		Body: []ast.Stmt{
			{Kind: ast.StmtStateWrite, Namespace: "acct", Key: str("bob"), Value: lit("1")},
			{Kind: ast.StmtReturn},
		},
	}})
	e := m.Functions["bank::skewed"]
	if !e.Declared {
		t.Fatal("declared flag not set")
	}
	if len(e.Writes) != 1 || e.Writes[0] != hashOf("bank", "acct", "alice", false) {
		t.Fatalf("writes = %v, want declared acct:alice only", e.Writes)
	}
}

func TestManifest_PayableAndProofsPassThrough(t *testing.T) {
	_, m := build(t, []ast.Func{{
		Name:   "deposit",
		Public: true,
		Annotations: []ast.Annotation{
			{Name: "payable"},
			{Name: "proof", Args: []string{"OB-17", "OB-18"}},
		},
		Result: ast.TypeRef{Name: "unit"},
		Body: []ast.Stmt{
			{Kind: ast.StmtStateWrite, Namespace: "vault", Value: lit("1")},
			{Kind: ast.StmtReturn},
		},
	}})
	e := m.Functions["bank::deposit"]
	if !e.Payable {
		t.Fatal("payable flag lost")
	}
	if len(e.Proofs) != 2 || e.Proofs[0] != "OB-17" || e.Proofs[1] != "OB-18" {
		t.Fatalf("proofs = %v", e.Proofs)
	}
}

func TestManifest_EncodeIsDeterministic(t *testing.T) {
	funcs := []ast.Func{
		{
			Name: "a", Public: true, Result: ast.TypeRef{Name: "unit"},
			Body: []ast.Stmt{
				{Kind: ast.StmtStateWrite, Namespace: "x", Value: lit("1")},
				{Kind: ast.StmtStateWrite, Namespace: "y", Value: lit("2")},
				{Kind: ast.StmtReturn},
			},
		},
		{
			Name: "b", Public: true, Result: u64T(),
			Body: []ast.Stmt{{Kind: ast.StmtReturn, X: &ast.Expr{
				Kind: ast.ExprStateRead, Namespace: "x", Type: u64T(),
			}}},
		},
	}
	_, m1 := build(t, funcs)
	_, m2 := build(t, funcs)
	d1, err := m1.Encode()
	if err != nil {
		t.Fatal(err)
	}
	d2, err := m2.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d1, d2) {
		t.Fatalf("manifests differ:\n%s\n---\n%s", d1, d2)
	}

	back, err := manifest.Decode(d1)
	if err != nil {
		t.Fatal(err)
	}
	if back.Unit != "bank" || len(back.Functions) != len(m1.Functions) {
		t.Fatalf("round trip lost data: %+v", back)
	}
}
