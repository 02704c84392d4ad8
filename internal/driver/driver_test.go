package driver_test

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"sable/internal/ast"
	"sable/internal/diag"
	"sable/internal/domains"
	"sable/internal/driver"
	"sable/internal/project"
	"sable/internal/vm"
)

func u64T() ast.TypeRef  { return ast.TypeRef{Name: "u64"} }
func unitT() ast.TypeRef { return ast.TypeRef{Name: "unit"} }

func lit(v string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprInt, Type: u64T(), IntValue: v}
}

func local(name string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLocal, Name: name}
}

func bankUnit() *ast.Unit {
	return &ast.Unit{
		UnitID: "bank",
		Funcs: []ast.Func{
			{
				Name:   "mint",
				Public: true,
				Params: []ast.Param{{Name: "v", Type: u64T()}},
				Result: unitT(),
				Body: []ast.Stmt{
					{Kind: ast.StmtStateWrite, Namespace: "supply", Value: &ast.Expr{
						Kind: ast.ExprBinary, Op: "add", Type: u64T(),
						X: &ast.Expr{Kind: ast.ExprStateRead, Namespace: "supply", Type: u64T()},
						Y: local("v"),
					}},
					{Kind: ast.StmtReturn},
				},
			},
			{
				Name: "double", Public: true,
				Params: []ast.Param{{Name: "v", Type: u64T()}},
				Result: u64T(),
				Body: []ast.Stmt{{Kind: ast.StmtReturn, X: &ast.Expr{
					Kind: ast.ExprBinary, Op: "mul", Type: u64T(), X: local("v"), Y: lit("2"),
				}}},
			},
		},
	}
}

func TestCompile_EndToEnd(t *testing.T) {
	res, err := driver.Compile(context.Background(), bankUnit(), driver.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("compile failed: %+v", res.Bag.Items())
	}
	if res.Artifact == nil || res.Manifest == nil {
		t.Fatal("artifact or manifest missing")
	}
	if _, ok := res.Manifest.Functions["bank::mint"]; !ok {
		t.Fatalf("manifest functions = %v", res.Manifest.Functions)
	}
	if !res.SSA.Funcs[1].Domains.Sealed {
		t.Fatal("domain sets not sealed")
	}

	// The artifact must actually run.
	machine, err := vm.New(res.Artifact, vm.NewMockHost("bank"), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	got, err := machine.Call("bank::double", vm.WordValue(21))
	if err != nil || got[0].Word != 42 {
		t.Fatalf("double(21) = %v, %v", got, err)
	}
}

func TestCompile_BestEffortAcrossFunctions(t *testing.T) {
	unit := bankUnit()
	// A use-after-move in one function must not block its siblings.
	unit.Funcs = append(unit.Funcs, ast.Func{
		Name:   "broken",
		Public: true,
		Params: []ast.Param{{Name: "s", Type: ast.TypeRef{Name: "string"}}},
		Result: unitT(),
		Body: []ast.Stmt{
			{Kind: ast.StmtLet, Name: "a", Init: local("s")},
			{Kind: ast.StmtLet, Name: "b", Init: local("s")},
			{Kind: ast.StmtReturn},
		},
	})
	res, err := driver.Compile(context.Background(), unit, driver.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.OK {
		t.Fatal("compile reported success despite an ownership error")
	}
	if !res.Bag.HasErrors() {
		t.Fatal("no diagnostics recorded")
	}
	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.OwnUseAfterMove {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a use-after-move diagnostic: %+v", res.Bag.Items())
	}
	// Siblings still reached SSA.
	if res.SSA == nil || res.SSA.Funcs[1] == nil {
		t.Fatal("sibling functions discarded")
	}
}

func TestCompile_RejectPolicyStopsArtifact(t *testing.T) {
	unit := &ast.Unit{
		UnitID: "bank",
		Funcs: []ast.Func{{
			Name:   "touch",
			Public: true,
			Params: []ast.Param{{Name: "k", Type: ast.TypeRef{Name: "string"}}},
			Result: unitT(),
			Body: []ast.Stmt{
				{Kind: ast.StmtStateWrite, Namespace: "acct", Key: local("k"), Value: lit("1")},
				{Kind: ast.StmtReturn},
			},
		}},
	}
	cfg := project.Default()
	cfg.Build.WildcardPolicy = project.WildcardReject
	res, err := driver.Compile(context.Background(), unit, driver.Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Artifact != nil {
		t.Fatal("dynamic key lowered under the reject policy")
	}
	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.DomDynamicRejected {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a dynamic-key rejection: %+v", res.Bag.Items())
	}
}

func TestCompile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := driver.Compile(ctx, bankUnit(), driver.Options{})
	if err == nil {
		t.Fatal("cancelled compile returned no error")
	}
}

func TestCompileFile_LoadsUnitAndConfig(t *testing.T) {
	dir := t.TempDir()
	unitPath := filepath.Join(dir, "bank.json")
	f, err := os.Create(unitPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := ast.EncodeUnit(f, bankUnit()); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	cfgText := "[package]\nname = \"bank\"\n\n[build]\nout_dir = \"out\"\n"
	if err := os.WriteFile(filepath.Join(dir, project.DefaultFileName), []byte(cfgText), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := driver.CompileFile(context.Background(), unitPath, driver.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("compile failed: %+v", res.Bag.Items())
	}

	artPath, err := res.WriteArtifacts(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(artPath); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "bank.manifest.json")); err != nil {
		t.Fatal(err)
	}
}

func TestCompile_DeclaredCalleeDomainsReachCaller(t *testing.T) {
	// credit declares acct:alice; its body writes acct:bob. The caller's
	// manifest entry must carry the declared set even though the callee
	// is small enough to be inlined away before lowering.
	unit := &ast.Unit{
		UnitID: "bank",
		Funcs: []ast.Func{
			{
				Name:        "credit",
				Annotations: []ast.Annotation{{Name: "writes", Args: []string{"acct:alice"}}},
				Result:      unitT(),
				Body: []ast.Stmt{
					{Kind: ast.StmtStateWrite, Namespace: "acct",
						Key:   &ast.Expr{Kind: ast.ExprString, Type: ast.TypeRef{Name: "string"}, StringValue: "bob"},
						Value: lit("1")},
					{Kind: ast.StmtReturn},
				},
			},
			{
				Name: "pay", Public: true, Result: unitT(),
				Body: []ast.Stmt{
					{Kind: ast.StmtExpr, X: &ast.Expr{Kind: ast.ExprCall, Callee: "credit", Type: unitT()}},
					{Kind: ast.StmtReturn},
				},
			},
		},
	}
	res, err := driver.Compile(context.Background(), unit, driver.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("compile failed: %+v", res.Bag.Items())
	}
	e, ok := res.Manifest.Functions["bank::pay"]
	if !ok {
		t.Fatalf("manifest functions = %v", res.Manifest.Functions)
	}
	alice := domains.Key{Unit: "bank", Namespace: "acct", Entry: "alice"}.Hash()
	want := hex.EncodeToString(alice[:])
	found := false
	for _, w := range e.Writes {
		if w == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("caller writes = %v, want declared acct:alice", e.Writes)
	}
	bob := domains.Key{Unit: "bank", Namespace: "acct", Entry: "bob"}.Hash()
	for _, w := range e.Writes {
		if w == hex.EncodeToString(bob[:]) {
			t.Fatalf("caller carries the callee body set instead of the declared one: %v", e.Writes)
		}
	}
}
