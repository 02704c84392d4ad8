// Package driver orchestrates the compilation pipeline for one unit:
// typed AST in, bytecode artifact and scheduler manifest out.
//
// Stages run best-effort: a function that fails ownership checking is
// excluded from SSA construction and lowering while its siblings continue,
// so one build surfaces as many independent diagnostics as possible. The
// per-function stages run in parallel; the inter-procedural domain fixed
// point runs single-threaded after they join.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"sable/internal/ast"
	"sable/internal/backend"
	"sable/internal/bytecode"
	"sable/internal/diag"
	"sable/internal/domains"
	"sable/internal/hir"
	"sable/internal/manifest"
	"sable/internal/project"
	"sable/internal/source"
	"sable/internal/ssa"
)

// Options configures one compilation.
type Options struct {
	// Config supplies build knobs; nil means project.Default().
	Config *project.Config
	// Jobs bounds stage parallelism; 0 means GOMAXPROCS.
	Jobs int
	// MaxDiagnostics caps the bag; 0 means 256.
	MaxDiagnostics int
	// CheckOnly stops after domain analysis without lowering an artifact.
	CheckOnly bool
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = project.Default()
	}
	if o.Jobs <= 0 {
		o.Jobs = runtime.GOMAXPROCS(0)
	}
	if o.MaxDiagnostics <= 0 {
		o.MaxDiagnostics = 256
	}
	return o
}

// CompileResult carries every stage product so callers can inspect
// intermediate forms. Artifact and Manifest are nil when errors stopped
// the back half.
type CompileResult struct {
	Unit string
	// Files holds the unit's embedded sources for diagnostic rendering.
	Files    *source.FileSet
	HIR      *hir.Module
	SSA      *ssa.Module
	Domains  *domains.Result
	Artifact *bytecode.Module
	Manifest *manifest.Manifest
	Bag      *diag.Bag
	// OK is true when an artifact was produced without errors.
	OK bool
}

func wildcardPolicy(cfg *project.Config) domains.WildcardPolicy {
	if cfg.Build.WildcardPolicy == project.WildcardReject {
		return domains.PolicyReject
	}
	return domains.PolicyCoarsen
}

// Compile runs the full pipeline over a typed unit.
func Compile(ctx context.Context, unit *ast.Unit, opts Options) (*CompileResult, error) {
	opts = opts.withDefaults()
	bag := diag.NewBag(opts.MaxDiagnostics)
	rep := diag.BagReporter{Bag: bag}
	res := &CompileResult{Unit: unit.UnitID, Files: FileSetOf(unit), Bag: bag}

	res.HIR = hir.Lower(unit, rep)
	if bag.HasErrors() {
		return res, nil
	}

	if err := checkParallel(ctx, res.HIR, bag, opts.Jobs); err != nil {
		return nil, err
	}

	res.SSA = ssa.Build(res.HIR)
	if err := ssa.Validate(res.SSA); err != nil {
		// Malformed SSA from well-formed HIR is a compiler bug, not a
		// user diagnostic.
		return nil, fmt.Errorf("unit %s: %w", unit.UnitID, err)
	}
	// Inter-procedural barrier: the call-graph fixed point mutates shared
	// per-function state and runs alone, on the unoptimized SSA — inlining
	// would erase the call edges declared overrides substitute through.
	res.Domains = domains.Analyze(res.SSA, res.HIR, domains.Config{
		Wildcard: wildcardPolicy(opts.Config),
	}, rep)
	if bag.HasErrors() {
		return res, nil
	}
	if opts.CheckOnly {
		res.OK = true
		return res, nil
	}
	ssa.Optimize(res.SSA)

	art, ok := backend.Lower(res.SSA, backend.Config{
		MaxLocals:   opts.Config.Build.MaxLocals,
		MemoryPages: opts.Config.Build.MemoryPages,
	}, rep)
	if !ok {
		return res, nil
	}
	res.Artifact = art
	if opts.Config.Manifest.Emit {
		res.Manifest = manifest.Build(res.SSA, art)
	}
	res.OK = !bag.HasErrors()
	return res, nil
}

// checkParallel runs the ownership checker across functions under an
// errgroup. Each goroutine reports into its own bag; bags merge back in
// function order so diagnostics stay deterministic.
func checkParallel(ctx context.Context, m *hir.Module, bag *diag.Bag, jobs int) error {
	var fns []*hir.Func
	for _, fn := range m.Funcs {
		if fn != nil && fn.Body != nil {
			fns = append(fns, fn)
		}
	}
	if len(fns) == 0 {
		return nil
	}

	bags := make([]*diag.Bag, len(fns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(fns)))
	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fb := diag.NewBag(int(bag.Cap()))
			hir.CheckFunc(m, fn, diag.BagReporter{Bag: fb})
			bags[i] = fb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, fb := range bags {
		bag.Merge(fb)
	}
	return nil
}

// FileSetOf materializes the unit's embedded sources so diagnostics can
// render line context. FileIDs match the unit's file order.
func FileSetOf(unit *ast.Unit) *source.FileSet {
	fs := source.NewFileSet()
	for _, f := range unit.Files {
		fs.AddVirtual(f.Path, []byte(f.Content))
	}
	return fs
}

// CompileFile loads a unit from its JSON interchange file, resolves the
// sable.toml next to it, and compiles.
func CompileFile(ctx context.Context, path string, opts Options) (*CompileResult, error) {
	unit, err := ast.LoadUnit(path)
	if err != nil {
		return nil, err
	}
	if opts.Config == nil {
		cfg, err := project.Load(path)
		if err != nil {
			return nil, err
		}
		opts.Config = cfg
	}
	return Compile(ctx, unit, opts)
}

// WriteArtifacts encodes the artifact and manifest under dir, named after
// the unit. It returns the artifact path.
func (r *CompileResult) WriteArtifacts(dir string) (string, error) {
	if r.Artifact == nil {
		return "", fmt.Errorf("unit %s: no artifact to write", r.Unit)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := bytecode.Encode(r.Artifact)
	if err != nil {
		return "", err
	}
	artPath := filepath.Join(dir, r.Unit+".sbc")
	if err := os.WriteFile(artPath, data, 0o644); err != nil {
		return "", err
	}
	if r.Manifest != nil {
		mdata, err := r.Manifest.Encode()
		if err != nil {
			return "", err
		}
		mPath := filepath.Join(dir, r.Unit+".manifest.json")
		if err := os.WriteFile(mPath, mdata, 0o644); err != nil {
			return "", err
		}
	}
	return artPath, nil
}
