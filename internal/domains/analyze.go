package domains

import (
	"fmt"
	"strconv"

	"sable/internal/diag"
	"sable/internal/hir"
	"sable/internal/ssa"
	"sable/internal/types"
)

// WildcardPolicy controls what happens when a state key cannot be resolved
// to a finite entry set.
type WildcardPolicy uint8

const (
	// PolicyCoarsen degrades the access to the whole-namespace wildcard and
	// warns. The default.
	PolicyCoarsen WildcardPolicy = iota
	// PolicyReject turns unresolvable keys into hard errors.
	PolicyReject
)

// maxKeyVariants bounds how many distinct constant entries a single access
// may resolve to through phi nodes before degrading to the wildcard.
const maxKeyVariants = 4

// Config tunes the analyzer.
type Config struct {
	Wildcard WildcardPolicy
}

// Result is the sealed output of the conflict-domain analysis.
type Result struct {
	Intern *Intern
	Graph  *CallGraph
	// Funcs is indexed by hir.FuncID; entry 0 is a zero value.
	Funcs []FuncDomains
}

// Domains returns the effective sets for id.
func (r *Result) Domains(id hir.FuncID) FuncDomains {
	return r.Funcs[id]
}

// Analyze computes per-function read/write domain sets over the SSA module,
// aggregates them across the call graph to a fixed point, reconciles author
// overrides, and seals hashed sets into each ssa.Func. The HIR module
// supplies the override annotations.
func Analyze(m *ssa.Module, hm *hir.Module, cfg Config, r diag.Reporter) *Result {
	a := &analyzer{
		ssa:    m,
		hir:    hm,
		cfg:    cfg,
		rep:    r,
		intern: NewIntern(),
		graph:  BuildCallGraph(m),
		local:  make([]FuncDomains, len(m.Funcs)),
		eff:    make([]FuncDomains, len(m.Funcs)),
	}
	a.collectLocal()
	a.parseOverrides()
	a.aggregate()
	a.reconcile()
	a.seal()
	return &Result{Intern: a.intern, Graph: a.graph, Funcs: a.eff}
}

type analyzer struct {
	ssa    *ssa.Module
	hir    *hir.Module
	cfg    Config
	rep    diag.Reporter
	intern *Intern
	graph  *CallGraph

	// local holds the intra-procedural sets; eff the effective (aggregated
	// or declared) sets that callers union in.
	local []FuncDomains
	eff   []FuncDomains
	// declared is nil for functions without an override.
	declared []*FuncDomains
	// computed keeps the aggregate even for overridden functions, for the
	// under/over-declaration comparison.
	computed []FuncDomains
}

// collectLocal resolves every state instruction of every function into
// domain keys. Pure functions are trusted and skipped.
func (a *analyzer) collectLocal() {
	for id := 1; id < len(a.ssa.Funcs); id++ {
		fn := a.ssa.Funcs[id]
		ld := FuncDomains{Reads: NewSet(), Writes: NewSet()}
		if fn != nil && !fn.Flags.HasFlag(hir.FuncPure) {
			res := newResolver(fn)
			for bi := range fn.Blocks {
				for ii := range fn.Blocks[bi].Instrs {
					a.collectInstr(&ld, res, &fn.Blocks[bi].Instrs[ii])
				}
			}
		}
		a.local[id] = ld
	}
}

func (a *analyzer) collectInstr(ld *FuncDomains, res *resolver, in *ssa.Instr) {
	var set *Set
	switch in.Kind {
	case ssa.InstrStateRead, ssa.InstrStateExists:
		set = ld.Reads
	case ssa.InstrStateWrite, ssa.InstrStateDelete:
		set = ld.Writes
	default:
		return
	}
	unit := a.ssa.UnitID
	if !in.Key.IsValid() {
		set.Add(Key{Unit: unit, Namespace: in.Namespace})
		return
	}
	entries, ok := res.entries(in.Key)
	if ok {
		for _, e := range entries {
			set.Add(Key{Unit: unit, Namespace: in.Namespace, Entry: e})
		}
		return
	}
	if a.cfg.Wildcard == PolicyReject {
		diag.ReportError(a.rep, diag.DomDynamicRejected, in.Span,
			fmt.Sprintf("key of namespace %q does not resolve to constants", in.Namespace)).
			Emit()
		return
	}
	diag.ReportWarning(a.rep, diag.DomWildcardFallback, in.Span,
		fmt.Sprintf("key of namespace %q does not resolve to constants; access coarsened to %s.%s:*",
			in.Namespace, unit, in.Namespace)).
		Emit()
	set.Add(Key{Unit: unit, Namespace: in.Namespace, Wildcard: true})
}

// parseOverrides turns the raw reads(...)/writes(...) annotation strings
// into key sets. Malformed entries are reported and dropped.
func (a *analyzer) parseOverrides() {
	a.declared = make([]*FuncDomains, len(a.ssa.Funcs))
	for id := 1; id < len(a.hir.Funcs); id++ {
		hf := a.hir.Funcs[id]
		if hf == nil || hf.Declared == nil {
			continue
		}
		dd := &FuncDomains{Reads: NewSet(), Writes: NewSet(), Declared: true}
		parse := func(raw []string, into *Set) {
			for _, s := range raw {
				k, err := ParseKey(a.ssa.UnitID, s)
				if err != nil {
					diag.ReportError(a.rep, diag.DomBadOverride, hf.Declared.Span,
						fmt.Sprintf("invalid domain key %q: %v", s, err)).
						Emit()
					continue
				}
				into.Add(k)
			}
		}
		parse(hf.Declared.Reads, dd.Reads)
		parse(hf.Declared.Writes, dd.Writes)
		a.declared[id] = dd
	}
}

// aggregate runs the call-graph fixed point.  Components come out of
// Tarjan in reverse topological order, so every callee outside the current
// component is already final; within a cycle we iterate until stable.
// Overridden functions contribute their declared sets to callers.
func (a *analyzer) aggregate() {
	a.computed = make([]FuncDomains, len(a.ssa.Funcs))
	effective := func(id hir.FuncID) FuncDomains {
		if d := a.declared[id]; d != nil {
			return *d
		}
		return a.computed[id]
	}
	recompute := func(id hir.FuncID) FuncDomains {
		out := FuncDomains{
			Reads:  a.local[id].Reads.Clone(),
			Writes: a.local[id].Writes.Clone(),
		}
		for _, callee := range a.graph.Callees(id) {
			ce := effective(callee)
			out.Reads.AddAll(ce.Reads)
			out.Writes.AddAll(ce.Writes)
		}
		return out
	}
	for _, comp := range a.graph.SCCs {
		for _, id := range comp {
			a.computed[id] = FuncDomains{Reads: NewSet(), Writes: NewSet()}
		}
		for changed := true; changed; {
			changed = false
			for _, id := range comp {
				next := recompute(id)
				cur := a.computed[id]
				if !next.Reads.Equal(cur.Reads) || !next.Writes.Equal(cur.Writes) {
					a.computed[id] = next
					changed = true
				}
			}
		}
	}
	for id := 1; id < len(a.ssa.Funcs); id++ {
		a.eff[id] = effective(hir.FuncID(id)) //nolint:gosec // arena index
	}
}

// reconcile compares declared overrides against the computed aggregates.
// The declared set stays authoritative either way.
func (a *analyzer) reconcile() {
	for id := 1; id < len(a.ssa.Funcs); id++ {
		dd := a.declared[id]
		if dd == nil {
			continue
		}
		hf := a.hir.Funcs[id]
		comp := a.computed[id]

		// A computed read is satisfied by a declared read or write; a
		// computed write needs a declared write.
		readCover := dd.Reads.Clone()
		readCover.AddAll(dd.Writes)
		missing := comp.Writes.Uncovered(dd.Writes)
		missing = append(missing, comp.Reads.Uncovered(readCover)...)
		if len(missing) > 0 {
			b := diag.ReportWarning(a.rep, diag.DomUnderDeclared, hf.Declared.Span,
				fmt.Sprintf("function %s touches domains its annotation does not declare", hf.Name))
			for _, k := range missing {
				b.WithNote(hf.Declared.Span, fmt.Sprintf("undeclared access to %s", k.Canon()))
			}
			b.Emit()
		}

		for _, k := range dd.Writes.Sorted() {
			if !comp.Writes.Touches(k) {
				diag.ReportInfo(a.rep, diag.DomOverDeclared, hf.Declared.Span,
					fmt.Sprintf("declared write domain %s is never touched", k.Canon())).
					Emit()
			}
		}
		for _, k := range dd.Reads.Sorted() {
			if !comp.Reads.Touches(k) && !comp.Writes.Touches(k) {
				diag.ReportInfo(a.rep, diag.DomOverDeclared, hf.Declared.Span,
					fmt.Sprintf("declared read domain %s is never touched", k.Canon())).
					Emit()
			}
		}
	}
}

// seal writes the hashed effective sets into each ssa.Func.
func (a *analyzer) seal() {
	for id := 1; id < len(a.ssa.Funcs); id++ {
		fn := a.ssa.Funcs[id]
		if fn == nil {
			continue
		}
		eff := a.eff[id]
		fn.Domains = ssa.DomainSets{
			Reads:    hashSlice(eff.Reads.Hashes(a.intern)),
			Writes:   hashSlice(eff.Writes.Hashes(a.intern)),
			Declared: eff.Declared,
			Sealed:   true,
		}
	}
}

func hashSlice(hs []Hash) []ssa.DomainHash {
	out := make([]ssa.DomainHash, len(hs))
	for i, h := range hs {
		out[i] = ssa.DomainHash(h)
	}
	return out
}

// resolver evaluates SSA values to finite constant entry sets. Phi nodes
// enumerate their operands up to maxKeyVariants; anything else that is not
// a constant or an aggregate projection is dynamic.
type resolver struct {
	fn    *ssa.Func
	instr map[ssa.ValueID]*ssa.Instr
	phi   map[ssa.ValueID]*ssa.Phi

	memo     map[ssa.ValueID][]string
	visiting map[ssa.ValueID]bool
}

func newResolver(fn *ssa.Func) *resolver {
	r := &resolver{
		fn:       fn,
		instr:    make(map[ssa.ValueID]*ssa.Instr),
		phi:      make(map[ssa.ValueID]*ssa.Phi),
		memo:     make(map[ssa.ValueID][]string),
		visiting: make(map[ssa.ValueID]bool),
	}
	for bi := range fn.Blocks {
		b := &fn.Blocks[bi]
		for pi := range b.Phis {
			r.phi[b.Phis[pi].Result] = &b.Phis[pi]
		}
		for ii := range b.Instrs {
			if b.Instrs[ii].Result.IsValid() {
				r.instr[b.Instrs[ii].Result] = &b.Instrs[ii]
			}
		}
	}
	return r
}

// entries returns the constant entry variants for v, or ok=false when the
// value is dynamic.
func (r *resolver) entries(v ssa.ValueID) ([]string, bool) {
	if cached, ok := r.memo[v]; ok {
		return cached, cached != nil
	}
	// Loop phis reach themselves; treat the back edge as dynamic.
	if r.visiting[v] {
		return nil, false
	}
	r.visiting[v] = true
	out, ok := r.resolve(v)
	delete(r.visiting, v)
	if !ok {
		out = nil
	}
	r.memo[v] = out
	return out, ok
}

func (r *resolver) resolve(v ssa.ValueID) ([]string, bool) {
	if phi, ok := r.phi[v]; ok {
		seen := map[string]bool{}
		var out []string
		for _, op := range phi.Operands {
			sub, ok := r.entries(op.Value)
			if !ok {
				return nil, false
			}
			for _, e := range sub {
				if !seen[e] {
					seen[e] = true
					out = append(out, e)
				}
			}
			if len(out) > maxKeyVariants {
				return nil, false
			}
		}
		return out, len(out) > 0
	}
	in, ok := r.instr[v]
	if !ok {
		// Parameter or otherwise externally defined.
		return nil, false
	}
	switch in.Kind {
	case ssa.InstrConst:
		e, ok := constEntry(in.Const)
		if !ok {
			return nil, false
		}
		return []string{e}, true
	case ssa.InstrExtract:
		return r.resolveExtract(in.X, in.Index)
	default:
		return nil, false
	}
}

// resolveExtract chases a member index through aggregate construction and
// insertion chains.
func (r *resolver) resolveExtract(agg ssa.ValueID, index uint32) ([]string, bool) {
	for {
		in, ok := r.instr[agg]
		if !ok {
			return nil, false
		}
		switch in.Kind {
		case ssa.InstrAggregate:
			if int(index) >= len(in.Args) {
				return nil, false
			}
			return r.entries(in.Args[index])
		case ssa.InstrInsert:
			if in.Index == index {
				return r.entries(in.Y)
			}
			agg = in.X
		default:
			return nil, false
		}
	}
}

// constEntry renders a literal as a canonical domain entry.
func constEntry(c ssa.Const) (string, bool) {
	switch c.Kind {
	case types.KindString, types.KindAddress:
		return c.Str, true
	case types.KindBool:
		return strconv.FormatBool(c.Bool), true
	case types.KindInt, types.KindUint:
		if c.IntWide {
			return c.IntText, true
		}
		s := strconv.FormatUint(c.IntValue, 10)
		if c.IntNeg {
			s = "-" + s
		}
		return s, true
	default:
		return "", false
	}
}
