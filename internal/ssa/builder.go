package ssa

import (
	"sable/internal/hir"
	"sable/internal/types"
)

// Build lowers every checked HIR function to SSA form. This stage cannot
// reject a program; anything invalid was caught earlier. Functions that
// failed earlier stages stay nil in the result.
func Build(m *hir.Module) *Module {
	out := &Module{
		UnitID:     m.UnitID,
		Types:      m.Types,
		Funcs:      make([]*Func, len(m.Funcs)),
		FuncByName: make(map[string]hir.FuncID, len(m.FuncByName)),
	}
	for id, hf := range m.Funcs {
		if hf == nil || !hf.Checked {
			continue
		}
		b := &funcBuilder{hir: m, types: m.Types}
		out.Funcs[id] = b.build(hf)
		out.FuncByName[hf.Name] = hf.ID
	}
	return out
}

type funcBuilder struct {
	hir   *hir.Module
	types *types.Interner
	fn    *Func

	cur  BlockID
	defs map[hir.LocalID]ValueID
	// done is set once the current block is terminated; emission becomes a
	// no-op until the builder switches blocks.
	done bool
}

func (b *funcBuilder) build(hf *hir.Func) *Func {
	b.fn = &Func{
		ID:        hf.ID,
		Name:      hf.Name,
		Flags:     hf.Flags,
		Span:      hf.Span,
		Result:    hf.Result,
		NumParams: hf.NumParams,
		Values:    []ValueInfo{{}}, // sentinel
		Payable:   hf.Flags.HasFlag(hir.FuncPayable),
		ProofIDs:  hf.ProofIDs,
	}
	b.fn.Entry = b.fn.NewBlock()
	b.cur = b.fn.Entry
	b.defs = make(map[hir.LocalID]ValueID, len(hf.Locals))
	for p := 1; p <= hf.NumParams; p++ {
		lo := hf.Local(hir.LocalID(p)) //nolint:gosec // param count is tiny
		b.defs[hir.LocalID(p)] = b.fn.NewValue(lo.Type, lo.Span) //nolint:gosec // param count is tiny
	}
	b.stmts(hf.Body)
	if !b.done {
		// Structured lowering can leave a fall-through block after nested
		// returns; unit functions return, anything else is unreachable by
		// the front end's return analysis.
		if b.types.Get(hf.Result).Kind == types.KindUnit {
			b.terminate(Terminator{Kind: TermReturn, Span: hf.Span})
		} else {
			b.terminate(Terminator{Kind: TermUnreachable, Span: hf.Span})
		}
	}
	pruneDeadPhis(b.fn)
	return b.fn
}

func (b *funcBuilder) block() *Block {
	return b.fn.Block(b.cur)
}

func (b *funcBuilder) switchTo(id BlockID) {
	b.cur = id
	b.done = false
}

func (b *funcBuilder) terminate(t Terminator) {
	if b.done {
		return
	}
	b.block().Term = t
	b.done = true
}

// emit appends an instruction to the current block, allocating its result
// value when resultTy is valid.
func (b *funcBuilder) emit(in Instr, resultTy types.TypeID) ValueID {
	if b.done {
		return NoValueID
	}
	if resultTy != types.NoTypeID && b.types.Get(resultTy).Kind != types.KindUnit {
		in.Result = b.fn.NewValue(resultTy, in.Span)
		in.Type = resultTy
	}
	blk := b.block()
	blk.Instrs = append(blk.Instrs, in)
	return in.Result
}

func (b *funcBuilder) stmts(list []hir.Stmt) {
	for i := range list {
		if b.done {
			return
		}
		b.stmt(&list[i])
	}
}

func (b *funcBuilder) stmt(s *hir.Stmt) {
	switch s.Kind {
	case hir.StmtLet:
		b.defs[s.Local] = b.expr(s.Init)

	case hir.StmtAssign:
		b.assign(s.Target, b.expr(s.Value))

	case hir.StmtExpr:
		b.expr(s.X)

	case hir.StmtReturn:
		t := Terminator{Kind: TermReturn, Span: s.Span}
		if s.X != nil && b.types.Get(s.X.Type).Kind != types.KindUnit {
			t.Value = b.expr(s.X)
			t.HasValue = true
		}
		b.terminate(t)

	case hir.StmtIf:
		b.buildIf(s)

	case hir.StmtWhile:
		b.buildWhile(s)

	case hir.StmtStateWrite:
		in := Instr{Kind: InstrStateWrite, Span: s.Span, Namespace: s.Namespace}
		if s.Key != nil {
			in.Key = b.expr(s.Key)
		}
		in.X = b.expr(s.Value)
		b.emit(in, types.NoTypeID)

	case hir.StmtStateDelete:
		in := Instr{Kind: InstrStateDelete, Span: s.Span, Namespace: s.Namespace}
		if s.Key != nil {
			in.Key = b.expr(s.Key)
		}
		b.emit(in, types.NoTypeID)

	case hir.StmtEmit:
		in := Instr{Kind: InstrEmit, Span: s.Span, Event: s.Event}
		for i := range s.Args {
			in.Args = append(in.Args, b.expr(&s.Args[i]))
		}
		b.emit(in, types.NoTypeID)

	case hir.StmtRequire:
		cond := b.expr(s.Cond)
		fail := b.fn.NewBlock()
		cont := b.fn.NewBlock()
		b.terminate(Terminator{Kind: TermCondBr, Cond: cond, Target: cont, Else: fail, Span: s.Span})
		b.switchTo(fail)
		b.terminate(Terminator{Kind: TermRevert, Msg: s.Msg, Span: s.Span})
		b.switchTo(cont)

	case hir.StmtRevert:
		b.terminate(Terminator{Kind: TermRevert, Msg: s.Msg, Span: s.Span})
	}
}

// assign rebinds a local, or rebuilds the aggregate chain for a field place.
func (b *funcBuilder) assign(target *hir.Expr, value ValueID) {
	if target.Kind == hir.ExprLocal {
		b.defs[target.Local] = value
		return
	}
	// x.f.g = v becomes x = insert(x, f, insert(extract(x, f), g, v)).
	b.defs[rootOf(target)] = b.rebuild(target, value)
}

func rootOf(e *hir.Expr) hir.LocalID {
	for e.Kind != hir.ExprLocal {
		e = e.X
	}
	return e.Local
}

func (b *funcBuilder) rebuild(place *hir.Expr, value ValueID) ValueID {
	if place.Kind == hir.ExprLocal {
		return value
	}
	base := b.placeValue(place.X)
	updated := b.emit(Instr{
		Kind:  InstrInsert,
		Span:  place.Span,
		X:     base,
		Y:     value,
		Index: place.Field.Index,
	}, place.X.Type)
	return b.rebuild(place.X, updated)
}

// placeValue evaluates a place chain for reading during an interior update.
func (b *funcBuilder) placeValue(e *hir.Expr) ValueID {
	if e.Kind == hir.ExprLocal {
		return b.defs[e.Local]
	}
	return b.emit(Instr{
		Kind:  InstrExtract,
		Span:  e.Span,
		X:     b.placeValue(e.X),
		Index: e.Field.Index,
	}, e.Type)
}

func (b *funcBuilder) buildIf(s *hir.Stmt) {
	cond := b.expr(s.Cond)
	thenB := b.fn.NewBlock()
	elseB := b.fn.NewBlock()
	b.terminate(Terminator{Kind: TermCondBr, Cond: cond, Target: thenB, Else: elseB, Span: s.Span})

	entryDefs := copyDefs(b.defs)

	b.switchTo(thenB)
	b.stmts(s.Then)
	thenExit, thenDefs, thenFalls := b.cur, copyDefs(b.defs), !b.done

	b.defs = copyDefs(entryDefs)
	b.switchTo(elseB)
	b.stmts(s.Else)
	elseExit, elseDefs, elseFalls := b.cur, copyDefs(b.defs), !b.done

	switch {
	case !thenFalls && !elseFalls:
		b.done = true
		return
	case thenFalls && !elseFalls:
		join := b.fn.NewBlock()
		b.switchTo(thenExit)
		b.terminate(Terminator{Kind: TermBr, Target: join, Span: s.Span})
		b.defs = thenDefs
		b.switchTo(join)
		return
	case !thenFalls && elseFalls:
		join := b.fn.NewBlock()
		b.switchTo(elseExit)
		b.terminate(Terminator{Kind: TermBr, Target: join, Span: s.Span})
		b.defs = elseDefs
		b.switchTo(join)
		return
	}

	join := b.fn.NewBlock()
	b.switchTo(thenExit)
	b.terminate(Terminator{Kind: TermBr, Target: join, Span: s.Span})
	b.switchTo(elseExit)
	b.terminate(Terminator{Kind: TermBr, Target: join, Span: s.Span})
	b.switchTo(join)

	// Phi merge for bindings whose definitions diverged. Dead phis are
	// pruned after the function is complete.
	merged := copyDefs(entryDefs)
	for l, tv := range thenDefs {
		ev, ok := elseDefs[l]
		if !ok {
			continue // then-scope binding, dead after the join
		}
		if tv == ev {
			merged[l] = tv
			continue
		}
		phi := Phi{
			Result: b.fn.NewValue(b.fn.ValueType(tv), s.Span),
			Type:   b.fn.ValueType(tv),
			Operands: []PhiOperand{
				{Pred: thenExit, Value: tv},
				{Pred: elseExit, Value: ev},
			},
		}
		jb := b.fn.Block(join)
		jb.Phis = append(jb.Phis, phi)
		merged[l] = phi.Result
	}
	b.defs = merged
}

func (b *funcBuilder) buildWhile(s *hir.Stmt) {
	mutated := map[hir.LocalID]bool{}
	collectMutated(s.Body, mutated)

	header := b.fn.NewBlock()
	preExit := b.cur
	b.terminate(Terminator{Kind: TermBr, Target: header, Span: s.Span})

	// Loop-header phis for every var binding mutated in the body, seeded
	// with the pre-loop value; the back-edge operand is patched after the
	// body is built.
	entryDefs := copyDefs(b.defs)
	b.switchTo(header)
	headerPhis := make(map[hir.LocalID]int)
	for l := range mutated {
		pre, ok := entryDefs[l]
		if !ok {
			continue // declared inside the loop body
		}
		ty := b.fn.ValueType(pre)
		phi := Phi{
			Result:   b.fn.NewValue(ty, s.Span),
			Type:     ty,
			Operands: []PhiOperand{{Pred: preExit, Value: pre}},
		}
		hb := b.fn.Block(header)
		headerPhis[l] = len(hb.Phis)
		hb.Phis = append(hb.Phis, phi)
		b.defs[l] = phi.Result
	}
	headerDefs := copyDefs(b.defs)

	cond := b.expr(s.Cond)
	bodyB := b.fn.NewBlock()
	exitB := b.fn.NewBlock()
	b.terminate(Terminator{Kind: TermCondBr, Cond: cond, Target: bodyB, Else: exitB, Span: s.Span})

	b.switchTo(bodyB)
	b.stmts(s.Body)
	if !b.done {
		bodyExit := b.cur
		b.terminate(Terminator{Kind: TermBr, Target: header, Span: s.Span})
		hb := b.fn.Block(header)
		for l, idx := range headerPhis {
			hb.Phis[idx].Operands = append(hb.Phis[idx].Operands, PhiOperand{
				Pred:  bodyExit,
				Value: b.defs[l],
			})
		}
	}
	// When the body never reaches the back edge the header phi degenerates
	// to its seed; the operand list stays consistent with predecessors.

	b.defs = headerDefs
	b.switchTo(exitB)
}

func collectMutated(stmts []hir.Stmt, out map[hir.LocalID]bool) {
	for i := range stmts {
		s := &stmts[i]
		if s.Kind == hir.StmtAssign {
			out[rootOf(s.Target)] = true
		}
		collectMutated(s.Then, out)
		collectMutated(s.Else, out)
		collectMutated(s.Body, out)
	}
}

func copyDefs(in map[hir.LocalID]ValueID) map[hir.LocalID]ValueID {
	out := make(map[hir.LocalID]ValueID, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// pruneDeadPhis drops phis whose results are never used, iterating because
// phis can keep each other alive in cycles.
func pruneDeadPhis(f *Func) {
	for {
		used := make(map[ValueID]bool)
		var ops []ValueID
		for bi := range f.Blocks {
			blk := &f.Blocks[bi]
			for ii := range blk.Instrs {
				ops = blk.Instrs[ii].Uses(ops[:0])
				for _, v := range ops {
					used[v] = true
				}
			}
			for pi := range blk.Phis {
				for _, op := range blk.Phis[pi].Operands {
					if op.Value != blk.Phis[pi].Result {
						used[op.Value] = true
					}
				}
			}
			if blk.Term.Cond.IsValid() {
				used[blk.Term.Cond] = true
			}
			if blk.Term.HasValue {
				used[blk.Term.Value] = true
			}
		}
		changed := false
		for bi := range f.Blocks {
			blk := &f.Blocks[bi]
			kept := blk.Phis[:0]
			for _, phi := range blk.Phis {
				if used[phi.Result] {
					kept = append(kept, phi)
				} else {
					changed = true
				}
			}
			blk.Phis = kept
		}
		if !changed {
			return
		}
	}
}
