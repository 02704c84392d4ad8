package ssa

// EliminateDeadCode removes provably dead code: blocks unreachable from the
// entry and effect-free instructions whose results are never used. Only the
// optimizer removes blocks; the analyzer treats them as dead but leaves them
// in place.
func EliminateDeadCode(f *Func) {
	removeUnreachable(f)
	removeDeadInstrs(f)
	pruneDeadPhis(f)
}

func removeUnreachable(f *Func) {
	reachable := make(map[BlockID]bool, len(f.Blocks))
	stack := []BlockID{f.Entry}
	var succs []BlockID
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[id] {
			continue
		}
		reachable[id] = true
		succs = f.Block(id).Successors(succs[:0])
		stack = append(stack, succs...)
	}
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		if reachable[blk.ID] {
			// Drop phi operands arriving over edges from dead blocks.
			for pi := range blk.Phis {
				kept := blk.Phis[pi].Operands[:0]
				for _, op := range blk.Phis[pi].Operands {
					if reachable[op.Pred] {
						kept = append(kept, op)
					}
				}
				blk.Phis[pi].Operands = kept
			}
			continue
		}
		// Gut the block in place; renumbering would invalidate branch
		// targets everywhere else.
		blk.Phis = nil
		blk.Instrs = nil
		blk.Term = Terminator{Kind: TermUnreachable, Span: blk.Term.Span}
	}

	// Single-operand phis degenerate to a copy; rewrite their uses.
	replace := make(map[ValueID]ValueID)
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		kept := blk.Phis[:0]
		for _, phi := range blk.Phis {
			if len(phi.Operands) == 1 {
				replace[phi.Result] = phi.Operands[0].Value
			} else {
				kept = append(kept, phi)
			}
		}
		blk.Phis = kept
	}
	if len(replace) > 0 {
		// Chase chains so a phi feeding a degenerate phi resolves fully.
		resolve := func(v ValueID) ValueID {
			for {
				next, ok := replace[v]
				if !ok {
					return v
				}
				v = next
			}
		}
		rewriteUses(f, resolve)
	}
}

func rewriteUses(f *Func, resolve func(ValueID) ValueID) {
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for pi := range blk.Phis {
			for oi := range blk.Phis[pi].Operands {
				blk.Phis[pi].Operands[oi].Value = resolve(blk.Phis[pi].Operands[oi].Value)
			}
		}
		for ii := range blk.Instrs {
			in := &blk.Instrs[ii]
			in.X = resolveValid(resolve, in.X)
			in.Y = resolveValid(resolve, in.Y)
			in.Key = resolveValid(resolve, in.Key)
			for ai := range in.Args {
				in.Args[ai] = resolve(in.Args[ai])
			}
		}
		if blk.Term.Cond.IsValid() {
			blk.Term.Cond = resolve(blk.Term.Cond)
		}
		if blk.Term.HasValue {
			blk.Term.Value = resolve(blk.Term.Value)
		}
	}
}

func resolveValid(resolve func(ValueID) ValueID, v ValueID) ValueID {
	if !v.IsValid() {
		return v
	}
	return resolve(v)
}

func removeDeadInstrs(f *Func) {
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
					used[op.Value] = true
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
			kept := blk.Instrs[:0]
			for _, in := range blk.Instrs {
				if in.HasEffect() || !in.Result.IsValid() || used[in.Result] {
					kept = append(kept, in)
				} else {
					changed = true
				}
			}
			blk.Instrs = kept
		}
		if !changed {
			return
		}
	}
}
