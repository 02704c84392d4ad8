package ssa

// inlineMaxInstrs caps the body size of inlining candidates.
const inlineMaxInstrs = 8

// Inline replaces calls to small single-block functions with a copy of the
// callee body. Candidates must return (not revert), stay under
// inlineMaxInstrs, and make no calls of their own, which also rules out
// recursion.
func Inline(m *Module) {
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		inlineFunc(m, f)
	}
}

func inlineCandidate(m *Module, callee *Func) bool {
	if callee == nil || len(callee.Blocks) != 1 {
		return false
	}
	blk := &callee.Blocks[0]
	if blk.Term.Kind != TermReturn || len(blk.Instrs) > inlineMaxInstrs {
		return false
	}
	for ii := range blk.Instrs {
		if blk.Instrs[ii].Kind == InstrCall {
			return false
		}
	}
	return true
}

func inlineFunc(m *Module, f *Func) {
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		out := make([]Instr, 0, len(blk.Instrs))
		for _, in := range blk.Instrs {
			if in.Kind != InstrCall || !inlineCandidate(m, m.Func(in.Callee)) {
				out = append(out, in)
				continue
			}
			callee := m.Func(in.Callee)
			cbody := &callee.Blocks[0]

			// Map callee values into the caller: parameters to the call
			// arguments, instruction results to fresh caller values.
			remap := make(map[ValueID]ValueID, len(callee.Values))
			for p := 0; p < callee.NumParams && p < len(in.Args); p++ {
				remap[ValueID(p+1)] = in.Args[p] //nolint:gosec // param count is tiny
			}
			for _, cin := range cbody.Instrs {
				clone := cin
				clone.Span = in.Span
				clone.X = remapValid(remap, cin.X)
				clone.Y = remapValid(remap, cin.Y)
				clone.Key = remapValid(remap, cin.Key)
				if len(cin.Args) > 0 {
					clone.Args = make([]ValueID, len(cin.Args))
					for ai, a := range cin.Args {
						clone.Args[ai] = remapValid(remap, a)
					}
				}
				if cin.Result.IsValid() {
					clone.Result = f.NewValue(callee.ValueType(cin.Result), in.Span)
					remap[cin.Result] = clone.Result
				}
				out = append(out, clone)
			}

			// Downstream uses of the call result now read the remapped
			// return operand.
			if in.Result.IsValid() && cbody.Term.HasValue {
				ret := remapValid(remap, cbody.Term.Value)
				alias := in.Result
				rewriteUses(f, func(v ValueID) ValueID {
					if v == alias {
						return ret
					}
					return v
				})
			}
		}
		blk.Instrs = out
	}
}

func remapValid(remap map[ValueID]ValueID, v ValueID) ValueID {
	if !v.IsValid() {
		return v
	}
	if nv, ok := remap[v]; ok {
		return nv
	}
	return v
}
