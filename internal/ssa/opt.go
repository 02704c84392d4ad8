package ssa

// Optimize runs the semantics-preserving pass pipeline over every function:
// inlining, then constant folding, then dead-code elimination. Passes never
// change observable behavior: state accesses, logs, reverts and overflow
// aborts all survive. Runs after the conflict-domain analyzer sealed its
// sets, so removing a dead state read cannot change scheduling facts.
func Optimize(m *Module) {
	Inline(m)
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		FoldConstants(f, m.Types)
		EliminateDeadCode(f)
	}
}
