package ssa

import (
	"errors"
	"fmt"

	"sable/internal/types"
)

// Validate checks SSA module invariants. Returns an error describing every
// violation found; nil means the module is well formed.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := validateFunc(f, m.Types); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(f *Func, in *types.Interner) error {
	var errs []error
	if err := validateTerminated(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateTargets(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateSingleAssignment(f); err != nil {
		errs = append(errs, err)
	}
	if err := validatePhis(f, in); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateTerminated checks that every block ends in exactly one terminator.
func validateTerminated(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
	}
	return errors.Join(errs...)
}

// validateTargets checks that all branch targets exist.
func validateTargets(f *Func) error {
	var errs []error
	var succs []BlockID
	for i := range f.Blocks {
		succs = f.Blocks[i].Successors(succs[:0])
		for _, s := range succs {
			if int(s) >= len(f.Blocks) {
				errs = append(errs, fmt.Errorf("bb%d: branch to missing bb%d", i, s))
			}
		}
	}
	return errors.Join(errs...)
}

// validateSingleAssignment checks that each value is defined exactly once.
func validateSingleAssignment(f *Func) error {
	var errs []error
	defined := make(map[ValueID]bool, len(f.Values))
	define := func(v ValueID, where string) {
		if !v.IsValid() {
			return
		}
		if defined[v] {
			errs = append(errs, fmt.Errorf("%s: value v%d defined twice", where, v))
		}
		defined[v] = true
	}
	for p := 1; p <= f.NumParams; p++ {
		define(ValueID(p), "params") //nolint:gosec // param count is tiny
	}
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for pi := range blk.Phis {
			define(blk.Phis[pi].Result, fmt.Sprintf("bb%d phi", bi))
		}
		for ii := range blk.Instrs {
			define(blk.Instrs[ii].Result, fmt.Sprintf("bb%d", bi))
		}
	}
	return errors.Join(errs...)
}

// validatePhis checks operand count against predecessor count and operand
// type agreement.
func validatePhis(f *Func, in *types.Interner) error {
	var errs []error
	preds := f.Predecessors()
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for pi := range blk.Phis {
			phi := &blk.Phis[pi]
			if len(phi.Operands) != len(preds[blk.ID]) {
				errs = append(errs, fmt.Errorf(
					"bb%d: phi v%d has %d operands for %d predecessors",
					bi, phi.Result, len(phi.Operands), len(preds[blk.ID])))
			}
			for _, op := range phi.Operands {
				ot := f.ValueType(op.Value)
				if ot != phi.Type && ot != types.NoTypeID {
					errs = append(errs, fmt.Errorf(
						"bb%d: phi v%d operand from bb%d has type %s, want %s",
						bi, phi.Result, op.Pred, in.String(ot), in.String(phi.Type)))
				}
			}
		}
	}
	return errors.Join(errs...)
}
