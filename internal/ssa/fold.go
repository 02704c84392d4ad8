package ssa

import (
	"sable/internal/types"
)

// FoldConstants rewrites instructions whose operands are known constants.
// Default-mode arithmetic folds only when the result is provably in range
// for the operand type's width; an operation that would overflow at
// runtime keeps its injected check and aborts there rather than at
// compile time.
func FoldConstants(f *Func, ty *types.Interner) {
	known := make(map[ValueID]Const)
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for ii := range blk.Instrs {
			in := &blk.Instrs[ii]
			switch in.Kind {
			case InstrConst:
				if !in.Const.IntWide {
					known[in.Result] = in.Const
				}
			case InstrNot:
				if c, ok := known[in.X]; ok && c.Kind == types.KindBool {
					fold(in, Const{Kind: types.KindBool, Bool: !c.Bool})
					known[in.Result] = in.Const
				}
			case InstrBin:
				x, okx := known[in.X]
				y, oky := known[in.Y]
				if !okx || !oky {
					continue
				}
				if c, ok := foldBin(in, x, y, typeMax(ty, in.Type)); ok {
					fold(in, c)
					known[in.Result] = c
				}
			}
		}
		// Constant conditions collapse the branch.
		if blk.Term.Kind == TermCondBr {
			if c, ok := known[blk.Term.Cond]; ok && c.Kind == types.KindBool {
				target := blk.Term.Target
				if !c.Bool {
					target = blk.Term.Else
				}
				blk.Term = Terminator{Kind: TermBr, Target: target, Span: blk.Term.Span}
			}
		}
	}
}

func fold(in *Instr, c Const) {
	*in = Instr{
		Kind:   InstrConst,
		Result: in.Result,
		Type:   in.Type,
		Span:   in.Span,
		Const:  c,
	}
}

// typeMax returns the largest unsigned value the type holds; full-word
// for anything that is not a narrow unsigned integer.
func typeMax(ty *types.Interner, id types.TypeID) uint64 {
	t := ty.Get(id)
	if t.Kind == types.KindUint && t.Width < 64 {
		return (uint64(1) << t.Width) - 1
	}
	return ^uint64(0)
}

// foldBin evaluates a binary op over unsigned 64-bit constants; limit is
// the operand type's largest value. Signed and wide operands are left to
// the runtime check; comparisons fold freely.
func foldBin(in *Instr, x, y Const, limit uint64) (Const, bool) {
	if x.Kind != types.KindUint || y.Kind != types.KindUint || x.IntNeg || y.IntNeg {
		return Const{}, false
	}
	a, b := x.IntValue, y.IntValue
	boolC := func(v bool) (Const, bool) { return Const{Kind: types.KindBool, Bool: v}, true }
	uintC := func(v uint64) (Const, bool) { return Const{Kind: types.KindUint, IntValue: v}, true }
	switch in.Op {
	case OpEq:
		return boolC(a == b)
	case OpNe:
		return boolC(a != b)
	case OpLt:
		return boolC(a < b)
	case OpLe:
		return boolC(a <= b)
	case OpGt:
		return boolC(a > b)
	case OpGe:
		return boolC(a >= b)
	case OpAnd:
		return uintC(a & b)
	case OpOr:
		return uintC(a | b)
	case OpXor:
		return uintC(a ^ b)
	}
	if in.Mode != ModeDefault {
		// Explicit-mode ops have defined fallbacks; folding them is legal
		// but rarely worth the spread of cases. Leave them to the backend.
		return Const{}, false
	}
	switch in.Op {
	case OpAdd:
		if s, ok := AddUint64Checked(a, b); ok && s <= limit {
			return uintC(s)
		}
	case OpSub:
		if d, ok := SubUint64Checked(a, b); ok {
			return uintC(d)
		}
	case OpMul:
		if p, ok := MulUint64Checked(a, b); ok && p <= limit {
			return uintC(p)
		}
	case OpDiv:
		if b != 0 {
			return uintC(a / b)
		}
	case OpMod:
		if b != 0 {
			return uintC(a % b)
		}
	}
	return Const{}, false
}
