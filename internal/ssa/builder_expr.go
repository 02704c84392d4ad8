package ssa

import (
	"sable/internal/hir"
	"sable/internal/types"
)

var hirOps = map[hir.BinOp]Op{
	hir.BinAdd: OpAdd, hir.BinSub: OpSub, hir.BinMul: OpMul,
	hir.BinDiv: OpDiv, hir.BinMod: OpMod,
	hir.BinAnd: OpAnd, hir.BinOr: OpOr, hir.BinXor: OpXor,
	hir.BinShl: OpShl, hir.BinShr: OpShr,
	hir.BinEq: OpEq, hir.BinNe: OpNe,
	hir.BinLt: OpLt, hir.BinLe: OpLe, hir.BinGt: OpGt, hir.BinGe: OpGe,
}

func (b *funcBuilder) expr(e *hir.Expr) ValueID {
	if e == nil || b.done {
		return NoValueID
	}
	switch e.Kind {
	case hir.ExprIntLit:
		return b.emit(Instr{
			Kind: InstrConst,
			Span: e.Span,
			Const: Const{
				Kind:     b.types.Get(e.Type).Kind,
				IntValue: e.IntValue,
				IntNeg:   e.IntNeg,
				IntWide:  e.IntWide,
				IntText:  e.IntText,
			},
		}, e.Type)

	case hir.ExprBoolLit:
		return b.emit(Instr{
			Kind:  InstrConst,
			Span:  e.Span,
			Const: Const{Kind: types.KindBool, Bool: e.BoolValue},
		}, e.Type)

	case hir.ExprStringLit:
		return b.emit(Instr{
			Kind:  InstrConst,
			Span:  e.Span,
			Const: Const{Kind: types.KindString, Str: e.StrValue},
		}, e.Type)

	case hir.ExprAddressLit:
		return b.emit(Instr{
			Kind:  InstrConst,
			Span:  e.Span,
			Const: Const{Kind: types.KindAddress, Str: e.StrValue},
		}, e.Type)

	case hir.ExprLocal:
		return b.defs[e.Local]

	case hir.ExprUnary:
		x := b.expr(e.X)
		kind := InstrNeg
		if e.Un == hir.UnNot {
			kind = InstrNot
		}
		return b.emit(Instr{Kind: kind, Span: e.Span, X: x}, e.Type)

	case hir.ExprBinary:
		if e.Bin == hir.BinLogicAnd || e.Bin == hir.BinLogicOr {
			return b.shortCircuit(e)
		}
		x := b.expr(e.X)
		y := b.expr(e.Y)
		return b.emit(Instr{
			Kind: InstrBin,
			Span: e.Span,
			Op:   hirOps[e.Bin],
			Mode: e.Mode,
			X:    x,
			Y:    y,
		}, e.Type)

	case hir.ExprCall:
		in := Instr{Kind: InstrCall, Span: e.Span, Callee: e.Callee}
		if e.Recv != nil {
			// Receiver evaluation happens for its ownership effects; the
			// callee reaches shared data through state, not through self.
			b.expr(e.Recv)
		}
		for i := range e.Args {
			in.Args = append(in.Args, b.expr(&e.Args[i]))
		}
		return b.emit(in, e.Type)

	case hir.ExprField, hir.ExprTupleIndex:
		return b.emit(Instr{
			Kind:  InstrExtract,
			Span:  e.Span,
			X:     b.expr(e.X),
			Index: e.Field.Index,
		}, e.Type)

	case hir.ExprTuple:
		in := Instr{Kind: InstrAggregate, Span: e.Span}
		for i := range e.Elems {
			in.Args = append(in.Args, b.expr(&e.Elems[i]))
		}
		return b.emit(in, e.Type)

	case hir.ExprStruct:
		in := Instr{Kind: InstrAggregate, Span: e.Span}
		for i := range e.StructFields {
			in.Args = append(in.Args, b.expr(&e.StructFields[i]))
		}
		return b.emit(in, e.Type)

	case hir.ExprStateRead:
		in := Instr{Kind: InstrStateRead, Span: e.Span, Namespace: e.Namespace}
		if e.Key != nil {
			in.Key = b.expr(e.Key)
		}
		return b.emit(in, e.Type)

	case hir.ExprStateExists:
		in := Instr{Kind: InstrStateExists, Span: e.Span, Namespace: e.Namespace}
		if e.Key != nil {
			in.Key = b.expr(e.Key)
		}
		return b.emit(in, e.Type)

	case hir.ExprCtx:
		return b.emit(Instr{Kind: InstrCtx, Span: e.Span, CtxQuery: e.CtxQuery}, e.Type)

	case hir.ExprHash:
		return b.emit(Instr{Kind: InstrHash, Span: e.Span, X: b.expr(e.X)}, e.Type)

	default:
		return NoValueID
	}
}

// shortCircuit lowers logical and/or into control flow with a bool phi.
func (b *funcBuilder) shortCircuit(e *hir.Expr) ValueID {
	x := b.expr(e.X)
	firstExit := b.cur
	rhsB := b.fn.NewBlock()
	joinB := b.fn.NewBlock()

	t := Terminator{Kind: TermCondBr, Cond: x, Span: e.Span}
	if e.Bin == hir.BinLogicAnd {
		t.Target, t.Else = rhsB, joinB
	} else {
		t.Target, t.Else = joinB, rhsB
	}
	b.terminate(t)

	b.switchTo(rhsB)
	y := b.expr(e.Y)
	rhsExit := b.cur
	b.terminate(Terminator{Kind: TermBr, Target: joinB, Span: e.Span})

	b.switchTo(joinB)
	phi := Phi{
		Result: b.fn.NewValue(e.Type, e.Span),
		Type:   e.Type,
		Operands: []PhiOperand{
			{Pred: firstExit, Value: x},
			{Pred: rhsExit, Value: y},
		},
	}
	jb := b.fn.Block(joinB)
	jb.Phis = append(jb.Phis, phi)
	return phi.Result
}
