package backend

import (
	"fmt"

	"sable/internal/bytecode"
	"sable/internal/diag"
	"sable/internal/hostabi"
	"sable/internal/ssa"
	"sable/internal/types"
)

// Arithmetic lowering. The VM computes raw 64-bit two's complement and
// traps only on division by zero (and the 64-bit MIN/-1 quotient); every
// other overflow obligation is discharged here. Default mode aborts via
// sys/1.abort, wrapping masks to the operand width, saturating clamps,
// checked produces a (value, ok) tuple.

func (f *funcLowerer) emitAbort(code hostabi.AbortCode) {
	f.pushConstWord(uint64(code))
	f.hostCall("sys", 1, "abort")
}

func maxUnsigned(w uint32) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

func maxSigned(w uint32) uint64 {
	return (uint64(1) << (w - 1)) - 1
}

// minSigned returns the 64-bit two's complement representation of the
// width's minimum value.
func minSigned(w uint32) uint64 {
	return uint64(int64(-1) << (w - 1)) //nolint:gosec // two's complement
}

// intShape reports the signedness and bit width of an integer type.
func (f *funcLowerer) intShape(id types.TypeID) (signed bool, width uint32) {
	t := f.ty.Get(id)
	return t.Kind == types.KindInt, uint32(t.Width)
}

// resultSlot returns the local slot checked sequences spill through: the
// value's own slot when it has one, the shared scratch slot otherwise.
func (f *funcLowerer) resultSlot(v ssa.ValueID) uint32 {
	if v.IsValid() && f.l.class[v] == classLocal {
		return f.l.slot[v]
	}
	return f.scratch()
}

// maskToWidth truncates the top of stack to w bits, sign-extending when
// signed. No-op at full width.
func (f *funcLowerer) maskToWidth(signed bool, w uint32) {
	if w >= 64 {
		return
	}
	if signed {
		f.pushConstWord(uint64(64 - w))
		f.emit(bytecode.OpShl)
		f.pushConstWord(uint64(64 - w))
		f.emit(bytecode.OpShrS)
		return
	}
	f.pushConstWord(maxUnsigned(w))
	f.emit(bytecode.OpAnd)
}

func (f *funcLowerer) lowerBin(in *ssa.Instr) {
	if in.Op.IsComparison() {
		f.lowerCompare(in)
		return
	}
	switch in.Op {
	case ssa.OpAnd, ssa.OpOr, ssa.OpXor, ssa.OpShl, ssa.OpShr:
		f.lowerBitwise(in)
		return
	}

	// A checked op's own type is the (value, ok) pair; the operand type
	// carries the arithmetic shape.
	shapeTy := in.Type
	if in.Mode == ssa.ModeChecked {
		shapeTy = f.fn.Values[in.X].Type
	}
	signed, w := f.intShape(shapeTy)
	if w > 64 {
		diag.ReportError(f.ml.rep, diag.LowerValueTooLarge, in.Span,
			fmt.Sprintf("%d-bit arithmetic is not supported by the target", w)).
			Emit()
		f.ok = false
		return
	}

	switch in.Mode {
	case ssa.ModeWrapping:
		f.pushVal(in.X)
		f.pushVal(in.Y)
		f.emit(f.rawOp(in.Op, signed))
		f.maskToWidth(signed, w)
		f.storeResult(in.Result)
	case ssa.ModeDefault:
		s := f.resultSlot(in.Result)
		f.checkedCompute(in, signed, w, s, func() {
			f.emitAbort(hostabi.AbortOverflow)
		})
	case ssa.ModeSaturating:
		s := f.resultSlot(in.Result)
		f.checkedCompute(in, signed, w, s, func() {
			f.pushClamp(in, signed, w)
			f.emitA(bytecode.OpLocalSet, s)
		})
	case ssa.ModeChecked:
		s := f.scratch()
		dead := !in.Result.IsValid() || f.l.class[in.Result] == classNone
		done := f.newLabel()
		f.checkedCompute(in, signed, w, s, func() {
			if !dead {
				base := f.l.slot[in.Result]
				f.pushConstWord(0)
				f.emitA(bytecode.OpMemStore, base)
				f.pushConstWord(0)
				f.emitA(bytecode.OpMemStore, base+8)
			}
			f.branch(bytecode.OpBr, done)
		})
		if !dead {
			base := f.l.slot[in.Result]
			f.emitA(bytecode.OpLocalGet, s)
			f.emitA(bytecode.OpMemStore, base)
			f.pushConstWord(1)
			f.emitA(bytecode.OpMemStore, base+8)
		}
		f.bind(done)
	}
}

// rawOp maps an SSA arithmetic operator to the VM opcode.
func (f *funcLowerer) rawOp(op ssa.Op, signed bool) bytecode.Opcode {
	switch op {
	case ssa.OpAdd:
		return bytecode.OpAdd
	case ssa.OpSub:
		return bytecode.OpSub
	case ssa.OpMul:
		return bytecode.OpMul
	case ssa.OpDiv:
		if signed {
			return bytecode.OpDivS
		}
		return bytecode.OpDivU
	case ssa.OpMod:
		if signed {
			return bytecode.OpRemS
		}
		return bytecode.OpRemU
	}
	panic(fmt.Sprintf("not an arithmetic op: %v", op))
}

// checkedCompute computes in's raw result into slot s and runs the
// overflow detection; onOverflow is emitted on the failing path and must
// either trap or leave s holding the substitute value.
func (f *funcLowerer) checkedCompute(in *ssa.Instr, signed bool, w uint32, s uint32, onOverflow func()) {
	ok := f.newLabel()

	// Unsigned subtraction underflows before the raw op runs; everything
	// else checks the spilled result.
	if !signed && in.Op == ssa.OpSub {
		f.pushVal(in.X)
		f.pushVal(in.Y)
		f.emit(bytecode.OpLtU)
		f.branch(bytecode.OpBrIfNot, ok)
		onOverflow()
		// A trapping onOverflow never reaches here; a clamping one needs
		// to skip the raw op.
		skipped := f.newLabel()
		f.branch(bytecode.OpBr, skipped)
		f.bind(ok)
		f.pushVal(in.X)
		f.pushVal(in.Y)
		f.emit(bytecode.OpSub)
		f.emitA(bytecode.OpLocalSet, s)
		f.bind(skipped)
		return
	}

	f.pushVal(in.X)
	f.pushVal(in.Y)
	f.emit(f.rawOp(in.Op, signed))
	f.emitA(bytecode.OpLocalSet, s)

	switch {
	case in.Op == ssa.OpDiv || in.Op == ssa.OpMod:
		if !signed || w >= 64 {
			// Division by zero and 64-bit MIN/-1 trap natively; nothing
			// representable overflows.
			f.bind(ok)
			return
		}
		// Narrow signed MIN/-1 must be caught by the fit check below.
		f.signFitCheck(s, w, ok)
	case !signed && w < 64:
		// Result fits the width iff it is below 2^w.
		f.emitA(bytecode.OpLocalGet, s)
		f.pushConstWord(maxUnsigned(w) + 1)
		f.emit(bytecode.OpLtU)
		f.branch(bytecode.OpBrIf, ok)
	case !signed:
		f.unsigned64Check(in, s, ok)
	case w < 64:
		f.signFitCheck(s, w, ok)
	default:
		f.signed64Check(in, s, ok)
	}
	onOverflow()
	f.bind(ok)
}

// signFitCheck jumps to ok when slot s sign-extends to itself at width w.
func (f *funcLowerer) signFitCheck(s, w uint32, ok label) {
	f.emitA(bytecode.OpLocalGet, s)
	f.pushConstWord(uint64(64 - w))
	f.emit(bytecode.OpShl)
	f.pushConstWord(uint64(64 - w))
	f.emit(bytecode.OpShrS)
	f.emitA(bytecode.OpLocalGet, s)
	f.emit(bytecode.OpEq)
	f.branch(bytecode.OpBrIf, ok)
}

func (f *funcLowerer) unsigned64Check(in *ssa.Instr, s uint32, ok label) {
	switch in.Op {
	case ssa.OpAdd:
		// r < x iff the addition wrapped.
		f.emitA(bytecode.OpLocalGet, s)
		f.pushVal(in.X)
		f.emit(bytecode.OpLtU)
		f.branch(bytecode.OpBrIfNot, ok)
	case ssa.OpMul:
		// x == 0, or r / x == y.
		f.pushVal(in.X)
		f.emit(bytecode.OpEqz)
		f.branch(bytecode.OpBrIf, ok)
		f.emitA(bytecode.OpLocalGet, s)
		f.pushVal(in.X)
		f.emit(bytecode.OpDivU)
		f.pushVal(in.Y)
		f.emit(bytecode.OpEq)
		f.branch(bytecode.OpBrIf, ok)
	default:
		panic(fmt.Sprintf("no unsigned overflow check for %v", in.Op))
	}
}

func (f *funcLowerer) signed64Check(in *ssa.Instr, s uint32, ok label) {
	switch in.Op {
	case ssa.OpAdd:
		// Overflow iff both operands disagree in sign with the result:
		// ((r^x) & (r^y)) >> 63.
		f.emitA(bytecode.OpLocalGet, s)
		f.pushVal(in.X)
		f.emit(bytecode.OpXor)
		f.emitA(bytecode.OpLocalGet, s)
		f.pushVal(in.Y)
		f.emit(bytecode.OpXor)
		f.emit(bytecode.OpAnd)
		f.pushConstWord(63)
		f.emit(bytecode.OpShrU)
		f.emit(bytecode.OpEqz)
		f.branch(bytecode.OpBrIf, ok)
	case ssa.OpSub:
		// Overflow iff operands disagree in sign and the result took y's:
		// ((x^y) & (x^r)) >> 63.
		f.pushVal(in.X)
		f.pushVal(in.Y)
		f.emit(bytecode.OpXor)
		f.pushVal(in.X)
		f.emitA(bytecode.OpLocalGet, s)
		f.emit(bytecode.OpXor)
		f.emit(bytecode.OpAnd)
		f.pushConstWord(63)
		f.emit(bytecode.OpShrU)
		f.emit(bytecode.OpEqz)
		f.branch(bytecode.OpBrIf, ok)
	case ssa.OpMul:
		// x == 0, or r / x == y. The retrace divides by x, so x == -1
		// with a wrapped result of MIN would trap natively on MIN / -1;
		// that pair is always an overflow, and saturating and checked
		// mode substitute a value there instead of trapping. Catch it
		// before the division.
		bad := f.newLabel()
		f.pushVal(in.X)
		f.emit(bytecode.OpEqz)
		f.branch(bytecode.OpBrIf, ok)
		f.pushVal(in.X)
		f.pushConstWord(^uint64(0))
		f.emit(bytecode.OpEq)
		f.emitA(bytecode.OpLocalGet, s)
		f.pushConstWord(minSigned(64))
		f.emit(bytecode.OpEq)
		f.emit(bytecode.OpAnd)
		f.branch(bytecode.OpBrIf, bad)
		f.emitA(bytecode.OpLocalGet, s)
		f.pushVal(in.X)
		f.emit(bytecode.OpDivS)
		f.pushVal(in.Y)
		f.emit(bytecode.OpEq)
		f.branch(bytecode.OpBrIf, ok)
		f.bind(bad)
	default:
		panic(fmt.Sprintf("no signed overflow check for %v", in.Op))
	}
}

// pushClamp pushes the saturation value for an overflowed operation.
func (f *funcLowerer) pushClamp(in *ssa.Instr, signed bool, w uint32) {
	if !signed {
		if in.Op == ssa.OpSub {
			f.pushConstWord(0)
			return
		}
		f.pushConstWord(maxUnsigned(w))
		return
	}
	if in.Op == ssa.OpDiv {
		// Only MIN / -1 overflows, toward positive.
		f.pushConstWord(maxSigned(w))
		return
	}
	// Direction follows the sign of x (add/sub) or of x^y (mul).
	neg := f.newLabel()
	done := f.newLabel()
	f.pushVal(in.X)
	if in.Op == ssa.OpMul {
		f.pushVal(in.Y)
		f.emit(bytecode.OpXor)
	}
	f.pushConstWord(63)
	f.emit(bytecode.OpShrU)
	f.branch(bytecode.OpBrIf, neg)
	f.pushConstWord(maxSigned(w))
	f.branch(bytecode.OpBr, done)
	f.bind(neg)
	f.pushConstWord(minSigned(w))
	f.bind(done)
}

func (f *funcLowerer) lowerCompare(in *ssa.Instr) {
	signed, _ := f.intShape(f.fn.Values[in.X].Type)
	f.pushVal(in.X)
	f.pushVal(in.Y)
	var op bytecode.Opcode
	switch in.Op {
	case ssa.OpEq:
		op = bytecode.OpEq
	case ssa.OpNe:
		op = bytecode.OpNe
	case ssa.OpLt:
		op = pick(signed, bytecode.OpLtS, bytecode.OpLtU)
	case ssa.OpLe:
		op = pick(signed, bytecode.OpLeS, bytecode.OpLeU)
	case ssa.OpGt:
		op = pick(signed, bytecode.OpGtS, bytecode.OpGtU)
	case ssa.OpGe:
		op = pick(signed, bytecode.OpGeS, bytecode.OpGeU)
	}
	f.emit(op)
	f.storeResult(in.Result)
}

func pick(signed bool, s, u bytecode.Opcode) bytecode.Opcode {
	if signed {
		return s
	}
	return u
}

func (f *funcLowerer) lowerBitwise(in *ssa.Instr) {
	signed, w := f.intShape(in.Type)
	f.pushVal(in.X)
	f.pushVal(in.Y)
	switch in.Op {
	case ssa.OpAnd:
		f.emit(bytecode.OpAnd)
	case ssa.OpOr:
		f.emit(bytecode.OpOr)
	case ssa.OpXor:
		f.emit(bytecode.OpXor)
	case ssa.OpShl:
		f.emit(bytecode.OpShl)
		f.maskToWidth(signed, w)
	case ssa.OpShr:
		f.emit(pick(signed, bytecode.OpShrS, bytecode.OpShrU))
	}
	f.storeResult(in.Result)
}

func (f *funcLowerer) lowerNeg(in *ssa.Instr) {
	signed, w := f.intShape(in.Type)
	switch in.Mode {
	case ssa.ModeWrapping:
		f.pushConstWord(0)
		f.pushVal(in.X)
		f.emit(bytecode.OpSub)
		f.maskToWidth(signed, w)
		f.storeResult(in.Result)
	default:
		// Negation overflows only at the width's minimum.
		ok := f.newLabel()
		f.pushVal(in.X)
		f.pushConstWord(minSigned(w))
		f.emit(bytecode.OpEq)
		f.branch(bytecode.OpBrIfNot, ok)
		if in.Mode == ssa.ModeSaturating {
			done := f.newLabel()
			f.pushConstWord(maxSigned(w))
			f.storeResult(in.Result)
			f.branch(bytecode.OpBr, done)
			f.bind(ok)
			f.pushConstWord(0)
			f.pushVal(in.X)
			f.emit(bytecode.OpSub)
			f.storeResult(in.Result)
			f.bind(done)
			return
		}
		f.emitAbort(hostabi.AbortOverflow)
		f.bind(ok)
		f.pushConstWord(0)
		f.pushVal(in.X)
		f.emit(bytecode.OpSub)
		f.storeResult(in.Result)
	}
}
