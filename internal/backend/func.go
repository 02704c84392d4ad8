package backend

import (
	"fmt"

	"fortio.org/safecast"

	"sable/internal/bytecode"
	"sable/internal/diag"
	"sable/internal/ssa"
	"sable/internal/types"
)

type label int

type fixup struct {
	instr int
	lab   label
}

type funcLowerer struct {
	ml *moduleLowerer
	fn *ssa.Func
	ty *types.Interner
	l  *layout

	code   []bytecode.Instr
	labels []int
	fixups []fixup
	// blockLab is indexed by BlockID.
	blockLab []label

	scratchUsed bool
	ok          bool
}

func newFuncLowerer(ml *moduleLowerer, fn *ssa.Func) *funcLowerer {
	return &funcLowerer{ml: ml, fn: fn, ty: ml.ssa.Types, ok: true}
}

func (f *funcLowerer) lower() (bytecode.Func, bool) {
	f.l = computeLayout(f.fn, f.ty)
	if f.l.frameBytes > f.ml.cfg.FrameLimit {
		diag.ReportError(f.ml.rep, diag.LowerMemoryLimit, f.fn.Span,
			fmt.Sprintf("function %s needs %d bytes of frame memory, limit is %d",
				f.fn.Name, f.l.frameBytes, f.ml.cfg.FrameLimit)).
			Emit()
		return bytecode.Func{}, false
	}

	f.blockLab = make([]label, len(f.fn.Blocks))
	for i := range f.blockLab {
		f.blockLab[i] = f.newLabel()
	}

	f.prologue()
	for _, bid := range f.l.order {
		f.bind(f.blockLab[bid])
		b := f.fn.Block(bid)
		for i := range b.Instrs {
			f.lowerInstr(&b.Instrs[i])
		}
		f.lowerTerm(bid, &b.Term)
	}
	f.patch()

	numLocals := f.l.numLocals
	if f.scratchUsed {
		numLocals++
	}
	if numLocals > f.ml.cfg.MaxLocals {
		diag.ReportError(f.ml.rep, diag.LowerTooManyLocals, f.fn.Span,
			fmt.Sprintf("function %s needs %d local slots, limit is %d",
				f.fn.Name, numLocals, f.ml.cfg.MaxLocals)).
			Emit()
		return bytecode.Func{}, false
	}
	if !f.ok {
		return bytecode.Func{}, false
	}
	return bytecode.Func{
		Name:        bytecode.Mangle(f.ml.ssa.UnitID, f.fn.Name),
		NumParams:   f.l.paramWords,
		NumLocals:   numLocals,
		ResultWords: wordsOf(f.ty, f.fn.Result),
		FrameBytes:  f.l.frameBytes,
		Code:        bytecode.EncodeCode(f.code),
		Gas:         bytecode.StaticGas(f.code),
	}, f.ok
}

// prologue copies word-expanded aggregate parameters from their incoming
// local slots into their frame regions.
func (f *funcLowerer) prologue() {
	var pw uint32
	for v := 1; v <= f.fn.NumParams; v++ {
		words := wordsOf(f.ty, f.fn.Values[v].Type)
		if f.l.class[v] == classMemory {
			base := f.l.slot[v]
			for w := uint32(0); w < words; w++ {
				f.emitA(bytecode.OpLocalGet, pw+w)
				f.emitA(bytecode.OpMemStore, base+8*w)
			}
		}
		pw += words
	}
}

// --- emission primitives ---

func (f *funcLowerer) emit(op bytecode.Opcode) {
	f.code = append(f.code, bytecode.Instr{Op: op})
}

func (f *funcLowerer) emitA(op bytecode.Opcode, a uint32) {
	f.code = append(f.code, bytecode.Instr{Op: op, A: a})
}

func (f *funcLowerer) newLabel() label {
	f.labels = append(f.labels, -1)
	return label(len(f.labels) - 1)
}

func (f *funcLowerer) bind(l label) {
	f.labels[l] = len(f.code)
}

func (f *funcLowerer) branch(op bytecode.Opcode, l label) {
	f.fixups = append(f.fixups, fixup{instr: len(f.code), lab: l})
	f.code = append(f.code, bytecode.Instr{Op: op})
}

func (f *funcLowerer) patch() {
	for _, fx := range f.fixups {
		target := f.labels[fx.lab]
		if target < 0 {
			panic(fmt.Sprintf("unbound label %d in %s", fx.lab, f.fn.Name))
		}
		a, err := safecast.Conv[uint32](target)
		if err != nil {
			panic(fmt.Errorf("branch target overflow: %w", err))
		}
		f.code[fx.instr].A = a
	}
}

// scratch reserves the shared per-function scratch slot.
func (f *funcLowerer) scratch() uint32 {
	f.scratchUsed = true
	return f.l.numLocals
}

func (f *funcLowerer) pushConstWord(w uint64) {
	f.emitA(bytecode.OpConst, f.ml.wordConst(w))
}

func (f *funcLowerer) pushConstBytes(b []byte) {
	f.emitA(bytecode.OpConst, f.ml.bytesConst(b))
}

// pushVal materializes v's words on the stack.
func (f *funcLowerer) pushVal(v ssa.ValueID) {
	switch f.l.class[v] {
	case classNone, classStack:
		// Unit, or already on top of the stack.
	case classLocal:
		f.emitA(bytecode.OpLocalGet, f.l.slot[v])
	case classMemory:
		words := wordsOf(f.ty, f.fn.Values[v].Type)
		f.loadWords(f.l.slot[v], words)
	}
}

// storeResult consumes v's words off the stack into its placement.
func (f *funcLowerer) storeResult(v ssa.ValueID) {
	words := wordsOf(f.ty, f.fn.Values[v].Type)
	switch f.l.class[v] {
	case classNone:
		for i := uint32(0); i < words; i++ {
			f.emit(bytecode.OpDrop)
		}
	case classStack:
		// Left for the next instruction.
	case classLocal:
		f.emitA(bytecode.OpLocalSet, f.l.slot[v])
	case classMemory:
		f.storeWords(f.l.slot[v], words)
	}
}

func (f *funcLowerer) loadWords(base, words uint32) {
	for w := uint32(0); w < words; w++ {
		f.emitA(bytecode.OpMemLoad, base+8*w)
	}
}

// storeWords pops words pushed in ascending order, so it stores them in
// descending offset order.
func (f *funcLowerer) storeWords(base, words uint32) {
	for w := words; w > 0; w-- {
		f.emitA(bytecode.OpMemStore, base+8*(w-1))
	}
}

// --- instruction lowering ---

func (f *funcLowerer) lowerInstr(in *ssa.Instr) {
	switch in.Kind {
	case ssa.InstrConst:
		f.lowerConst(in)
	case ssa.InstrBin:
		f.lowerBin(in)
	case ssa.InstrNeg:
		f.lowerNeg(in)
	case ssa.InstrNot:
		f.pushVal(in.X)
		f.emit(bytecode.OpEqz)
		f.storeResult(in.Result)
	case ssa.InstrCall:
		f.lowerCall(in)
	case ssa.InstrAggregate:
		f.lowerAggregate(in)
	case ssa.InstrExtract:
		f.lowerExtract(in)
	case ssa.InstrInsert:
		f.lowerInsert(in)
	case ssa.InstrStateRead, ssa.InstrStateWrite, ssa.InstrStateExists,
		ssa.InstrStateDelete, ssa.InstrCtx, ssa.InstrHash, ssa.InstrEmit:
		f.lowerHost(in)
	default:
		panic(fmt.Sprintf("unhandled instruction kind %d", in.Kind))
	}
}

func (f *funcLowerer) lowerConst(in *ssa.Instr) {
	c := &in.Const
	switch c.Kind {
	case types.KindUnit:
		return
	case types.KindBool:
		var w uint64
		if c.Bool {
			w = 1
		}
		f.pushConstWord(w)
	case types.KindInt, types.KindUint:
		if c.IntWide {
			f.pushConstBytes([]byte(c.IntText))
			break
		}
		w := c.IntValue
		if c.IntNeg {
			w = uint64(-int64(c.IntValue)) //nolint:gosec // two's complement
		}
		f.pushConstWord(w)
	case types.KindString, types.KindBytes, types.KindAddress:
		f.pushConstBytes([]byte(c.Str))
	default:
		panic(fmt.Sprintf("unhandled constant kind %d", c.Kind))
	}
	f.storeResult(in.Result)
}

func (f *funcLowerer) lowerCall(in *ssa.Instr) {
	for _, a := range in.Args {
		f.pushVal(a)
	}
	f.emitA(bytecode.OpCall, f.ml.funcIdx[uint32(in.Callee)]) //nolint:gosec // arena index
	if in.Result.IsValid() {
		f.storeResult(in.Result)
	}
}

func (f *funcLowerer) lowerAggregate(in *ssa.Instr) {
	if f.l.class[in.Result] != classMemory {
		// Zero- or one-word aggregate: the single member is the value.
		for _, a := range in.Args {
			f.pushVal(a)
		}
		f.storeResult(in.Result)
		return
	}
	base := f.l.slot[in.Result]
	var off uint32
	for i, a := range in.Args {
		mt := memberType(f.ty, in.Type, uint32(i)) //nolint:gosec // member count is tiny
		words := wordsOf(f.ty, mt)
		f.pushVal(a)
		f.storeWords(base+off, words)
		off += words * 8
	}
}

func (f *funcLowerer) lowerExtract(in *ssa.Instr) {
	aggTy := f.fn.Values[in.X].Type
	if f.l.class[in.X] != classMemory {
		// One-word aggregate: extracting its only sized member is the
		// identity.
		f.pushVal(in.X)
		f.storeResult(in.Result)
		return
	}
	mt := memberType(f.ty, aggTy, in.Index)
	words := wordsOf(f.ty, mt)
	src := f.l.slot[in.X] + memberOffset(f.ty, aggTy, in.Index)
	f.loadWords(src, words)
	f.storeResult(in.Result)
}

func (f *funcLowerer) lowerInsert(in *ssa.Instr) {
	aggTy := in.Type
	if f.l.class[in.Result] != classMemory {
		f.pushVal(in.Y)
		f.storeResult(in.Result)
		return
	}
	dst := f.l.slot[in.Result]
	words := wordsOf(f.ty, aggTy)
	// Copy the source aggregate, then overwrite the member.
	f.pushVal(in.X)
	f.storeWords(dst, words)
	mt := memberType(f.ty, aggTy, in.Index)
	f.pushVal(in.Y)
	f.storeWords(dst+memberOffset(f.ty, aggTy, in.Index), wordsOf(f.ty, mt))
}

// --- terminators ---

func (f *funcLowerer) lowerTerm(bid ssa.BlockID, t *ssa.Terminator) {
	switch t.Kind {
	case ssa.TermBr:
		f.phiMoves(bid, t.Target)
		f.branch(bytecode.OpBr, f.blockLab[t.Target])
	case ssa.TermCondBr:
		elseMoves := f.newLabel()
		f.pushVal(t.Cond)
		f.branch(bytecode.OpBrIfNot, elseMoves)
		f.phiMoves(bid, t.Target)
		f.branch(bytecode.OpBr, f.blockLab[t.Target])
		f.bind(elseMoves)
		f.phiMoves(bid, t.Else)
		f.branch(bytecode.OpBr, f.blockLab[t.Else])
	case ssa.TermReturn:
		if t.HasValue {
			f.pushVal(t.Value)
		}
		f.emit(bytecode.OpReturn)
	case ssa.TermRevert:
		f.pushConstBytes([]byte(t.Msg))
		f.hostCall("sys", 1, "revert")
	case ssa.TermUnreachable:
		f.emit(bytecode.OpUnreachable)
	default:
		panic(fmt.Sprintf("unhandled terminator kind %d", t.Kind))
	}
}

// phiMoves writes the successor's phi slots for this edge. All operands
// are pushed before any slot is written, so mutually-referencing phis
// read their old values.
func (f *funcLowerer) phiMoves(pred, succ ssa.BlockID) {
	sb := f.fn.Block(succ)
	var live []*ssa.Phi
	for i := range sb.Phis {
		if f.l.class[sb.Phis[i].Result] != classNone {
			live = append(live, &sb.Phis[i])
		}
	}
	for _, phi := range live {
		for _, op := range phi.Operands {
			if op.Pred == pred {
				f.pushVal(op.Value)
				break
			}
		}
	}
	for i := len(live) - 1; i >= 0; i-- {
		f.storeResult(live[i].Result)
	}
}
