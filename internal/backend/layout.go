package backend

import (
	"sable/internal/ssa"
	"sable/internal/types"
)

// valClass places one SSA value.
type valClass uint8

const (
	// classNone: no storage. Unit values and dead results (whose pushed
	// words are dropped).
	classNone valClass = iota
	// classStack: single use by the immediately following consumer as its
	// first-pushed operand; stays on the operand stack.
	classStack
	// classLocal: one named local slot.
	classLocal
	// classMemory: frame-memory region, word-granular; slot holds the
	// base byte offset. Aggregates and checked-arithmetic results.
	classMemory
)

// layout is the per-function placement plan.
type layout struct {
	order []ssa.BlockID
	// blockPos is the position of each block's first phi/instr slot,
	// indexed by BlockID; -1 for unreachable blocks.
	blockPos []int
	// termPos is the position of each block's terminator.
	termPos []int

	class []valClass
	// slot is the local slot (classLocal) or frame byte offset
	// (classMemory).
	slot []uint32

	numLocals  uint32
	paramWords uint32
	frameBytes uint32
}

// wordsOf returns how many stack words the type occupies. Scalars,
// references, strings, bytes and addresses are single boxed words;
// aggregates flatten member-wise.
func wordsOf(in *types.Interner, id types.TypeID) uint32 {
	t := in.Get(id)
	switch t.Kind {
	case types.KindUnit:
		return 0
	case types.KindStruct:
		info, _ := in.Struct(id)
		var n uint32
		for _, f := range info.Fields {
			n += wordsOf(in, f.Type)
		}
		return n
	case types.KindTuple:
		info, _ := in.Tuple(id)
		var n uint32
		for _, e := range info.Elems {
			n += wordsOf(in, e)
		}
		return n
	default:
		return 1
	}
}

// memberOffset returns the byte offset of member index within an
// aggregate's frame region.
func memberOffset(in *types.Interner, agg types.TypeID, index uint32) uint32 {
	var off uint32
	each := func(memberTy types.TypeID, i uint32) bool {
		if i == index {
			return false
		}
		off += wordsOf(in, memberTy) * 8
		return true
	}
	t := in.Get(agg)
	switch t.Kind {
	case types.KindStruct:
		info, _ := in.Struct(agg)
		for i, f := range info.Fields {
			if !each(f.Type, uint32(i)) { //nolint:gosec // member count is tiny
				return off
			}
		}
	case types.KindTuple:
		info, _ := in.Tuple(agg)
		for i, e := range info.Elems {
			if !each(e, uint32(i)) { //nolint:gosec // member count is tiny
				return off
			}
		}
	}
	return off
}

// memberType returns the type of member index of an aggregate.
func memberType(in *types.Interner, agg types.TypeID, index uint32) types.TypeID {
	t := in.Get(agg)
	switch t.Kind {
	case types.KindStruct:
		info, _ := in.Struct(agg)
		if int(index) < len(info.Fields) {
			return info.Fields[index].Type
		}
	case types.KindTuple:
		info, _ := in.Tuple(agg)
		if int(index) < len(info.Elems) {
			return info.Elems[index]
		}
	}
	return types.NoTypeID
}

type useInfo struct {
	count   int
	lastUse int
	// firstPushAt is the position of the one consumer that pushes this
	// value first, or -1.
	firstPushAt int
}

// computeLayout numbers the function in reverse postorder, classifies
// every value and runs a linear scan over def/last-use intervals to
// assign local slots and frame regions.
func computeLayout(fn *ssa.Func, in *types.Interner) *layout {
	l := &layout{
		order:    rpo(fn),
		blockPos: make([]int, len(fn.Blocks)),
		termPos:  make([]int, len(fn.Blocks)),
		class:    make([]valClass, len(fn.Values)),
		slot:     make([]uint32, len(fn.Values)),
	}
	for i := range l.blockPos {
		l.blockPos[i] = -1
	}

	// Position numbering. Phis share the block-start position; the
	// terminator (with its phi-edge moves) takes one slot.
	pos := 1
	blockOf := make(map[int]ssa.BlockID)
	defPos := make([]int, len(fn.Values))
	for _, bid := range l.order {
		b := fn.Block(bid)
		l.blockPos[bid] = pos
		for _, phi := range b.Phis {
			defPos[phi.Result] = pos
		}
		for i := range b.Instrs {
			in := &b.Instrs[i]
			if in.Result.IsValid() {
				defPos[in.Result] = pos + i
			}
			blockOf[pos+i] = bid
		}
		pos += len(b.Instrs)
		l.termPos[bid] = pos
		blockOf[pos] = bid
		pos++
	}

	uses := make([]useInfo, len(fn.Values))
	for i := range uses {
		uses[i].firstPushAt = -1
	}
	use := func(v ssa.ValueID, p int, firstPush bool) {
		if !v.IsValid() {
			return
		}
		u := &uses[v]
		u.count++
		if p > u.lastUse {
			u.lastUse = p
		}
		if firstPush && u.count == 1 {
			u.firstPushAt = p
		} else {
			u.firstPushAt = -1
		}
	}
	var scratch []ssa.ValueID
	for _, bid := range l.order {
		b := fn.Block(bid)
		for i := range b.Instrs {
			instr := &b.Instrs[i]
			p := l.blockPos[bid] + i
			fp := firstPushed(instr)
			scratch = instr.Uses(scratch[:0])
			for _, v := range scratch {
				use(v, p, v == fp)
			}
		}
		tp := l.termPos[bid]
		switch b.Term.Kind {
		case ssa.TermCondBr:
			use(b.Term.Cond, tp, true)
		case ssa.TermReturn:
			if b.Term.HasValue {
				use(b.Term.Value, tp, true)
			}
		}
		// Phi-edge moves execute at this block's terminator.
		for _, succ := range b.Successors(nil) {
			sb := fn.Block(succ)
			for _, phi := range sb.Phis {
				for _, op := range phi.Operands {
					if op.Pred == bid {
						use(op.Value, tp, false)
					}
				}
			}
		}
	}

	// A value live into a loop header stays live through the whole loop
	// even when its last textual use sits at an earlier position (the
	// exit block can be numbered before the body). Extend such intervals
	// to the back-edge terminator, or the scan would free their slots
	// mid-loop. Iterated for nested loops.
	for changed := true; changed; {
		changed = false
		var succs []ssa.BlockID
		for _, bid := range l.order {
			succs = fn.Block(bid).Successors(succs[:0])
			for _, succ := range succs {
				hp := l.blockPos[succ]
				if hp < 0 || hp > l.blockPos[bid] {
					continue // forward edge
				}
				lp := l.termPos[bid]
				for v := 1; v < len(fn.Values); v++ {
					u := &uses[v]
					if u.count > 0 && defPos[v] < hp && u.lastUse >= hp && u.lastUse < lp {
						u.lastUse = lp
						u.firstPushAt = -1
						changed = true
					}
				}
			}
		}
	}

	// Classification.
	phiResult := make([]bool, len(fn.Values))
	for _, bid := range l.order {
		for _, phi := range fn.Block(bid).Phis {
			phiResult[phi.Result] = true
		}
	}
	for v := 1; v < len(fn.Values); v++ {
		ty := fn.Values[v].Type
		words := wordsOf(in, ty)
		switch {
		case words == 0:
			l.class[v] = classNone
		case uses[v].count == 0 && v > fn.NumParams:
			l.class[v] = classNone
		case words > 1:
			l.class[v] = classMemory
		case phiResult[v] || v <= fn.NumParams:
			l.class[v] = classLocal
		case uses[v].count == 1 && uses[v].firstPushAt == defPos[v]+1 &&
			blockOf[defPos[v]] == blockOf[defPos[v]+1] && defPos[v] > 0:
			l.class[v] = classStack
		default:
			l.class[v] = classLocal
		}
	}
	// Default-mode and saturating arithmetic re-reads its result slot
	// during the injected check.
	for _, bid := range l.order {
		b := fn.Block(bid)
		for i := range b.Instrs {
			instr := &b.Instrs[i]
			if instr.Kind == ssa.InstrBin && instr.Op.IsArith() && instr.Result.IsValid() &&
				instr.Mode != ssa.ModeWrapping {
				if l.class[instr.Result] == classStack {
					l.class[instr.Result] = classLocal
				}
			}
			if instr.Kind == ssa.InstrNeg && l.class[instr.Result] == classStack {
				l.class[instr.Result] = classLocal
			}
		}
	}

	l.assignSlots(fn, in, defPos, uses)
	return l
}

// assignSlots runs the linear scan: parameters pin the first slots, then
// every classLocal interval takes the lowest free slot. Frame regions are
// bump-allocated; they are few and never reused.
func (l *layout) assignSlots(fn *ssa.Func, in *types.Interner, defPos []int, uses []useInfo) {
	// Parameters occupy slots 0.. in declaration order, aggregates
	// word-expanded (the prologue copies them into their frame regions).
	var pw uint32
	for v := 1; v <= fn.NumParams; v++ {
		ty := fn.Values[v].Type
		words := wordsOf(in, ty)
		if l.class[v] == classMemory {
			l.slot[v] = l.frameBytes
			l.frameBytes += words * 8
			// The incoming words still consume param slots.
			pw += words
			continue
		}
		if l.class[v] == classLocal {
			l.slot[v] = pw
		}
		pw += words
	}
	l.paramWords = pw
	l.numLocals = pw

	type interval struct {
		v    int
		def  int
		last int
	}
	var ivs []interval
	for v := fn.NumParams + 1; v < len(fn.Values); v++ {
		switch l.class[v] {
		case classLocal:
			ivs = append(ivs, interval{v: v, def: defPos[v], last: uses[v].lastUse})
		case classMemory:
			l.slot[v] = l.frameBytes
			l.frameBytes += wordsOf(in, fn.Values[v].Type) * 8
		}
	}
	// Already in def order: values are allocated in emission order.
	type active struct {
		slot uint32
		last int
	}
	var live []active
	var free []uint32
	for _, iv := range ivs {
		kept := live[:0]
		for _, a := range live {
			if a.last < iv.def {
				free = append(free, a.slot)
			} else {
				kept = append(kept, a)
			}
		}
		live = kept
		var s uint32
		if len(free) > 0 {
			s = free[len(free)-1]
			free = free[:len(free)-1]
		} else {
			s = l.numLocals
			l.numLocals++
		}
		l.slot[iv.v] = s
		live = append(live, active{slot: s, last: iv.last})
	}
}

// rpo returns the reachable blocks in reverse postorder.
func rpo(fn *ssa.Func) []ssa.BlockID {
	seen := make([]bool, len(fn.Blocks))
	var post []ssa.BlockID
	type frame struct {
		b    ssa.BlockID
		next int
	}
	stack := []frame{{b: fn.Entry}}
	seen[fn.Entry] = true
	var succs []ssa.BlockID
	for len(stack) > 0 {
		fr := &stack[len(stack)-1]
		succs = fn.Block(fr.b).Successors(succs[:0])
		if fr.next < len(succs) {
			s := succs[fr.next]
			fr.next++
			if !seen[s] {
				seen[s] = true
				stack = append(stack, frame{b: s})
			}
			continue
		}
		post = append(post, fr.b)
		stack = stack[:len(stack)-1]
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// firstPushed names the operand a consumer pushes first, for transient
// placement. Instructions that re-read operands (checked arithmetic,
// negation, host calls, aggregate traffic) return the invalid ID.
func firstPushed(in *ssa.Instr) ssa.ValueID {
	switch in.Kind {
	case ssa.InstrBin:
		if in.Op.IsArith() && in.Mode != ssa.ModeWrapping {
			return ssa.NoValueID
		}
		return in.X
	case ssa.InstrNot:
		return in.X
	case ssa.InstrCall, ssa.InstrAggregate:
		if len(in.Args) > 0 {
			return in.Args[0]
		}
	}
	return ssa.NoValueID
}
