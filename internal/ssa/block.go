package ssa

import (
	"sable/internal/source"
	"sable/internal/types"
)

// TermKind enumerates block terminators.
type TermKind uint8

const (
	TermNone TermKind = iota
	TermBr
	TermCondBr
	TermReturn
	// TermRevert aborts with a caller-supplied message, discarding state
	// effects but only consuming gas spent so far.
	TermRevert
	TermUnreachable
)

// Terminator ends a basic block. Every block has exactly one.
type Terminator struct {
	Kind TermKind
	Span source.Span

	// TermBr / TermCondBr.
	Cond   ValueID
	Target BlockID // TermBr target, TermCondBr then-target
	Else   BlockID

	// TermReturn.
	HasValue bool
	Value    ValueID

	// TermRevert.
	Msg string
}

// PhiOperand pairs an incoming value with its predecessor edge.
type PhiOperand struct {
	Pred  BlockID
	Value ValueID
}

// Phi merges values at a join block. Invariant: one operand per
// predecessor, all operand types equal to Type.
type Phi struct {
	Result   ValueID
	Type     types.TypeID
	Operands []PhiOperand
}

// Block is an ordered instruction sequence with phis at the top and exactly
// one terminator.
type Block struct {
	ID     BlockID
	Phis   []Phi
	Instrs []Instr
	Term   Terminator
}

// Terminated reports whether the block already has its terminator.
func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// Successors appends the terminator's target blocks to dst.
func (b *Block) Successors(dst []BlockID) []BlockID {
	switch b.Term.Kind {
	case TermBr:
		dst = append(dst, b.Term.Target)
	case TermCondBr:
		dst = append(dst, b.Term.Target, b.Term.Else)
	}
	return dst
}
