package hir

import "sable/internal/source"

// BorrowKind distinguishes shared from exclusive borrows.
type BorrowKind uint8

const (
	// BorrowShared is a read-only borrow; many may coexist.
	BorrowShared BorrowKind = iota
	// BorrowExclusive is a read-write borrow; it tolerates no peer.
	BorrowExclusive
)

func (k BorrowKind) String() string {
	switch k {
	case BorrowShared:
		return "&"
	case BorrowExclusive:
		return "&mut"
	default:
		return "?"
	}
}

// BorrowStateKind is the per-binding borrow lattice.
type BorrowStateKind uint8

const (
	// Unborrowed is the quiescent state.
	Unborrowed BorrowStateKind = iota
	// SharedBorrowed carries a count of live shared loans.
	SharedBorrowed
	// MutablyBorrowed admits exactly one live loan and nothing else.
	MutablyBorrowed
)

func (k BorrowStateKind) String() string {
	switch k {
	case Unborrowed:
		return "unborrowed"
	case SharedBorrowed:
		return "shared"
	case MutablyBorrowed:
		return "mutable"
	default:
		return "?"
	}
}

// BorrowState tracks the live loans against one binding.
// Invariant: Kind == SharedBorrowed implies SharedCount > 0;
// Kind == MutablyBorrowed implies SharedCount == 0.
type BorrowState struct {
	Kind        BorrowStateKind
	SharedCount uint16
	// At is where the (most recent) live loan was taken, for diagnostics.
	At source.Span
}

// bindingState is the checker's full per-binding dataflow fact.
type bindingState struct {
	declared bool
	moved    bool
	movedAt  source.Span
	borrow   BorrowState
}

// narrower merges two incoming dataflow facts at a join point; the more
// restrictive fact wins, so any use invalid on one path stays invalid.
func narrower(a, b bindingState) bindingState {
	out := a
	if b.moved {
		out.moved = true
		out.movedAt = b.movedAt
	}
	// Loans are statement-scoped and always released before a join, so only
	// moved-ness participates in the merge.
	return out
}
