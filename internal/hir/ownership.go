package hir

// Ownership is the internal capability tag attached to bindings and uses
// during analysis. Tags never reach the language surface; diagnostics render
// them only to explain conflicts.
type Ownership uint8

const (
	// OwnershipOwned indicates an owned value.
	OwnershipOwned Ownership = iota
	// OwnershipShared indicates a shared (read-only) capability.
	OwnershipShared
	// OwnershipExclusive indicates an exclusive (read-write) capability.
	OwnershipExclusive
)

func (o Ownership) String() string {
	switch o {
	case OwnershipOwned:
		return "own"
	case OwnershipShared:
		return "&"
	case OwnershipExclusive:
		return "&mut"
	default:
		return "?"
	}
}

// UseKind is the resolved classification of one use of a binding. The
// ownership checker writes it onto ExprLocal nodes; the SSA builder reads it
// to decide between value copies and reference passing.
type UseKind uint8

const (
	// UseUnresolved is the pre-checker state.
	UseUnresolved UseKind = iota
	// UseCopy duplicates a copy-semantics value.
	UseCopy
	// UseMove transfers ownership and invalidates the source binding.
	UseMove
	// UseBorrowShared passes a shared capability for the call's duration.
	UseBorrowShared
	// UseBorrowExclusive passes an exclusive capability for the call's
	// duration.
	UseBorrowExclusive
)

func (u UseKind) String() string {
	switch u {
	case UseCopy:
		return "copy"
	case UseMove:
		return "move"
	case UseBorrowShared:
		return "borrow"
	case UseBorrowExclusive:
		return "borrow_mut"
	default:
		return "unresolved"
	}
}
