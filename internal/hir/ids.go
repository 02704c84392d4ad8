// Package hir provides the high-level intermediate representation.
//
// HIR sits between the typed AST and the SSA IR. Names are resolved to
// LocalIDs and FuncIDs, types to interned TypeIDs, and annotation text to
// structured declarations, while control flow stays structured. HIR is the
// input for the ownership checker and, once checked, for SSA construction.
package hir

// FuncID identifies a function within an HIR module.
type FuncID uint32

// LocalID identifies a local variable or parameter within a function.
type LocalID uint32

// Invalid ID constants (zero is sentinel).
const (
	NoFuncID  FuncID  = 0
	NoLocalID LocalID = 0
)

// IsValid returns true if the ID is valid (non-zero).
func (id FuncID) IsValid() bool  { return id != NoFuncID }
func (id LocalID) IsValid() bool { return id != NoLocalID }
