package hir

import (
	"sable/internal/source"
	"sable/internal/types"
)

// FuncFlags represents function modifiers as a bitmask.
type FuncFlags uint32

const (
	// FuncPublic marks an exported function.
	FuncPublic FuncFlags = 1 << iota
	// FuncPayable marks a function that may receive value.
	FuncPayable
	// FuncPure marks a function annotated as having no state effects.
	// Trusted, not verified; the domain analyzer skips it.
	FuncPure
)

// HasFlag returns true if the given flag is set.
func (f FuncFlags) HasFlag(flag FuncFlags) bool {
	return f&flag != 0
}

// DeclaredDomains is an author override of the computed domain sets,
// parsed from reads(...)/writes(...) annotations. Keys are raw
// namespace[:key] text without the unit prefix.
type DeclaredDomains struct {
	Reads  []string
	Writes []string
	Span   source.Span
}

// Local is a variable or parameter slot within a function.
// Locals[0] is an unused sentinel so NoLocalID stays invalid.
type Local struct {
	Name   string
	Type   types.TypeID
	Mut    bool
	IsCopy bool
	Span   source.Span
}

// Func is an HIR function.
type Func struct {
	ID    FuncID
	Name  string
	Flags FuncFlags
	Span  source.Span

	// Params are the first NumParams valid locals, starting at LocalID 1.
	NumParams int
	Result    types.TypeID
	Locals    []Local
	Body      []Stmt

	// Checked is set by the ownership checker on success; unchecked
	// functions are excluded from SSA construction and lowering.
	Checked bool

	// Declared is nil when the author supplied no domain override.
	Declared *DeclaredDomains
	// ProofIDs link to external proof obligations, passed through to the
	// manifest.
	ProofIDs []string
}

// Local returns the slot for id, or nil if invalid.
func (f *Func) Local(id LocalID) *Local {
	if !id.IsValid() || int(id) >= len(f.Locals) {
		return nil
	}
	return &f.Locals[id]
}

// ParamIDs returns the LocalIDs of the parameters.
func (f *Func) ParamIDs() []LocalID {
	ids := make([]LocalID, 0, f.NumParams)
	for i := 1; i <= f.NumParams; i++ {
		ids = append(ids, LocalID(i)) //nolint:gosec // param count is tiny
	}
	return ids
}

// Module is one lowered compilation unit.
type Module struct {
	UnitID string
	Types  *types.Interner
	// Structs maps declared struct names to their interned types.
	Structs map[string]types.TypeID
	// Funcs[0] is an unused sentinel so NoFuncID stays invalid.
	Funcs      []*Func
	FuncByName map[string]FuncID
}

// Func returns the function for id, or nil if invalid.
func (m *Module) Func(id FuncID) *Func {
	if !id.IsValid() || int(id) >= len(m.Funcs) {
		return nil
	}
	return m.Funcs[id]
}

// Lookup resolves a function by name.
func (m *Module) Lookup(name string) (*Func, bool) {
	id, ok := m.FuncByName[name]
	if !ok {
		return nil, false
	}
	return m.Funcs[id], true
}
