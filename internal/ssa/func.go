package ssa

import (
	"fmt"

	"fortio.org/safecast"

	"sable/internal/hir"
	"sable/internal/source"
	"sable/internal/types"
)

// ValueInfo records the type and defining span of one SSA value.
type ValueInfo struct {
	Type types.TypeID
	Span source.Span
}

// DomainHash is a fixed-width hashed domain key. Set by the conflict-domain
// analyzer.
type DomainHash = [16]byte

// DomainSets holds the sealed per-function aggregate domain sets.
type DomainSets struct {
	Reads  []DomainHash
	Writes []DomainHash
	// Declared is true when an author override replaced the computed
	// aggregate.
	Declared bool
	// Sealed is set once the inter-procedural fixed point converged.
	Sealed bool
}

// Func is one SSA function.
type Func struct {
	ID     hir.FuncID
	Name   string
	Flags  hir.FuncFlags
	Span   source.Span
	Result types.TypeID

	// Params are values 1..NumParams, defined by the entry block.
	NumParams int
	// Values is the value arena; index 0 is an unused sentinel.
	Values []ValueInfo
	Blocks []Block
	Entry  BlockID

	// Domains is populated by the conflict-domain analyzer.
	Domains DomainSets
	// ProofIDs pass through from HIR annotations to the manifest.
	ProofIDs []string
	Payable  bool
}

// NewValue allocates a fresh SSA value.
func (f *Func) NewValue(ty types.TypeID, sp source.Span) ValueID {
	idx, err := safecast.Conv[uint32](len(f.Values))
	if err != nil {
		panic(fmt.Errorf("value count overflow: %w", err))
	}
	f.Values = append(f.Values, ValueInfo{Type: ty, Span: sp})
	return ValueID(idx)
}

// ValueType returns the type of v, or NoTypeID for the sentinel.
func (f *Func) ValueType(v ValueID) types.TypeID {
	if !v.IsValid() || int(v) >= len(f.Values) {
		return types.NoTypeID
	}
	return f.Values[v].Type
}

// Block returns the block for id, or nil.
func (f *Func) Block(id BlockID) *Block {
	if int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// NewBlock appends an empty block and returns its ID.
func (f *Func) NewBlock() BlockID {
	idx, err := safecast.Conv[uint32](len(f.Blocks))
	if err != nil {
		panic(fmt.Errorf("block count overflow: %w", err))
	}
	id := BlockID(idx)
	f.Blocks = append(f.Blocks, Block{ID: id})
	return id
}

// Predecessors computes the predecessor list for every block.
func (f *Func) Predecessors() map[BlockID][]BlockID {
	preds := make(map[BlockID][]BlockID, len(f.Blocks))
	var succs []BlockID
	for i := range f.Blocks {
		succs = f.Blocks[i].Successors(succs[:0])
		for _, s := range succs {
			preds[s] = append(preds[s], f.Blocks[i].ID)
		}
	}
	return preds
}

// Module is the SSA form of one compilation unit.
type Module struct {
	UnitID string
	Types  *types.Interner
	// Funcs is indexed by hir.FuncID; entry 0 is nil.
	Funcs      []*Func
	FuncByName map[string]hir.FuncID
}

// Func returns the function for id, or nil.
func (m *Module) Func(id hir.FuncID) *Func {
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
