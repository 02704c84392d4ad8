// Package ssa provides the mid-level register IR: typed single-assignment
// values in basic blocks with explicit terminators and phi merges. It is
// built from checked HIR, annotated in place by the conflict-domain
// analyzer, rewritten by the optimizer, and consumed by the backend.
package ssa

// ValueID identifies an SSA value (virtual register) within a function.
type ValueID uint32

// BlockID identifies a basic block within a function.
type BlockID uint32

// Invalid sentinels. ValueID 0 is never defined; BlockID 0 is always the
// entry block, so NoBlockID uses the max value instead.
const (
	NoValueID ValueID = 0
	NoBlockID BlockID = ^BlockID(0)
)

// IsValid returns true if the ID is valid.
func (id ValueID) IsValid() bool { return id != NoValueID }
func (id BlockID) IsValid() bool { return id != NoBlockID }
