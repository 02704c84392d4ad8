package diag

import (
	"fmt"
)

// Code is a stable numeric diagnostic code. Ranges are reserved per stage so
// codes stay meaningful across releases:
//
//	1xxx ownership / borrow checking
//	2xxx conflict-domain analysis
//	3xxx backend lowering
//	4xxx pipeline / internal
type Code uint16

const (
	UnknownCode Code = 0

	// Ownership checker.
	OwnInfo               Code = 1000
	OwnUseAfterMove       Code = 1001
	OwnMoveWhileBorrowed  Code = 1002
	OwnAliasMutable       Code = 1003
	OwnSharedWhileMut     Code = 1004
	OwnMutWhileShared     Code = 1005
	OwnWriteWhileBorrowed Code = 1006
	OwnMoveFromShared     Code = 1007
	OwnAssignImmutable    Code = 1008
	OwnBranchDiverged     Code = 1009

	// Conflict-domain analysis.
	DomInfo             Code = 2000
	DomWildcardFallback Code = 2001
	DomUnderDeclared    Code = 2002
	DomOverDeclared     Code = 2003
	DomDynamicRejected  Code = 2004
	DomBadOverride      Code = 2005

	// Backend lowering.
	LowerInfo          Code = 3000
	LowerTooManyLocals Code = 3001
	LowerValueTooLarge Code = 3002
	LowerMemoryLimit   Code = 3003

	// Pipeline / internal.
	PipeInfo        Code = 4000
	PipeBadUnit     Code = 4001
	PipeStageFailed Code = 4002
)

func (c Code) String() string {
	return fmt.Sprintf("SBL%04d", uint16(c))
}
