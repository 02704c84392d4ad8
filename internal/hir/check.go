package hir

import (
	"fmt"

	"sable/internal/ast"
	"sable/internal/diag"
	"sable/internal/source"
)

// Check runs the ownership checker over every lowered function. Functions
// that fail keep Checked == false and are excluded from later stages;
// siblings are still checked (best-effort multi-error reporting).
//
// The pass is a single linear dataflow over the structured control flow: no
// fixed point beyond a second sweep of loop bodies against the merged entry
// state. Within one function the checker stops at the first violation.
func Check(m *Module, reporter diag.Reporter) bool {
	ok := true
	for _, fn := range m.Funcs {
		if fn == nil || fn.Body == nil {
			continue
		}
		if !CheckFunc(m, fn, reporter) {
			ok = false
		}
	}
	return ok
}

// CheckFunc checks a single function and sets fn.Checked on success.
// Functions share no checker state, so callers may check them
// concurrently as long as each goroutine reports into its own bag.
func CheckFunc(m *Module, fn *Func, reporter diag.Reporter) bool {
	c := &checker{mod: m, fn: fn, reporter: reporter, report: true}
	c.states = make([]bindingState, len(fn.Locals))
	for p := 1; p <= fn.NumParams; p++ {
		c.states[p].declared = true
	}
	c.checkStmts(fn.Body)
	if c.failed {
		return false
	}
	fn.Checked = true
	return true
}

type checker struct {
	mod      *Module
	fn       *Func
	reporter diag.Reporter
	states   []bindingState
	// report is cleared during the throwaway first sweep of a loop body.
	report bool
	failed bool
}

func (c *checker) errorf(code diag.Code, sp source.Span, note source.Span, noteMsg string, format string, args ...any) {
	c.failed = true
	if !c.report {
		return
	}
	b := diag.ReportError(c.reporter, code, sp, fmt.Sprintf(format, args...))
	if noteMsg != "" {
		b.WithNote(note, noteMsg)
	}
	b.Emit()
}

func (c *checker) localName(id LocalID) string {
	if l := c.fn.Local(id); l != nil {
		return l.Name
	}
	return "?"
}

// checkStmts returns false when control cannot fall through the sequence
// (it ended in return or revert on every path).
func (c *checker) checkStmts(stmts []Stmt) bool {
	for i := range stmts {
		if c.failed {
			return false
		}
		if !c.checkStmt(&stmts[i]) {
			return false
		}
	}
	return true
}

func (c *checker) checkStmt(s *Stmt) bool {
	switch s.Kind {
	case StmtLet:
		c.useValue(s.Init)
		c.states[s.Local] = bindingState{declared: true}
		return true

	case StmtAssign:
		c.useValue(s.Value)
		c.checkWrite(s.Target)
		return true

	case StmtExpr:
		c.useValue(s.X)
		return true

	case StmtReturn:
		if s.X != nil {
			c.useValue(s.X)
		}
		return false

	case StmtRevert:
		return false

	case StmtRequire:
		c.useValue(s.Cond)
		return true

	case StmtIf:
		c.useValue(s.Cond)
		entry := c.snapshot()
		thenFalls := c.checkStmts(s.Then)
		thenExit := c.snapshot()
		c.restore(entry)
		elseFalls := c.checkStmts(s.Else)
		switch {
		case thenFalls && elseFalls:
			c.mergeInto(thenExit)
		case thenFalls && !elseFalls:
			c.restore(thenExit)
		case !thenFalls && !elseFalls:
			return false
		}
		// only the else path falls through: state already current
		return true

	case StmtWhile:
		// First sweep discovers what the body moves; diagnostics are
		// suppressed because the merged state may retract them.
		entry := c.snapshot()
		savedReport := c.report
		c.report = false
		c.useValue(s.Cond)
		c.checkStmts(s.Body)
		c.report = savedReport
		c.failed = false
		firstExit := c.snapshot()
		c.restore(entry)
		c.mergeInto(firstExit)
		// Second sweep checks the body against the loop-carried state, so a
		// move of an outer binding inside the body is caught on the
		// simulated next iteration.
		c.useValue(s.Cond)
		c.checkStmts(s.Body)
		secondExit := c.snapshot()
		c.restore(entry)
		c.mergeInto(firstExit)
		c.mergeInto(secondExit)
		return true

	case StmtStateWrite:
		if s.Key != nil {
			c.useValue(s.Key)
		}
		c.useValue(s.Value)
		return true

	case StmtStateDelete:
		if s.Key != nil {
			c.useValue(s.Key)
		}
		return true

	case StmtEmit:
		for i := range s.Args {
			c.useValue(&s.Args[i])
		}
		return true

	default:
		return true
	}
}

func (c *checker) snapshot() []bindingState {
	out := make([]bindingState, len(c.states))
	copy(out, c.states)
	return out
}

func (c *checker) restore(snap []bindingState) {
	copy(c.states, snap)
}

func (c *checker) mergeInto(other []bindingState) {
	for i := range c.states {
		c.states[i] = narrower(c.states[i], other[i])
	}
}

// checkWrite validates an assignment target: the root binding must be
// mutable, initialized (parameters and let bindings always are), not moved
// away, and not borrowed.
func (c *checker) checkWrite(target *Expr) {
	root := rootLocal(target)
	if !root.IsValid() {
		return
	}
	lo := c.fn.Local(root)
	st := &c.states[root]
	if !lo.Mut {
		c.errorf(diag.OwnAssignImmutable, target.Span, lo.Span, "binding declared here",
			"cannot assign to immutable binding %q", lo.Name)
		return
	}
	if st.moved {
		c.errorf(diag.OwnUseAfterMove, target.Span, st.movedAt, "value moved here",
			"assignment through %q after it was moved", lo.Name)
		return
	}
	if st.borrow.Kind != Unborrowed {
		c.errorf(diag.OwnWriteWhileBorrowed, target.Span, st.borrow.At, "borrow taken here",
			"cannot assign to %q while it is borrowed", lo.Name)
		return
	}
	// A whole-local assignment re-initializes a previously moved binding.
	if target.Kind == ExprLocal {
		st.moved = false
	}
}

// useValue classifies every binding use inside e as copy, move, or borrow,
// writes the classification onto the node, and updates borrow state. Loans
// taken while evaluating a call are released when the call completes, so all
// loans are statement-scoped.
func (c *checker) useValue(e *Expr) {
	if e == nil || c.failed {
		return
	}
	switch e.Kind {
	case ExprLocal:
		c.useLocal(e, false)

	case ExprUnary, ExprHash:
		c.useValue(e.X)

	case ExprBinary:
		c.useValue(e.X)
		c.useValue(e.Y)

	case ExprField, ExprTupleIndex:
		// Reading a field is fine for copy types; moving out of an
		// aggregate place is rejected (no partial moves).
		if !c.mod.Types.IsCopy(e.Type) {
			c.errorf(diag.OwnMoveFromShared, e.Span, e.X.Span, "aggregate accessed here",
				"cannot move %q out of an aggregate place", e.Field.Name)
			return
		}
		c.usePlaceBase(e.X)

	case ExprTuple:
		for i := range e.Elems {
			c.useValue(&e.Elems[i])
		}

	case ExprStruct:
		for i := range e.StructFields {
			c.useValue(&e.StructFields[i])
		}

	case ExprCall:
		c.useCall(e)

	case ExprStateRead, ExprStateExists:
		if e.Key != nil {
			c.useValue(e.Key)
		}

	default:
		// literals, ctx queries
	}
}

// usePlaceBase walks to the root local of a place chain and records a read.
func (c *checker) usePlaceBase(e *Expr) {
	for e != nil && e.Kind != ExprLocal {
		e = e.X
	}
	if e != nil {
		c.useLocal(e, true)
	}
}

// useLocal handles a direct read of a binding. placeRead suppresses the
// move even for move-semantics types (the value stays put).
func (c *checker) useLocal(e *Expr, placeRead bool) {
	lo := c.fn.Local(e.Local)
	st := &c.states[e.Local]
	if st.moved {
		c.errorf(diag.OwnUseAfterMove, e.Span, st.movedAt, "value moved here",
			"use of %q after it was moved", lo.Name)
		return
	}
	if st.borrow.Kind == MutablyBorrowed {
		c.errorf(diag.OwnAliasMutable, e.Span, st.borrow.At, "exclusive borrow taken here",
			"cannot read %q while it is exclusively borrowed", lo.Name)
		return
	}
	if lo.IsCopy || placeRead {
		e.Use = UseCopy
		return
	}
	if st.borrow.Kind == SharedBorrowed {
		c.errorf(diag.OwnMoveWhileBorrowed, e.Span, st.borrow.At, "borrow taken here",
			"cannot move %q while it is borrowed", lo.Name)
		return
	}
	e.Use = UseMove
	st.moved = true
	st.movedAt = e.Span
}

// useCall evaluates a call: the receiver loan per SelfMode is live while
// the arguments are evaluated and released when the call returns.
func (c *checker) useCall(e *Expr) {
	var loaned LocalID
	if e.Recv != nil {
		switch e.SelfMode {
		case ast.SelfShared:
			loaned = c.takeLoan(e.Recv, BorrowShared)
		case ast.SelfExclusive:
			loaned = c.takeLoan(e.Recv, BorrowExclusive)
		case ast.SelfValue:
			c.useValue(e.Recv)
		default:
			c.useValue(e.Recv)
		}
	}
	for i := range e.Args {
		c.useValue(&e.Args[i])
	}
	if loaned.IsValid() {
		c.releaseLoan(loaned)
	}
}

// takeLoan borrows the root local of the receiver place. Returns the loaned
// local, or NoLocalID when the receiver is not rooted in a binding.
func (c *checker) takeLoan(recv *Expr, kind BorrowKind) LocalID {
	root := rootLocal(recv)
	if !root.IsValid() {
		c.useValue(recv)
		return NoLocalID
	}
	lo := c.fn.Local(root)
	st := &c.states[root]
	if st.moved {
		c.errorf(diag.OwnUseAfterMove, recv.Span, st.movedAt, "value moved here",
			"cannot borrow %q after it was moved", lo.Name)
		return NoLocalID
	}
	switch kind {
	case BorrowShared:
		if st.borrow.Kind == MutablyBorrowed {
			c.errorf(diag.OwnSharedWhileMut, recv.Span, st.borrow.At, "exclusive borrow taken here",
				"cannot borrow %q: already exclusively borrowed", lo.Name)
			return NoLocalID
		}
		st.borrow.Kind = SharedBorrowed
		st.borrow.SharedCount++
		st.borrow.At = recv.Span
		markUse(recv, UseBorrowShared)
	case BorrowExclusive:
		if !lo.Mut {
			c.errorf(diag.OwnAssignImmutable, recv.Span, lo.Span, "binding declared here",
				"cannot exclusively borrow immutable binding %q", lo.Name)
			return NoLocalID
		}
		if st.borrow.Kind != Unborrowed {
			c.errorf(diag.OwnMutWhileShared, recv.Span, st.borrow.At, "conflicting borrow taken here",
				"cannot exclusively borrow %q: conflicting borrow is live", lo.Name)
			return NoLocalID
		}
		st.borrow.Kind = MutablyBorrowed
		st.borrow.SharedCount = 0
		st.borrow.At = recv.Span
		markUse(recv, UseBorrowExclusive)
	}
	return root
}

func (c *checker) releaseLoan(id LocalID) {
	st := &c.states[id]
	switch st.borrow.Kind {
	case SharedBorrowed:
		st.borrow.SharedCount--
		if st.borrow.SharedCount == 0 {
			st.borrow.Kind = Unborrowed
		}
	case MutablyBorrowed:
		st.borrow.Kind = Unborrowed
	}
}

// markUse records the resolved borrow kind on the root ExprLocal node.
func markUse(e *Expr, use UseKind) {
	for e != nil && e.Kind != ExprLocal {
		e = e.X
	}
	if e != nil {
		e.Use = use
	}
}

// rootLocal returns the binding at the base of a place chain, or NoLocalID.
func rootLocal(e *Expr) LocalID {
	for e != nil {
		switch e.Kind {
		case ExprLocal:
			return e.Local
		case ExprField, ExprTupleIndex:
			e = e.X
		default:
			return NoLocalID
		}
	}
	return NoLocalID
}
