package ssa

import (
	"fmt"
	"strings"

	"sable/internal/types"
)

// Print renders the SSA of one function for `sable inspect` and tests.
func Print(m *Module, f *Func) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s(", f.Name)
	for p := 1; p <= f.NumParams; p++ {
		if p > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "v%d: %s", p, m.Types.String(f.ValueType(ValueID(p)))) //nolint:gosec // param count is tiny
	}
	fmt.Fprintf(&sb, ") -> %s {\n", m.Types.String(f.Result))
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		fmt.Fprintf(&sb, "bb%d:\n", blk.ID)
		for _, phi := range blk.Phis {
			fmt.Fprintf(&sb, "  v%d = phi", phi.Result)
			for _, op := range phi.Operands {
				fmt.Fprintf(&sb, " [bb%d: v%d]", op.Pred, op.Value)
			}
			sb.WriteByte('\n')
		}
		for ii := range blk.Instrs {
			sb.WriteString("  ")
			sb.WriteString(printInstr(&blk.Instrs[ii]))
			sb.WriteByte('\n')
		}
		sb.WriteString("  ")
		sb.WriteString(printTerm(&blk.Term))
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

func printInstr(in *Instr) string {
	lhs := ""
	if in.Result.IsValid() {
		lhs = fmt.Sprintf("v%d = ", in.Result)
	}
	switch in.Kind {
	case InstrConst:
		return lhs + "const " + printConst(&in.Const)
	case InstrBin:
		mode := ""
		switch in.Mode {
		case ModeWrapping:
			mode = ".wrap"
		case ModeSaturating:
			mode = ".sat"
		case ModeChecked:
			mode = ".checked"
		}
		return fmt.Sprintf("%s%s%s v%d, v%d", lhs, in.Op, mode, in.X, in.Y)
	case InstrNeg:
		return fmt.Sprintf("%sneg v%d", lhs, in.X)
	case InstrNot:
		return fmt.Sprintf("%snot v%d", lhs, in.X)
	case InstrCall:
		return fmt.Sprintf("%scall f%d%s", lhs, in.Callee, printArgs(in.Args))
	case InstrAggregate:
		return fmt.Sprintf("%saggregate%s", lhs, printArgs(in.Args))
	case InstrExtract:
		return fmt.Sprintf("%sextract v%d, %d", lhs, in.X, in.Index)
	case InstrInsert:
		return fmt.Sprintf("%sinsert v%d, %d, v%d", lhs, in.X, in.Index, in.Y)
	case InstrStateRead:
		return fmt.Sprintf("%sstate_read %q%s", lhs, in.Namespace, printKey(in.Key))
	case InstrStateWrite:
		return fmt.Sprintf("state_write %q%s, v%d", in.Namespace, printKey(in.Key), in.X)
	case InstrStateExists:
		return fmt.Sprintf("%sstate_exists %q%s", lhs, in.Namespace, printKey(in.Key))
	case InstrStateDelete:
		return fmt.Sprintf("state_delete %q%s", in.Namespace, printKey(in.Key))
	case InstrCtx:
		return fmt.Sprintf("%sctx %q", lhs, in.CtxQuery)
	case InstrHash:
		return fmt.Sprintf("%shash v%d", lhs, in.X)
	case InstrEmit:
		return fmt.Sprintf("emit %q%s", in.Event, printArgs(in.Args))
	default:
		return lhs + "?"
	}
}

func printConst(c *Const) string {
	switch c.Kind {
	case types.KindBool:
		if c.Bool {
			return "true"
		}
		return "false"
	case types.KindString, types.KindAddress:
		return fmt.Sprintf("%q", c.Str)
	default:
		if c.IntWide {
			return c.IntText
		}
		if c.IntNeg {
			return fmt.Sprintf("-%d", c.IntValue)
		}
		return fmt.Sprintf("%d", c.IntValue)
	}
}

func printArgs(args []ValueID) string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "v%d", a)
	}
	sb.WriteString(")")
	return sb.String()
}

func printKey(k ValueID) string {
	if !k.IsValid() {
		return ""
	}
	return fmt.Sprintf("[v%d]", k)
}

func printTerm(t *Terminator) string {
	switch t.Kind {
	case TermBr:
		return fmt.Sprintf("br bb%d", t.Target)
	case TermCondBr:
		return fmt.Sprintf("cond_br v%d, bb%d, bb%d", t.Cond, t.Target, t.Else)
	case TermReturn:
		if t.HasValue {
			return fmt.Sprintf("return v%d", t.Value)
		}
		return "return"
	case TermRevert:
		return fmt.Sprintf("revert %q", t.Msg)
	case TermUnreachable:
		return "unreachable"
	default:
		return "<unterminated>"
	}
}
