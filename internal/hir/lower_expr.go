package hir

import (
	"strconv"

	"sable/internal/ast"
	"sable/internal/types"
)

var binOps = map[string]BinOp{
	"add": BinAdd, "sub": BinSub, "mul": BinMul, "div": BinDiv, "mod": BinMod,
	"and": BinAnd, "or": BinOr, "xor": BinXor, "shl": BinShl, "shr": BinShr,
	"eq": BinEq, "ne": BinNe, "lt": BinLt, "le": BinLe, "gt": BinGt, "ge": BinGe,
	"land": BinLogicAnd, "lor": BinLogicOr,
}

var arithModes = map[ast.ArithMode]ArithMode{
	ast.ModeDefault:    ModeDefault,
	ast.ModeWrapping:   ModeWrapping,
	ast.ModeSaturating: ModeSaturating,
	ast.ModeChecked:    ModeChecked,
}

func (lw *lowerer) lowerExpr(e *ast.Expr) *Expr {
	if e == nil {
		return nil
	}
	out := &Expr{Type: lw.resolveType(e.Type, e.Span), Span: e.Span}
	switch e.Kind {
	case ast.ExprInt:
		out.Kind = ExprIntLit
		lw.parseIntLit(out, e)

	case ast.ExprBool:
		out.Kind = ExprBoolLit
		out.BoolValue = e.BoolValue

	case ast.ExprString:
		out.Kind = ExprStringLit
		out.StrValue = e.StringValue

	case ast.ExprAddress:
		out.Kind = ExprAddressLit
		out.StrValue = e.AddressValue

	case ast.ExprLocal:
		id, ok := lw.lookupLocal(e.Name)
		if !ok {
			lw.errorf(e.Span, "unresolved local %q", e.Name)
			return nil
		}
		out.Kind = ExprLocal
		out.Local = id
		// Type comes from the binding, not the serialized node, so the two
		// cannot drift apart.
		out.Type = lw.fn.Local(id).Type

	case ast.ExprUnary:
		out.Kind = ExprUnary
		switch ast.UnOp(e.Op) {
		case ast.UnNeg:
			out.Un = UnNeg
		case ast.UnNot:
			out.Un = UnNot
		default:
			lw.errorf(e.Span, "unknown unary operator %q", e.Op)
			return nil
		}
		out.X = lw.lowerExpr(e.X)
		if out.X == nil {
			return nil
		}

	case ast.ExprBinary:
		op, ok := binOps[e.Op]
		if !ok {
			lw.errorf(e.Span, "unknown binary operator %q", e.Op)
			return nil
		}
		mode, ok := arithModes[e.Mode]
		if !ok {
			lw.errorf(e.Span, "unknown arithmetic mode %q", e.Mode)
			return nil
		}
		out.Kind = ExprBinary
		out.Bin = op
		out.Mode = mode
		out.X = lw.lowerExpr(e.X)
		out.Y = lw.lowerExpr(e.Y)
		if out.X == nil || out.Y == nil {
			return nil
		}

	case ast.ExprCall:
		id, ok := lw.module.FuncByName[e.Callee]
		if !ok {
			lw.errorf(e.Span, "unresolved callee %q", e.Callee)
			return nil
		}
		out.Kind = ExprCall
		out.Callee = id
		out.SelfMode = e.SelfMode
		if e.Recv != nil {
			out.Recv = lw.lowerExpr(e.Recv)
			if out.Recv == nil {
				return nil
			}
		}
		for i := range e.Args {
			a := lw.lowerExpr(&e.Args[i])
			if a == nil {
				return nil
			}
			out.Args = append(out.Args, *a)
		}
		out.Type = lw.module.Func(id).Result

	case ast.ExprField:
		out.Kind = ExprField
		out.X = lw.lowerExpr(e.X)
		if out.X == nil {
			return nil
		}
		ref, ok := lw.resolveField(out.X.Type, e.Name)
		if !ok {
			lw.errorf(e.Span, "unresolved field %q", e.Name)
			return nil
		}
		out.Field = ref
		out.Type = ref.Type

	case ast.ExprTupleIndex:
		out.Kind = ExprTupleIndex
		out.X = lw.lowerExpr(e.X)
		if out.X == nil {
			return nil
		}
		info, ok := lw.module.Types.Tuple(out.X.Type)
		if !ok || int(e.Index) >= len(info.Elems) {
			lw.errorf(e.Span, "invalid tuple index %d", e.Index)
			return nil
		}
		out.Field = FieldRef{Index: e.Index, Type: info.Elems[e.Index]}
		out.Type = info.Elems[e.Index]

	case ast.ExprTuple:
		out.Kind = ExprTuple
		elems := make([]types.TypeID, 0, len(e.Args))
		for i := range e.Args {
			a := lw.lowerExpr(&e.Args[i])
			if a == nil {
				return nil
			}
			out.Elems = append(out.Elems, *a)
			elems = append(elems, a.Type)
		}
		out.Type = lw.module.Types.InternTuple(elems...)

	case ast.ExprStruct:
		id, ok := lw.module.Structs[e.StructName]
		if !ok {
			lw.errorf(e.Span, "unresolved struct %q", e.StructName)
			return nil
		}
		info, _ := lw.module.Types.Struct(id)
		out.Kind = ExprStruct
		out.Type = id
		// Reorder initializers to declaration order.
		out.StructFields = make([]Expr, len(info.Fields))
		seen := 0
		for fi, fd := range info.Fields {
			for _, init := range e.Fields {
				if init.Name == fd.Name {
					v := lw.lowerExpr(init.Value)
					if v == nil {
						return nil
					}
					out.StructFields[fi] = *v
					seen++
				}
			}
		}
		if seen != len(info.Fields) || len(e.Fields) != len(info.Fields) {
			lw.errorf(e.Span, "struct literal %q does not match declaration", e.StructName)
			return nil
		}

	case ast.ExprStateRead:
		out.Kind = ExprStateRead
		out.Namespace = e.Namespace
		if e.Key != nil {
			out.Key = lw.lowerExpr(e.Key)
		}

	case ast.ExprStateExists:
		out.Kind = ExprStateExists
		out.Namespace = e.Namespace
		if e.Key != nil {
			out.Key = lw.lowerExpr(e.Key)
		}
		out.Type = lw.module.Types.Builtins().Bool

	case ast.ExprCtx:
		switch e.Name {
		case "sender", "unit", "gas_left", "value":
		default:
			lw.errorf(e.Span, "unknown context query %q", e.Name)
		}
		out.Kind = ExprCtx
		out.CtxQuery = e.Name

	case ast.ExprHash:
		out.Kind = ExprHash
		out.X = lw.lowerExpr(e.X)
		if out.X == nil {
			return nil
		}

	default:
		lw.errorf(e.Span, "unknown expression kind %q", e.Kind)
		return nil
	}
	return out
}

func (lw *lowerer) parseIntLit(out *Expr, e *ast.Expr) {
	text := e.IntValue
	out.IntText = text
	neg := false
	if len(text) > 0 && text[0] == '-' {
		neg = true
		text = text[1:]
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		// Beyond 64 bits: keep the text, backend materializes it in memory.
		out.IntWide = true
		return
	}
	out.IntValue = v
	out.IntNeg = neg
}

func (lw *lowerer) resolveField(base types.TypeID, name string) (FieldRef, bool) {
	info, ok := lw.module.Types.Struct(base)
	if !ok {
		return FieldRef{}, false
	}
	for i, f := range info.Fields {
		if f.Name == name {
			return FieldRef{Name: name, Index: uint32(i), Type: f.Type}, true //nolint:gosec // field count is tiny
		}
	}
	return FieldRef{}, false
}
