package hir

import (
	"fmt"

	"fortio.org/safecast"

	"sable/internal/ast"
	"sable/internal/diag"
	"sable/internal/source"
	"sable/internal/types"
)

// Lower builds an HIR module from a typed AST unit. Name and type
// resolution already happened in the front end, so failures here mean the
// unit is malformed; they are reported as PipeBadUnit and the offending
// function is dropped.
func Lower(unit *ast.Unit, reporter diag.Reporter) *Module {
	lw := &lowerer{
		unit:     unit,
		reporter: reporter,
		module: &Module{
			UnitID:     unit.UnitID,
			Types:      types.NewInterner(),
			Structs:    make(map[string]types.TypeID),
			Funcs:      []*Func{nil}, // sentinel for NoFuncID
			FuncByName: make(map[string]FuncID),
		},
	}
	lw.declareStructs()
	lw.declareFuncs()
	lw.lowerBodies()
	return lw.module
}

type lowerer struct {
	unit     *ast.Unit
	reporter diag.Reporter
	module   *Module

	// per-function state
	fn     *Func
	scopes []map[string]LocalID
	broken bool
}

func (lw *lowerer) errorf(sp source.Span, format string, args ...any) {
	lw.broken = true
	diag.ReportError(lw.reporter, diag.PipeBadUnit, sp, fmt.Sprintf(format, args...)).Emit()
}

func (lw *lowerer) declareStructs() {
	for _, sd := range lw.unit.Structs {
		info := types.StructInfo{Name: sd.Name}
		for _, fd := range sd.Fields {
			info.Fields = append(info.Fields, types.StructField{
				Name: fd.Name,
				Type: lw.resolveType(fd.Type, fd.Span),
			})
		}
		lw.module.Structs[sd.Name] = lw.module.Types.InternStruct(info)
	}
}

func (lw *lowerer) declareFuncs() {
	for i := range lw.unit.Funcs {
		af := &lw.unit.Funcs[i]
		id := FuncID(len(lw.module.Funcs)) //nolint:gosec // function count bounded
		fn := &Func{
			ID:     id,
			Name:   af.Name,
			Span:   af.Span,
			Result: lw.resolveType(af.Result, af.Span),
			Locals: []Local{{}}, // sentinel for NoLocalID
		}
		if af.Public {
			fn.Flags |= FuncPublic
		}
		lw.parseAnnotations(fn, af.Annotations)
		for _, p := range af.Params {
			pt := lw.resolveType(p.Type, p.Span)
			fn.Locals = append(fn.Locals, Local{
				Name:   p.Name,
				Type:   pt,
				Mut:    p.Mut,
				IsCopy: lw.module.Types.IsCopy(pt),
				Span:   p.Span,
			})
		}
		fn.NumParams = len(af.Params)
		if _, dup := lw.module.FuncByName[af.Name]; dup {
			lw.errorf(af.Span, "duplicate function %q", af.Name)
			continue
		}
		lw.module.Funcs = append(lw.module.Funcs, fn)
		lw.module.FuncByName[af.Name] = id
	}
}

// parseAnnotations interprets the raw annotation text attached by the front
// end: reads(...), writes(...), pure, payable, proof(...).
func (lw *lowerer) parseAnnotations(fn *Func, anns []ast.Annotation) {
	for _, a := range anns {
		switch a.Name {
		case "pure":
			fn.Flags |= FuncPure
		case "payable":
			fn.Flags |= FuncPayable
		case "proof":
			fn.ProofIDs = append(fn.ProofIDs, a.Args...)
		case "reads", "writes":
			if fn.Declared == nil {
				fn.Declared = &DeclaredDomains{Span: a.Span}
			}
			if a.Name == "reads" {
				fn.Declared.Reads = append(fn.Declared.Reads, a.Args...)
			} else {
				fn.Declared.Writes = append(fn.Declared.Writes, a.Args...)
			}
		default:
			lw.errorf(a.Span, "unknown annotation %q", a.Name)
		}
	}
}

func (lw *lowerer) lowerBodies() {
	for i := range lw.unit.Funcs {
		af := &lw.unit.Funcs[i]
		id, ok := lw.module.FuncByName[af.Name]
		if !ok {
			continue
		}
		fn := lw.module.Funcs[id]
		lw.fn = fn
		lw.broken = false
		lw.scopes = lw.scopes[:0]
		lw.pushScope()
		for p := 1; p <= fn.NumParams; p++ {
			lw.scopes[0][fn.Locals[p].Name] = LocalID(p) //nolint:gosec // param count is tiny
		}
		fn.Body = lw.lowerStmts(af.Body)
		lw.popScope()
		lw.ensureReturn(fn)
		if lw.broken {
			// Malformed body: drop it so later stages skip the function.
			fn.Body = nil
		}
	}
}

// ensureReturn appends an explicit bare return to unit functions whose body
// can fall off the end.
func (lw *lowerer) ensureReturn(fn *Func) {
	if lw.module.Types.Get(fn.Result).Kind != types.KindUnit {
		return
	}
	if n := len(fn.Body); n > 0 {
		last := fn.Body[n-1].Kind
		if last == StmtReturn || last == StmtRevert {
			return
		}
	}
	fn.Body = append(fn.Body, Stmt{Kind: StmtReturn, Span: fn.Span})
}

func (lw *lowerer) pushScope() {
	lw.scopes = append(lw.scopes, make(map[string]LocalID))
}

func (lw *lowerer) popScope() {
	lw.scopes = lw.scopes[:len(lw.scopes)-1]
}

func (lw *lowerer) declareLocal(name string, ty types.TypeID, mut bool, sp source.Span) LocalID {
	idx, err := safecast.Conv[uint32](len(lw.fn.Locals))
	if err != nil {
		panic(fmt.Errorf("local count overflow: %w", err))
	}
	id := LocalID(idx)
	lw.fn.Locals = append(lw.fn.Locals, Local{
		Name:   name,
		Type:   ty,
		Mut:    mut,
		IsCopy: lw.module.Types.IsCopy(ty),
		Span:   sp,
	})
	lw.scopes[len(lw.scopes)-1][name] = id
	return id
}

func (lw *lowerer) lookupLocal(name string) (LocalID, bool) {
	for i := len(lw.scopes) - 1; i >= 0; i-- {
		if id, ok := lw.scopes[i][name]; ok {
			return id, true
		}
	}
	return NoLocalID, false
}

func (lw *lowerer) resolveType(tr ast.TypeRef, sp source.Span) types.TypeID {
	b := lw.module.Types.Builtins()
	switch tr.Name {
	case "unit", "":
		return b.Unit
	case "bool":
		return b.Bool
	case "i32":
		return b.I32
	case "i64":
		return b.I64
	case "i128":
		return b.I128
	case "u8":
		return b.U8
	case "u32":
		return b.U32
	case "u64":
		return b.U64
	case "u128":
		return b.U128
	case "address":
		return b.Address
	case "string":
		return b.String
	case "bytes":
		return b.Bytes
	case "tuple":
		elems := make([]types.TypeID, 0, len(tr.Elems))
		for _, e := range tr.Elems {
			elems = append(elems, lw.resolveType(e, sp))
		}
		return lw.module.Types.InternTuple(elems...)
	default:
		if id, ok := lw.module.Structs[tr.Name]; ok {
			return id
		}
		lw.errorf(sp, "unresolved type %q", tr.Name)
		return types.NoTypeID
	}
}
