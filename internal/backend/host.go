package backend

import (
	"fmt"

	"sable/internal/bytecode"
	"sable/internal/diag"
	"sable/internal/hostabi"
	"sable/internal/ssa"
)

// Host-call marshalling, driven by the hostabi capability table. The
// namespace travels as a bytes constant, the key as one value (or an
// empty buffer for singleton namespaces), and word-expanded payloads
// carry an explicit trailing word count. Value-producing calls push the
// value before the status word; every status is checked here, and a
// non-success answer escalates to sys/1.abort before any output word is
// consumed.

func (f *funcLowerer) hostCall(module string, version uint16, name string) {
	f.emitA(bytecode.OpHostCall, f.ml.hostImport(module, version, name))
}

// callHost emits the call plus the result protocol the capability table
// prescribes for it.
func (f *funcLowerer) callHost(module string, version uint16, name string) {
	f.hostCall(module, version, name)
	sym := fmt.Sprintf("%s/%d.%s", module, version, name)
	if hostabi.Table()[hostabi.MustIndex(sym)].Result != hostabi.ResultStatus {
		return
	}
	ok := f.newLabel()
	f.branch(bytecode.OpBrIfNot, ok)
	f.emitAbort(hostabi.AbortHost)
	f.bind(ok)
}

func (f *funcLowerer) pushStateKey(in *ssa.Instr) {
	f.pushConstBytes([]byte(in.Namespace))
	if in.Key.IsValid() {
		f.pushVal(in.Key)
	} else {
		f.pushConstBytes(nil)
	}
}

func (f *funcLowerer) lowerHost(in *ssa.Instr) {
	switch in.Kind {
	case ssa.InstrStateRead:
		words := wordsOf(f.ty, in.Type)
		f.pushStateKey(in)
		f.pushConstWord(uint64(words))
		f.callHost("state", 1, "read")
		f.storeResult(in.Result)

	case ssa.InstrStateWrite:
		words := wordsOf(f.ty, f.fn.Values[in.X].Type)
		f.pushStateKey(in)
		f.pushVal(in.X)
		f.pushConstWord(uint64(words))
		f.callHost("state", 1, "write")

	case ssa.InstrStateExists:
		f.pushStateKey(in)
		f.callHost("state", 1, "exists")
		f.storeResult(in.Result)

	case ssa.InstrStateDelete:
		f.pushStateKey(in)
		f.callHost("state", 1, "delete")

	case ssa.InstrCtx:
		f.lowerCtx(in)

	case ssa.InstrHash:
		if wordsOf(f.ty, f.fn.Values[in.X].Type) != 1 {
			diag.ReportError(f.ml.rep, diag.LowerValueTooLarge, in.Span,
				"digest input must be a scalar or buffer value").
				Emit()
			f.ok = false
			return
		}
		f.pushVal(in.X)
		f.pushConstWord(1)
		f.callHost("crypto", 1, "digest")
		f.storeResult(in.Result)

	case ssa.InstrEmit:
		f.pushConstBytes([]byte(in.Event))
		var words uint64
		for _, a := range in.Args {
			f.pushVal(a)
			words += uint64(wordsOf(f.ty, f.fn.Values[a].Type))
		}
		f.pushConstWord(words)
		f.callHost("log", 1, "emit")

	default:
		panic(fmt.Sprintf("not a host instruction: %d", in.Kind))
	}
}

func (f *funcLowerer) lowerCtx(in *ssa.Instr) {
	switch in.CtxQuery {
	case "sender", "unit":
		f.pushConstWord(1)
		f.callHost("ctx", 1, in.CtxQuery)
		f.storeResult(in.Result)
	case "gas_left", "value":
		f.callHost("ctx", 1, in.CtxQuery)
		f.storeResult(in.Result)
	default:
		// HIR lowering validates query names; anything else is a bug.
		panic(fmt.Sprintf("unknown context query %q", in.CtxQuery))
	}
}
