// Package backend lowers SSA into stack bytecode: it stackifies values
// into transient, local-slot and frame-memory classes, eliminates phis by
// writing their slots on each predecessor edge, injects overflow checks in
// front of default-mode arithmetic, and marshals state/context/crypto/log
// operations into host calls per the capability table.
//
// Host-call convention: one stack value is pushed per capability
// parameter, except that a ptr/len buffer pair collapses to a single
// value and an out-buffer capacity is passed as its word count. Status
// results are pushed on top of any value result; value-free errors trap
// inside the host.
package backend

import (
	"fmt"

	"fortio.org/safecast"

	"sable/internal/bytecode"
	"sable/internal/diag"
	"sable/internal/hir"
	"sable/internal/ssa"
)

// Config bounds per-function code generation.
type Config struct {
	// MaxLocals caps named local slots per function.
	MaxLocals uint32
	// MemoryPages bounds the artifact's linear memory, 64 KiB each.
	MemoryPages uint32
	// FrameLimit caps one function's frame-memory reservation in bytes.
	FrameLimit uint32
}

func (c Config) withDefaults() Config {
	if c.MaxLocals == 0 {
		c.MaxLocals = 512
	}
	if c.MemoryPages == 0 {
		c.MemoryPages = 4
	}
	if c.FrameLimit == 0 {
		c.FrameLimit = 64 * 1024
	}
	return c
}

// Lower compiles the whole module. Diagnostics go to the reporter; the
// artifact is nil when lowering failed.
func Lower(m *ssa.Module, cfg Config, rep diag.Reporter) (*bytecode.Module, bool) {
	cfg = cfg.withDefaults()
	ml := &moduleLowerer{
		ssa:      m,
		cfg:      cfg,
		rep:      rep,
		out:      bytecode.NewModule(m.UnitID, cfg.MemoryPages),
		constIdx: make(map[constKey]uint32),
		funcIdx:  make(map[uint32]uint32),
	}
	ml.assignIndices()
	ok := true
	for id := 1; id < len(m.Funcs); id++ {
		fn := m.Funcs[id]
		if fn == nil {
			continue
		}
		fl := newFuncLowerer(ml, fn)
		bf, fnOK := fl.lower()
		if !fnOK {
			ok = false
			continue
		}
		ml.out.Funcs = append(ml.out.Funcs, bf)
	}
	if !ok {
		return nil, false
	}
	return ml.out, true
}

type moduleLowerer struct {
	ssa *ssa.Module
	cfg Config
	rep diag.Reporter
	out *bytecode.Module

	constIdx map[constKey]uint32
	// funcIdx maps hir.FuncID (as uint32) to the artifact function index.
	funcIdx map[uint32]uint32
}

// assignIndices fixes artifact function indices and exports up front so
// calls can be emitted in one pass.
func (ml *moduleLowerer) assignIndices() {
	var next uint32
	for id := 1; id < len(ml.ssa.Funcs); id++ {
		fn := ml.ssa.Funcs[id]
		if fn == nil {
			continue
		}
		ml.funcIdx[uint32(id)] = next //nolint:gosec // arena index
		if fn.Flags.HasFlag(hir.FuncPublic) {
			ml.out.Exports = append(ml.out.Exports, bytecode.Export{
				Name: bytecode.Mangle(ml.ssa.UnitID, fn.Name),
				Func: next,
			})
		}
		next++
	}
}

type constKey struct {
	kind  bytecode.ConstKind
	word  uint64
	bytes string
}

// wordConst interns a 64-bit scalar constant.
func (ml *moduleLowerer) wordConst(w uint64) uint32 {
	return ml.intern(constKey{kind: bytecode.ConstWord, word: w})
}

// bytesConst interns raw data.
func (ml *moduleLowerer) bytesConst(b []byte) uint32 {
	return ml.intern(constKey{kind: bytecode.ConstBytes, bytes: string(b)})
}

func (ml *moduleLowerer) intern(k constKey) uint32 {
	if idx, ok := ml.constIdx[k]; ok {
		return idx
	}
	idx, err := safecast.Conv[uint32](len(ml.out.Consts))
	if err != nil {
		panic(fmt.Errorf("constant pool overflow: %w", err))
	}
	c := bytecode.Const{Kind: k.kind, Word: k.word}
	if k.kind == bytecode.ConstBytes {
		c.Bytes = []byte(k.bytes)
	}
	ml.out.Consts = append(ml.out.Consts, c)
	ml.constIdx[k] = idx
	return idx
}

// hostImport interns one capability import.
func (ml *moduleLowerer) hostImport(module string, version uint16, name string) uint32 {
	for i, im := range ml.out.Imports {
		if im.Module == module && im.Version == version && im.Name == name {
			return uint32(i) //nolint:gosec // import count is tiny
		}
	}
	idx, err := safecast.Conv[uint32](len(ml.out.Imports))
	if err != nil {
		panic(fmt.Errorf("import table overflow: %w", err))
	}
	ml.out.Imports = append(ml.out.Imports, bytecode.Import{
		Module: module, Version: version, Name: name,
	})
	return idx
}
